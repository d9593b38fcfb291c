// Package storage is the embedded local store: every domain table plus
// the mutation outbox, in one sqlite database. User-path mutations
// commit the row change and its outbox entry in the same transaction;
// sync-path applies skip the outbox so pulled rows are not re-pushed.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Timestamps are stored as RFC3339Nano strings so watermark
// comparisons keep full precision across a round trip.
const timeLayout = time.RFC3339Nano

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up
// to date. Use ":memory:" as the dsn for throwaway test stores.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open", err)
	}

	if err := db.Ping(); err != nil {
		return nil, storageErr("ping", err)
	}

	// WAL keeps readers unblocked during sync writes; the busy timeout
	// covers the single-writer serialization window.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, storageErr("pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, storageErr("apply schema", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetMeta returns the sync_meta value for key, or "" when unset.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storageErr(fmt.Sprintf("get meta %s", key), err)
	}
	return value, nil
}

// SetMeta stores a sync_meta value, replacing any previous one.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return storageErr(fmt.Sprintf("set meta %s", key), err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
