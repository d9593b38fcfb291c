package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// enqueueOutbox records a pending mutation inside the caller's
// transaction, coalescing with any earlier undelivered entry for the
// same row. Coalescing is safe because every payload carries the full
// row state and remote application is last-write-wins.
func enqueueOutbox(tx *sql.Tx, kind domain.EntityKind, rowID string, op domain.Op, payload any, now time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM outbox WHERE kind = ? AND row_id = ?`, string(kind), rowID); err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO outbox (kind, row_id, op, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(kind), rowID, string(op), string(body), formatTime(now))
	return err
}

// PendingOutbox returns all undelivered entries in sequence order.
func (db *DB) PendingOutbox() ([]domain.OutboxEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, kind, row_id, op, payload, created_at
		FROM outbox ORDER BY id ASC
	`)
	if err != nil {
		return nil, storageErr("list outbox", err)
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		var kind, op, payload, createdAt string
		if err := rows.Scan(&e.ID, &kind, &e.RowID, &op, &payload, &createdAt); err != nil {
			return nil, storageErr("scan outbox row", err)
		}
		e.Kind = domain.EntityKind(kind)
		e.Op = domain.Op(op)
		e.Payload = json.RawMessage(payload)
		e.Sequence = e.ID
		if t, err := parseTime(createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate outbox", err)
	}
	return entries, nil
}

// AckOutbox removes a delivered entry. Acking an already-removed entry
// is a no-op, so replays after a lost acknowledgement are harmless.
func (db *DB) AckOutbox(id int64) error {
	_, err := db.conn.Exec(`DELETE FROM outbox WHERE id = ?`, id)
	return storageErr("ack outbox", err)
}

// HasPendingForRow reports whether an undelivered mutation exists for
// the row. The sync engine uses this to keep a slow pull from
// clobbering an in-flight local edit.
func (db *DB) HasPendingForRow(kind domain.EntityKind, rowID string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM outbox WHERE kind = ? AND row_id = ?
	`, string(kind), rowID).Scan(&n)
	if err != nil {
		return false, storageErr("check pending row", err)
	}
	return n > 0, nil
}

// PendingOutboxCount returns the number of queued mutations, surfaced
// to the user as the offline pending count.
func (db *DB) PendingOutboxCount() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, storageErr("count outbox", err)
	}
	return n, nil
}
