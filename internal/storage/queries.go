package storage

import (
	"database/sql"

	"github.com/conorfennell/tunequeue/internal/domain"
)

func scanTune(row interface{ Scan(...any) error }) (domain.Tune, error) {
	var t domain.Tune
	var deleted int
	var modified string
	err := row.Scan(&t.ID, &t.Genre, &t.OwnerID, &t.Title, &deleted, &modified)
	if err != nil {
		return t, err
	}
	t.Deleted = deleted != 0
	if ts, err := parseTime(modified); err == nil {
		t.LastModifiedAt = ts
	}
	return t, nil
}

func getTune(tx *sql.Tx, id string) (domain.Tune, error) {
	return scanTune(tx.QueryRow(`
		SELECT id, genre, owner_id, title, deleted, last_modified_at
		FROM tunes WHERE id = ?
	`, id))
}

// GetTune retrieves a tune by id. Returns sql.ErrNoRows when the tune
// is not present locally.
func (db *DB) GetTune(id string) (domain.Tune, error) {
	t, err := scanTune(db.conn.QueryRow(`
		SELECT id, genre, owner_id, title, deleted, last_modified_at
		FROM tunes WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return t, err
	}
	if err != nil {
		return t, storageErr("get tune", err)
	}
	return t, nil
}

// ListTunes returns every locally cached tune, tombstoned or not.
func (db *DB) ListTunes() ([]domain.Tune, error) {
	rows, err := db.conn.Query(`
		SELECT id, genre, owner_id, title, deleted, last_modified_at
		FROM tunes ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("list tunes", err)
	}
	defer rows.Close()

	var tunes []domain.Tune
	for rows.Next() {
		t, err := scanTune(rows)
		if err != nil {
			return nil, storageErr("scan tune", err)
		}
		tunes = append(tunes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate tunes", err)
	}
	return tunes, nil
}

// ListRepertoire returns the live repertoire entries of a playlist.
func (db *DB) ListRepertoire(playlistID string) ([]domain.RepertoireEntry, error) {
	rows, err := db.conn.Query(`
		SELECT playlist_id, tune_id, scheduled, learned, goal, explicit_add, deleted, last_modified_at
		FROM repertoire WHERE playlist_id = ? AND deleted = 0
		ORDER BY tune_id
	`, playlistID)
	if err != nil {
		return nil, storageErr("list repertoire", err)
	}
	defer rows.Close()

	var entries []domain.RepertoireEntry
	for rows.Next() {
		var e domain.RepertoireEntry
		var scheduled sql.NullString
		var learned, explicit, deleted int
		var modified string
		err := rows.Scan(&e.PlaylistID, &e.TuneID, &scheduled, &learned, &e.Goal, &explicit, &deleted, &modified)
		if err != nil {
			return nil, storageErr("scan repertoire row", err)
		}
		e.Learned = learned != 0
		e.Explicit = explicit != 0
		e.Deleted = deleted != 0
		if e.Scheduled, err = parseNullTime(scheduled); err != nil {
			return nil, storageErr("parse scheduled", err)
		}
		if ts, err := parseTime(modified); err == nil {
			e.LastModifiedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate repertoire", err)
	}
	return entries, nil
}

// LatestPracticeRecord returns the most recent evaluation of a tune in
// a playlist, or nil when it has never been practiced.
func (db *DB) LatestPracticeRecord(playlistID, tuneID string) (*domain.PracticeRecord, error) {
	row := db.conn.QueryRow(`
		SELECT id, tune_id, playlist_id, practiced_at, rating, state,
			stability, difficulty, interval_days, due, lapses
		FROM practice_records
		WHERE playlist_id = ? AND tune_id = ?
		ORDER BY practiced_at DESC LIMIT 1
	`, playlistID, tuneID)

	var r domain.PracticeRecord
	var practicedAt, due string
	var rating, state int
	err := row.Scan(&r.ID, &r.TuneID, &r.PlaylistID, &practicedAt, &rating, &state,
		&r.Stability, &r.Difficulty, &r.Interval, &due, &r.Lapses)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("latest practice record", err)
	}
	r.Rating = domain.Rating(rating)
	r.State = domain.MemoryState(state)
	if t, err := parseTime(practicedAt); err == nil {
		r.PracticedAt = t
	}
	if t, err := parseTime(due); err == nil {
		r.Due = t
	}
	return &r, nil
}

// ListNotes returns the live notes on a tune in display order.
func (db *DB) ListNotes(tuneID string) ([]domain.Note, error) {
	rows, err := db.conn.Query(`
		SELECT id, tune_id, display_order, content, deleted, last_modified_at
		FROM notes WHERE tune_id = ? AND deleted = 0
		ORDER BY display_order, id
	`, tuneID)
	if err != nil {
		return nil, storageErr("list notes", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		var deleted int
		var modified string
		if err := rows.Scan(&n.ID, &n.TuneID, &n.DisplayOrder, &n.Content, &deleted, &modified); err != nil {
			return nil, storageErr("scan note", err)
		}
		if ts, err := parseTime(modified); err == nil {
			n.LastModifiedAt = ts
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate notes", err)
	}
	return notes, nil
}

// ListReferences returns the live references on a tune in display order.
func (db *DB) ListReferences(tuneID string) ([]domain.Reference, error) {
	rows, err := db.conn.Query(`
		SELECT id, tune_id, display_order, url, deleted, last_modified_at
		FROM refs WHERE tune_id = ? AND deleted = 0
		ORDER BY display_order, id
	`, tuneID)
	if err != nil {
		return nil, storageErr("list references", err)
	}
	defer rows.Close()

	var refs []domain.Reference
	for rows.Next() {
		var r domain.Reference
		var deleted int
		var modified string
		if err := rows.Scan(&r.ID, &r.TuneID, &r.DisplayOrder, &r.URL, &deleted, &modified); err != nil {
			return nil, storageErr("scan reference", err)
		}
		if ts, err := parseTime(modified); err == nil {
			r.LastModifiedAt = ts
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate references", err)
	}
	return refs, nil
}
