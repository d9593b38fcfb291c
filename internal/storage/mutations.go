package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// withTx runs fn in a transaction, rolling back on error.
func (db *DB) withTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return storageErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storageErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func putTune(tx *sql.Tx, t domain.Tune) error {
	_, err := tx.Exec(`
		INSERT INTO tunes (id, genre, owner_id, title, deleted, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			genre = excluded.genre,
			owner_id = excluded.owner_id,
			title = excluded.title,
			deleted = excluded.deleted,
			last_modified_at = excluded.last_modified_at
	`, t.ID, t.Genre, t.OwnerID, t.Title, boolInt(t.Deleted), formatTime(t.LastModifiedAt))
	return err
}

func putRepertoire(tx *sql.Tx, e domain.RepertoireEntry) error {
	_, err := tx.Exec(`
		INSERT INTO repertoire (playlist_id, tune_id, scheduled, learned, goal, explicit_add, deleted, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(playlist_id, tune_id) DO UPDATE SET
			scheduled = excluded.scheduled,
			learned = excluded.learned,
			goal = excluded.goal,
			explicit_add = excluded.explicit_add,
			deleted = excluded.deleted,
			last_modified_at = excluded.last_modified_at
	`, e.PlaylistID, e.TuneID, formatNullTime(e.Scheduled), boolInt(e.Learned), e.Goal,
		boolInt(e.Explicit), boolInt(e.Deleted), formatTime(e.LastModifiedAt))
	return err
}

func putNote(tx *sql.Tx, n domain.Note) error {
	_, err := tx.Exec(`
		INSERT INTO notes (id, tune_id, display_order, content, deleted, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tune_id = excluded.tune_id,
			display_order = excluded.display_order,
			content = excluded.content,
			deleted = excluded.deleted,
			last_modified_at = excluded.last_modified_at
	`, n.ID, n.TuneID, n.DisplayOrder, n.Content, boolInt(n.Deleted), formatTime(n.LastModifiedAt))
	return err
}

func putReference(tx *sql.Tx, r domain.Reference) error {
	_, err := tx.Exec(`
		INSERT INTO refs (id, tune_id, display_order, url, deleted, last_modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tune_id = excluded.tune_id,
			display_order = excluded.display_order,
			url = excluded.url,
			deleted = excluded.deleted,
			last_modified_at = excluded.last_modified_at
	`, r.ID, r.TuneID, r.DisplayOrder, r.URL, boolInt(r.Deleted), formatTime(r.LastModifiedAt))
	return err
}

func insertPractice(tx *sql.Tx, r domain.PracticeRecord) error {
	_, err := tx.Exec(`
		INSERT INTO practice_records (id, tune_id, playlist_id, practiced_at, rating, state,
			stability, difficulty, interval_days, due, lapses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.TuneID, r.PlaylistID, formatTime(r.PracticedAt), int(r.Rating), int(r.State),
		r.Stability, r.Difficulty, r.Interval, formatTime(r.Due), r.Lapses)
	return err
}

// UpsertTune writes a tune through the mutation path: the row and its
// outbox entry commit atomically.
func (db *DB) UpsertTune(t domain.Tune, now time.Time) error {
	t.LastModifiedAt = now
	return db.withTx("upsert tune", func(tx *sql.Tx) error {
		if err := putTune(tx, t); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindTune, t.ID, domain.OpUpsert, t, now)
	})
}

// DeleteTune tombstones a tune so the deletion propagates on push.
func (db *DB) DeleteTune(id string, now time.Time) error {
	return db.withTx("delete tune", func(tx *sql.Tx) error {
		t, err := getTune(tx, id)
		if err != nil {
			return err
		}
		t.Deleted = true
		t.LastModifiedAt = now
		if err := putTune(tx, t); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindTune, t.ID, domain.OpUpsert, t, now)
	})
}

// UpsertRepertoireEntry writes a repertoire link through the mutation path.
func (db *DB) UpsertRepertoireEntry(e domain.RepertoireEntry, now time.Time) error {
	e.LastModifiedAt = now
	return db.withTx("upsert repertoire", func(tx *sql.Tx) error {
		if err := putRepertoire(tx, e); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindRepertoire, e.Key(), domain.OpUpsert, e, now)
	})
}

// UpsertNote writes a note through the mutation path.
func (db *DB) UpsertNote(n domain.Note, now time.Time) error {
	n.LastModifiedAt = now
	return db.withTx("upsert note", func(tx *sql.Tx) error {
		if err := putNote(tx, n); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindNote, n.ID, domain.OpUpsert, n, now)
	})
}

// DeleteNote tombstones a note.
func (db *DB) DeleteNote(id string, now time.Time) error {
	return db.withTx("delete note", func(tx *sql.Tx) error {
		var n domain.Note
		var deleted int
		var modified string
		err := tx.QueryRow(`
			SELECT id, tune_id, display_order, content, deleted, last_modified_at
			FROM notes WHERE id = ?
		`, id).Scan(&n.ID, &n.TuneID, &n.DisplayOrder, &n.Content, &deleted, &modified)
		if err != nil {
			return err
		}
		n.Deleted = true
		n.LastModifiedAt = now
		if err := putNote(tx, n); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindNote, n.ID, domain.OpUpsert, n, now)
	})
}

// UpsertReference writes a reference through the mutation path.
func (db *DB) UpsertReference(r domain.Reference, now time.Time) error {
	r.LastModifiedAt = now
	return db.withTx("upsert reference", func(tx *sql.Tx) error {
		if err := putReference(tx, r); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindReference, r.ID, domain.OpUpsert, r, now)
	})
}

// DeleteReference tombstones a reference.
func (db *DB) DeleteReference(id string, now time.Time) error {
	return db.withTx("delete reference", func(tx *sql.Tx) error {
		var r domain.Reference
		var deleted int
		var modified string
		err := tx.QueryRow(`
			SELECT id, tune_id, display_order, url, deleted, last_modified_at
			FROM refs WHERE id = ?
		`, id).Scan(&r.ID, &r.TuneID, &r.DisplayOrder, &r.URL, &deleted, &modified)
		if err != nil {
			return err
		}
		r.Deleted = true
		r.LastModifiedAt = now
		if err := putReference(tx, r); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindReference, r.ID, domain.OpUpsert, r, now)
	})
}

// AddPracticeRecord appends an evaluation and queues it for delivery.
func (db *DB) AddPracticeRecord(r domain.PracticeRecord) error {
	return db.withTx("add practice record", func(tx *sql.Tx) error {
		if err := insertPractice(tx, r); err != nil {
			return err
		}
		return enqueueOutbox(tx, domain.KindPractice, r.ID, domain.OpUpsert, r, r.PracticedAt)
	})
}

// ApplyRemote merges a pulled row into the local store without touching
// the outbox, so pulled data is never pushed back.
func (db *DB) ApplyRemote(kind domain.EntityKind, payload json.RawMessage) error {
	return db.withTx(fmt.Sprintf("apply remote %s", kind), func(tx *sql.Tx) error {
		switch kind {
		case domain.KindTune:
			var t domain.Tune
			if err := json.Unmarshal(payload, &t); err != nil {
				return err
			}
			return putTune(tx, t)
		case domain.KindRepertoire:
			var e domain.RepertoireEntry
			if err := json.Unmarshal(payload, &e); err != nil {
				return err
			}
			return putRepertoire(tx, e)
		case domain.KindNote:
			var n domain.Note
			if err := json.Unmarshal(payload, &n); err != nil {
				return err
			}
			return putNote(tx, n)
		case domain.KindReference:
			var r domain.Reference
			if err := json.Unmarshal(payload, &r); err != nil {
				return err
			}
			return putReference(tx, r)
		case domain.KindPractice:
			var r domain.PracticeRecord
			if err := json.Unmarshal(payload, &r); err != nil {
				return err
			}
			return insertPractice(tx, r)
		default:
			return fmt.Errorf("unknown entity kind %q", kind)
		}
	})
}

// PurgeAnnotations soft-deletes all live notes and references attached
// to the given tunes. This is local cache eviction, not a user
// mutation, so nothing is enqueued for push. Returns the number of
// notes and references purged.
func (db *DB) PurgeAnnotations(tuneIDs []string, now time.Time) (notes int, refs int, err error) {
	if len(tuneIDs) == 0 {
		return 0, 0, nil
	}
	err = db.withTx("purge annotations", func(tx *sql.Tx) error {
		for _, id := range tuneIDs {
			res, err := tx.Exec(`
				UPDATE notes SET deleted = 1, last_modified_at = ?
				WHERE tune_id = ? AND deleted = 0
			`, formatTime(now), id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			notes += int(n)

			res, err = tx.Exec(`
				UPDATE refs SET deleted = 1, last_modified_at = ?
				WHERE tune_id = ? AND deleted = 0
			`, formatTime(now), id)
			if err != nil {
				return err
			}
			n, _ = res.RowsAffected()
			refs += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return notes, refs, nil
}

// PurgeRepertoire soft-deletes repertoire rows for the given tunes
// unless the user added them explicitly. Local-only, like
// PurgeAnnotations.
func (db *DB) PurgeRepertoire(playlistID string, tuneIDs []string, now time.Time) (int, error) {
	if len(tuneIDs) == 0 {
		return 0, nil
	}
	var purged int
	err := db.withTx("purge repertoire", func(tx *sql.Tx) error {
		for _, id := range tuneIDs {
			res, err := tx.Exec(`
				UPDATE repertoire SET deleted = 1, last_modified_at = ?
				WHERE playlist_id = ? AND tune_id = ? AND explicit_add = 0 AND deleted = 0
			`, formatTime(now), playlistID, id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			purged += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
