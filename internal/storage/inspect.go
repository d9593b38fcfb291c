package storage

import (
	"database/sql"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// AnnotationCounts holds live (non-tombstoned) annotation totals.
type AnnotationCounts struct {
	Notes      int `json:"notes"`
	References int `json:"references"`
}

// OrphanCounts reports annotations whose parent tune is no longer
// visible. Zero is the steady state after a clean sync.
type OrphanCounts struct {
	OrphanedNotes      int `json:"orphanedNotes"`
	OrphanedReferences int `json:"orphanedReferences"`
}

// GetAnnotationCounts returns live annotation totals, scoped to one
// tune when tuneID is non-empty.
func (db *DB) GetAnnotationCounts(tuneID string) (AnnotationCounts, error) {
	var c AnnotationCounts
	noteQuery := `SELECT COUNT(*) FROM notes WHERE deleted = 0`
	refQuery := `SELECT COUNT(*) FROM refs WHERE deleted = 0`
	var args []any
	if tuneID != "" {
		noteQuery += ` AND tune_id = ?`
		refQuery += ` AND tune_id = ?`
		args = append(args, tuneID)
	}
	if err := db.conn.QueryRow(noteQuery, args...).Scan(&c.Notes); err != nil {
		return c, storageErr("count notes", err)
	}
	if err := db.conn.QueryRow(refQuery, args...).Scan(&c.References); err != nil {
		return c, storageErr("count references", err)
	}
	return c, nil
}

// GetOrphanedAnnotationCounts counts live annotations attached to tunes
// that fail the visibility predicate for the given user and genre
// selection.
func (db *DB) GetOrphanedAnnotationCounts(userID string, genres map[string]bool) (OrphanCounts, error) {
	var c OrphanCounts
	orphans, err := db.OrphanedTuneIDs(userID, genres)
	if err != nil {
		return c, err
	}
	for _, id := range orphans {
		var n int
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes WHERE tune_id = ? AND deleted = 0`, id).Scan(&n); err != nil {
			return c, storageErr("count orphaned notes", err)
		}
		c.OrphanedNotes += n
		if err := db.conn.QueryRow(`SELECT COUNT(*) FROM refs WHERE tune_id = ? AND deleted = 0`, id).Scan(&n); err != nil {
			return c, storageErr("count orphaned references", err)
		}
		c.OrphanedReferences += n
	}
	return c, nil
}

// OrphanedTuneIDs returns ids of locally present tunes that are neither
// in a selected genre nor privately owned by the user.
func (db *DB) OrphanedTuneIDs(userID string, genres map[string]bool) ([]string, error) {
	tunes, err := db.ListTunes()
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, t := range tunes {
		if t.Deleted {
			continue
		}
		if !t.Visible(userID, genres) {
			orphans = append(orphans, t.ID)
		}
	}
	return orphans, nil
}

// GetTuneIDByGenre returns the id of any live tune in the genre, or ""
// when none is cached locally.
func (db *DB) GetTuneIDByGenre(genre string) (string, error) {
	var id string
	err := db.conn.QueryRow(`
		SELECT id FROM tunes WHERE genre = ? AND deleted = 0 ORDER BY id LIMIT 1
	`, genre).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storageErr("tune by genre", err)
	}
	return id, nil
}

// ScheduledUpdate pairs a tune with its new scheduled date.
type ScheduledUpdate struct {
	TuneID    string     `json:"tune_id"`
	Scheduled *time.Time `json:"scheduled"`
}

// UpdateScheduledDates sets scheduled overrides on repertoire rows
// through the mutation path and returns how many rows changed.
func (db *DB) UpdateScheduledDates(playlistID string, updates []ScheduledUpdate, now time.Time) (int, error) {
	var updated int
	for _, u := range updates {
		var e domain.RepertoireEntry
		var scheduled sql.NullString
		var learned, explicit, deleted int
		var modified string
		err := db.conn.QueryRow(`
			SELECT playlist_id, tune_id, scheduled, learned, goal, explicit_add, deleted, last_modified_at
			FROM repertoire WHERE playlist_id = ? AND tune_id = ?
		`, playlistID, u.TuneID).Scan(&e.PlaylistID, &e.TuneID, &scheduled, &learned, &e.Goal, &explicit, &deleted, &modified)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return updated, storageErr("load repertoire for schedule", err)
		}
		e.Learned = learned != 0
		e.Explicit = explicit != 0
		e.Deleted = deleted != 0
		e.Scheduled = u.Scheduled
		if err := db.UpsertRepertoireEntry(e, now); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// SeedAddToReview adds tunes to a playlist's repertoire as explicit
// entries, skipping ones already present. Used by test/ops tooling to
// force queue regeneration fodder.
func (db *DB) SeedAddToReview(playlistID string, tuneIDs []string, now time.Time) error {
	for _, id := range tuneIDs {
		var n int
		err := db.conn.QueryRow(`
			SELECT COUNT(*) FROM repertoire WHERE playlist_id = ? AND tune_id = ? AND deleted = 0
		`, playlistID, id).Scan(&n)
		if err != nil {
			return storageErr("check repertoire", err)
		}
		if n > 0 {
			continue
		}
		entry := domain.RepertoireEntry{
			PlaylistID: playlistID,
			TuneID:     id,
			Explicit:   true,
		}
		if err := db.UpsertRepertoireEntry(entry, now); err != nil {
			return err
		}
	}
	return nil
}
