package storage

import (
	"database/sql"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// ReplaceQueue swaps the playlist's materialized queue for a freshly
// computed one in a single transaction. Queue rows are derived state
// and never enter the outbox.
func (db *DB) ReplaceQueue(playlistID string, items []domain.QueueItem) error {
	return db.withTx("replace queue", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM practice_queue WHERE playlist_id = ?`, playlistID); err != nil {
			return err
		}
		for _, item := range items {
			_, err := tx.Exec(`
				INSERT INTO practice_queue (playlist_id, tune_id, bucket, order_index, completed_at)
				VALUES (?, ?, ?, ?, ?)
			`, playlistID, item.TuneID, item.Bucket, item.OrderIndex, formatNullTime(item.CompletedAt))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetQueue returns the playlist's queue rows ordered by orderIndex.
func (db *DB) GetQueue(playlistID string) ([]domain.QueueItem, error) {
	rows, err := db.conn.Query(`
		SELECT tune_id, playlist_id, bucket, order_index, completed_at
		FROM practice_queue WHERE playlist_id = ?
		ORDER BY order_index
	`, playlistID)
	if err != nil {
		return nil, storageErr("get queue", err)
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		var item domain.QueueItem
		var completed sql.NullString
		if err := rows.Scan(&item.TuneID, &item.PlaylistID, &item.Bucket, &item.OrderIndex, &completed); err != nil {
			return nil, storageErr("scan queue row", err)
		}
		if item.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, storageErr("parse completed_at", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate queue", err)
	}
	return items, nil
}

// CompleteQueueItem marks a queue row as evaluated for the current
// cycle. The row stays in place until the next regeneration.
func (db *DB) CompleteQueueItem(playlistID, tuneID string, at time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE practice_queue SET completed_at = ?
		WHERE playlist_id = ? AND tune_id = ?
	`, formatTime(at), playlistID, tuneID)
	return storageErr("complete queue item", err)
}
