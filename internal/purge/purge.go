// Package purge removes locally-cached annotation rows whose parent
// tune is no longer visible under the current genre selection.
package purge

import (
	"fmt"
	"log/slog"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/storage"
)

// Result reports what a purge pass removed. Both counts being zero on
// a repeated run is the idempotence invariant.
type Result struct {
	OrphanedNotes      int
	OrphanedReferences int
	RepertoireRemoved  int
}

// Purger evicts orphaned annotations after a pull. Private tunes
// (owned by the user) are never candidates, whatever the genre
// selection says: ownership outranks genre filtering.
type Purger struct {
	store  *storage.DB
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Purger.
func New(store *storage.DB, clk clock.Clock, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{store: store, clock: clk, logger: logger}
}

// Run executes one purge pass. A failed pass returns the error without
// reporting partial work as clean; the sync engine retries it on the
// next pull.
func (p *Purger) Run(userID, playlistID string, genres map[string]bool) (Result, error) {
	var res Result

	orphans, err := p.store.OrphanedTuneIDs(userID, genres)
	if err != nil {
		return res, fmt.Errorf("failed to collect orphaned tunes: %w", err)
	}
	if len(orphans) == 0 {
		return res, nil
	}

	now := p.clock.Now()
	res.OrphanedNotes, res.OrphanedReferences, err = p.store.PurgeAnnotations(orphans, now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to purge annotations: %w", err)
	}

	res.RepertoireRemoved, err = p.store.PurgeRepertoire(playlistID, orphans, now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to purge repertoire: %w", err)
	}

	if res.OrphanedNotes > 0 || res.OrphanedReferences > 0 || res.RepertoireRemoved > 0 {
		p.logger.Info("orphan purge complete",
			"tunes", len(orphans),
			"notes", res.OrphanedNotes,
			"references", res.OrphanedReferences,
			"repertoire", res.RepertoireRemoved,
		)
	}
	return res, nil
}
