// Package queue materializes the four-bucket practice queue from the
// local store: due today, recently lapsed, new, old lapsed.
package queue

import (
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/domain"
	"github.com/conorfennell/tunequeue/internal/scheduler"
	"github.com/conorfennell/tunequeue/internal/storage"
	"github.com/google/uuid"
)

// Order-index base offsets per bucket. Every bucket-1 row sorts before
// every bucket-2 row and so on, with room for any realistic repertoire.
const bucketStride = 1_000_000

// Builder computes and maintains a playlist's practice queue.
type Builder struct {
	store  *storage.DB
	clock  clock.Clock
	sched  *scheduler.Scheduler
	window int // delinquency window in days
	logger *slog.Logger

	mu        gosync.Mutex
	lastBuilt map[string]time.Time // playlist id to time of last rebuild
}

// NewBuilder creates a queue builder. windowDays separates "recently"
// from "long" overdue and comes from user settings, not a constant.
func NewBuilder(store *storage.DB, clk clock.Clock, sched *scheduler.Scheduler, windowDays int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		clock:     clk,
		sched:     sched,
		window:    windowDays,
		logger:    logger,
		lastBuilt: make(map[string]time.Time),
	}
}

// candidate is one repertoire entry with its effective scheduled date.
type candidate struct {
	tuneID    string
	scheduled *time.Time
}

// effectiveScheduled resolves the date used for bucketing: the explicit
// repertoire override when present, else the due date of the latest
// practice record, else nil for a never-practiced tune.
func (b *Builder) effectiveScheduled(e domain.RepertoireEntry) (*time.Time, error) {
	if e.Scheduled != nil {
		return e.Scheduled, nil
	}
	rec, err := b.store.LatestPracticeRecord(e.PlaylistID, e.TuneID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	due := rec.Due
	return &due, nil
}

// bucketNotDue marks a tune whose scheduled date has not arrived yet.
// Such tunes are left out of the materialized queue entirely: a tune
// evaluated this morning must not resurface as an active row when the
// queue is rebuilt later the same day.
const bucketNotDue = 0

// bucketFor assigns a bucket given the scheduled date and today.
// Every past or present date lands in exactly one of the four buckets;
// future dates return bucketNotDue.
func bucketFor(scheduled *time.Time, today time.Time, windowDays int) int {
	if scheduled == nil {
		return domain.BucketNew
	}
	days := clock.DaysBetween(*scheduled, today)
	switch {
	case days < 0:
		return bucketNotDue
	case days == 0:
		return domain.BucketDueToday
	case days <= windowDays:
		return domain.BucketRecentlyLapsed
	default:
		return domain.BucketOldLapsed
	}
}

// Regenerate recomputes the playlist's queue wholesale: completed rows
// drop out, remaining tunes are re-bucketed from their latest state.
func (b *Builder) Regenerate(playlistID string) ([]domain.QueueItem, error) {
	today := b.clock.Now()

	entries, err := b.store.ListRepertoire(playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repertoire: %w", err)
	}

	byBucket := make(map[int][]candidate)
	for _, e := range entries {
		scheduled, err := b.effectiveScheduled(e)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve scheduled date for %s: %w", e.TuneID, err)
		}
		bucket := bucketFor(scheduled, today, b.window)
		if bucket == bucketNotDue {
			continue
		}
		byBucket[bucket] = append(byBucket[bucket], candidate{tuneID: e.TuneID, scheduled: scheduled})
	}

	var items []domain.QueueItem
	for bucket := domain.BucketDueToday; bucket <= domain.BucketOldLapsed; bucket++ {
		cands := byBucket[bucket]
		// Stable within-bucket order: oldest scheduled first, tune id
		// as the tiebreak so regeneration is reproducible.
		sort.SliceStable(cands, func(i, j int) bool {
			a, z := cands[i], cands[j]
			switch {
			case a.scheduled == nil && z.scheduled == nil:
				return a.tuneID < z.tuneID
			case a.scheduled == nil:
				return false
			case z.scheduled == nil:
				return true
			case !a.scheduled.Equal(*z.scheduled):
				return a.scheduled.Before(*z.scheduled)
			default:
				return a.tuneID < z.tuneID
			}
		})
		for i, c := range cands {
			items = append(items, domain.QueueItem{
				TuneID:     c.tuneID,
				PlaylistID: playlistID,
				Bucket:     bucket,
				OrderIndex: bucket*bucketStride + i,
			})
		}
	}

	if err := b.store.ReplaceQueue(playlistID, items); err != nil {
		return nil, fmt.Errorf("failed to materialize queue: %w", err)
	}

	b.mu.Lock()
	b.lastBuilt[playlistID] = today
	b.mu.Unlock()

	b.logger.Info("practice queue regenerated", "playlist", playlistID, "items", len(items))
	return items, nil
}

// RefreshIfStale regenerates the queue when the calendar day has moved
// past the last rebuild. A long-running process crosses midnight with
// yesterday's buckets materialized; readers call this first so overdue
// tunes re-bucket without an explicit trigger.
func (b *Builder) RefreshIfStale(playlistID string) error {
	b.mu.Lock()
	last, built := b.lastBuilt[playlistID]
	b.mu.Unlock()

	if built && !clock.Day(b.clock.Now()).After(clock.Day(last)) {
		return nil
	}
	_, err := b.Regenerate(playlistID)
	return err
}

// Active returns the queue rows not yet completed this cycle, in order.
func (b *Builder) Active(playlistID string) ([]domain.QueueItem, error) {
	items, err := b.store.GetQueue(playlistID)
	if err != nil {
		return nil, err
	}
	active := items[:0]
	for _, item := range items {
		if item.CompletedAt == nil {
			active = append(active, item)
		}
	}
	return active, nil
}

// SubmitEvaluation records a practice evaluation: it advances the
// memory model, appends the practice record through the mutation path,
// and marks the queue row completed for this cycle.
func (b *Builder) SubmitEvaluation(playlistID, tuneID string, rating domain.Rating) (domain.PracticeRecord, error) {
	if !rating.Valid() {
		return domain.PracticeRecord{}, fmt.Errorf("invalid rating %d", rating)
	}
	now := b.clock.Now()

	prev, err := b.store.LatestPracticeRecord(playlistID, tuneID)
	if err != nil {
		return domain.PracticeRecord{}, fmt.Errorf("failed to load practice history: %w", err)
	}

	state := b.sched.Schedule(scheduler.StateFromRecord(prev), rating, now)
	record := scheduler.NewRecord(tuneID, playlistID, rating, state, now)
	record.ID = uuid.NewString()

	if err := b.store.AddPracticeRecord(record); err != nil {
		return domain.PracticeRecord{}, fmt.Errorf("failed to store practice record: %w", err)
	}
	if err := b.store.CompleteQueueItem(playlistID, tuneID, now); err != nil {
		return domain.PracticeRecord{}, fmt.Errorf("failed to complete queue item: %w", err)
	}

	b.logger.Info("evaluation recorded",
		"tune", tuneID, "rating", rating.String(), "state", record.State.String(), "due", record.Due)
	return record, nil
}
