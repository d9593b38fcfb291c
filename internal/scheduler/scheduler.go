// Package scheduler advances a tune's memory state for each practice
// evaluation. The memory-model math is a plugin; the core owns the
// state machine, the lapse count, and the minimum-next-day floor.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// MemoryModel computes the next stability, difficulty, and interval
// for an evaluation. A model may set Due directly to override the
// computed date entirely; the core still clamps the result to the
// minimum-next-day floor.
type MemoryModel interface {
	Advance(prev domain.PracticeState, rating domain.Rating, now time.Time) domain.PracticeState
}

// Scheduler wraps a MemoryModel with the invariants every produced
// record must satisfy: due strictly after now by at least one day and
// interval >= 1.
type Scheduler struct {
	model  MemoryModel
	logger *slog.Logger
}

// New creates a Scheduler. If logger is nil, slog.Default is used.
func New(model MemoryModel, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{model: model, logger: logger}
}

// Schedule produces the next memory state for an evaluation at now.
func (s *Scheduler) Schedule(prev domain.PracticeState, rating domain.Rating, now time.Time) domain.PracticeState {
	next := s.model.Advance(prev, rating, now)

	next.State = nextMemoryState(prev.State, rating)
	next.Lapses = prev.Lapses
	if prev.State == domain.StateReview && rating == domain.Again {
		next.Lapses++
	}

	return s.clamp(next, now)
}

// nextMemoryState is the learning-phase state machine: review
// continues indefinitely, a lapse drops back to learning.
func nextMemoryState(prev domain.MemoryState, rating domain.Rating) domain.MemoryState {
	switch prev {
	case domain.StateNew:
		if rating == domain.Easy {
			return domain.StateReview
		}
		return domain.StateLearning
	case domain.StateLearning:
		if rating == domain.Good || rating == domain.Easy {
			return domain.StateReview
		}
		return domain.StateLearning
	case domain.StateReview:
		if rating == domain.Again {
			return domain.StateLearning
		}
		return domain.StateReview
	}
	return domain.StateLearning
}

// clamp enforces the floor: the model can legitimately produce sub-day
// intervals for first evaluations, so the correction is routine at
// info level below one day and a warning only when the model went
// backwards in time.
func (s *Scheduler) clamp(next domain.PracticeState, now time.Time) domain.PracticeState {
	if next.Interval < 1 {
		next.Interval = 1
	}
	if next.Due.IsZero() {
		next.Due = now.Add(time.Duration(next.Interval) * 24 * time.Hour)
	}
	floor := now.Add(24 * time.Hour)
	if next.Due.Before(floor) {
		if next.Due.Before(now) || next.Due.Equal(now) {
			s.logger.Warn("memory model produced due date not after now, clamping",
				"due", next.Due, "now", now)
		}
		next.Due = floor
	}
	return next
}

// NewRecord builds the practice record for an evaluation, carrying the
// advanced state. ID assignment is left to the caller.
func NewRecord(tuneID, playlistID string, rating domain.Rating, state domain.PracticeState, now time.Time) domain.PracticeRecord {
	return domain.PracticeRecord{
		TuneID:      tuneID,
		PlaylistID:  playlistID,
		PracticedAt: now,
		Rating:      rating,
		State:       state.State,
		Stability:   state.Stability,
		Difficulty:  state.Difficulty,
		Interval:    state.Interval,
		Due:         state.Due,
		Lapses:      state.Lapses,
	}
}

// StateFromRecord recovers the memory state carried by a record, or
// the zero New state when the tune has never been practiced.
func StateFromRecord(r *domain.PracticeRecord) domain.PracticeState {
	if r == nil {
		return domain.PracticeState{State: domain.StateNew}
	}
	return domain.PracticeState{
		State:      r.State,
		Stability:  r.Stability,
		Difficulty: r.Difficulty,
		Interval:   r.Interval,
		Lapses:     r.Lapses,
		Due:        r.Due,
	}
}
