package scheduler

import (
	"testing"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// stubModel returns a fixed next state so the tests can exercise the
// core's clamping and state machine in isolation.
type stubModel struct {
	next domain.PracticeState
}

func (m stubModel) Advance(prev domain.PracticeState, rating domain.Rating, now time.Time) domain.PracticeState {
	return m.next
}

func TestScheduleStateTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		prev     domain.MemoryState
		rating   domain.Rating
		expected domain.MemoryState
	}{
		{"New with Again stays learning", domain.StateNew, domain.Again, domain.StateLearning},
		{"New with Good enters learning", domain.StateNew, domain.Good, domain.StateLearning},
		{"New with Easy skips to review", domain.StateNew, domain.Easy, domain.StateReview},
		{"Learning with Again stays learning", domain.StateLearning, domain.Again, domain.StateLearning},
		{"Learning with Hard stays learning", domain.StateLearning, domain.Hard, domain.StateLearning},
		{"Learning with Good graduates", domain.StateLearning, domain.Good, domain.StateReview},
		{"Learning with Easy graduates", domain.StateLearning, domain.Easy, domain.StateReview},
		{"Review with Again lapses to learning", domain.StateReview, domain.Again, domain.StateLearning},
		{"Review with Good stays in review", domain.StateReview, domain.Good, domain.StateReview},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(stubModel{next: domain.PracticeState{Interval: 3}}, nil)
			next := s.Schedule(domain.PracticeState{State: tc.prev}, tc.rating, now)
			if next.State != tc.expected {
				t.Errorf("Expected state %d, but got %d", tc.expected, next.State)
			}
		})
	}
}

func TestScheduleLapses(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(stubModel{next: domain.PracticeState{Interval: 1}}, nil)

	t.Run("Again from review increments lapses", func(t *testing.T) {
		prev := domain.PracticeState{State: domain.StateReview, Lapses: 2}
		next := s.Schedule(prev, domain.Again, now)
		if next.Lapses != 3 {
			t.Errorf("Expected 3 lapses, but got %d", next.Lapses)
		}
	})

	t.Run("Again from new does not count as a lapse", func(t *testing.T) {
		prev := domain.PracticeState{State: domain.StateNew}
		next := s.Schedule(prev, domain.Again, now)
		if next.Lapses != 0 {
			t.Errorf("Expected 0 lapses, but got %d", next.Lapses)
		}
	})

	t.Run("Good from review preserves the lapse count", func(t *testing.T) {
		prev := domain.PracticeState{State: domain.StateReview, Lapses: 5}
		next := s.Schedule(prev, domain.Good, now)
		if next.Lapses != 5 {
			t.Errorf("Expected 5 lapses, but got %d", next.Lapses)
		}
	})
}

func TestScheduleClamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	floor := now.Add(24 * time.Hour)

	t.Run("Sub-day interval is raised to one day", func(t *testing.T) {
		s := New(stubModel{next: domain.PracticeState{Interval: 0}}, nil)
		next := s.Schedule(domain.PracticeState{}, domain.Good, now)
		if next.Interval != 1 {
			t.Errorf("Expected interval 1, but got %d", next.Interval)
		}
		if !next.Due.Equal(floor) {
			t.Errorf("Expected due %v, but got %v", floor, next.Due)
		}
	})

	t.Run("Due in the past is clamped to tomorrow", func(t *testing.T) {
		s := New(stubModel{next: domain.PracticeState{Interval: 1, Due: now.Add(-time.Hour)}}, nil)
		next := s.Schedule(domain.PracticeState{}, domain.Good, now)
		if next.Due.Before(floor) {
			t.Errorf("Expected due on or after %v, but got %v", floor, next.Due)
		}
	})

	t.Run("Due beyond tomorrow is left alone", func(t *testing.T) {
		due := now.Add(10 * 24 * time.Hour)
		s := New(stubModel{next: domain.PracticeState{Interval: 10, Due: due}}, nil)
		next := s.Schedule(domain.PracticeState{}, domain.Good, now)
		if !next.Due.Equal(due) {
			t.Errorf("Expected due %v, but got %v", due, next.Due)
		}
	})

	t.Run("Zero due is derived from the interval", func(t *testing.T) {
		s := New(stubModel{next: domain.PracticeState{Interval: 4}}, nil)
		next := s.Schedule(domain.PracticeState{}, domain.Good, now)
		expected := now.Add(4 * 24 * time.Hour)
		if !next.Due.Equal(expected) {
			t.Errorf("Expected due %v, but got %v", expected, next.Due)
		}
	})
}

func TestFixedModel(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := New(FixedModel{Days: 7}, nil)

	t.Run("Good schedules the fixed interval", func(t *testing.T) {
		next := s.Schedule(domain.PracticeState{State: domain.StateReview}, domain.Good, now)
		if next.Interval != 7 {
			t.Errorf("Expected interval 7, but got %d", next.Interval)
		}
		if !next.Due.Equal(now.Add(7 * 24 * time.Hour)) {
			t.Errorf("Expected due in 7 days, but got %v", next.Due)
		}
	})

	t.Run("Again falls back to one day", func(t *testing.T) {
		next := s.Schedule(domain.PracticeState{State: domain.StateReview}, domain.Again, now)
		if next.Interval != 1 {
			t.Errorf("Expected interval 1, but got %d", next.Interval)
		}
	})
}

func TestStateFromRecord(t *testing.T) {
	t.Run("Nil record yields the new state", func(t *testing.T) {
		state := StateFromRecord(nil)
		if state.State != domain.StateNew {
			t.Errorf("Expected the new state, but got %d", state.State)
		}
	})

	t.Run("Record fields are carried over", func(t *testing.T) {
		due := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
		r := &domain.PracticeRecord{
			State: domain.StateReview, Stability: 12.5, Difficulty: 6,
			Interval: 13, Lapses: 1, Due: due,
		}
		state := StateFromRecord(r)
		if state.Stability != 12.5 || state.Interval != 13 || !state.Due.Equal(due) {
			t.Errorf("Expected record fields to carry over, but got %+v", state)
		}
	})
}
