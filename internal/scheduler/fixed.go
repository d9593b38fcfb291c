package scheduler

import (
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// FixedModel schedules every successful evaluation a constant number
// of days out, overriding the computed interval entirely. Used for
// deterministic tests and algorithm experiments; its output is still
// subject to the scheduler's minimum-next-day floor.
type FixedModel struct {
	Days int
}

// Advance implements MemoryModel.
func (m FixedModel) Advance(prev domain.PracticeState, rating domain.Rating, now time.Time) domain.PracticeState {
	next := prev
	next.Interval = m.Days
	if rating == domain.Again {
		next.Interval = 1
	}
	next.Due = now.Add(time.Duration(next.Interval) * 24 * time.Hour)
	return next
}
