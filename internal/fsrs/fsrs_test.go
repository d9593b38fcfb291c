package fsrs

import (
	"math"
	"testing"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

func TestNextStability(t *testing.T) {
	params := DefaultParams()
	stability := 10.0
	difficulty := 5.0

	// S' = 10 * (1 + 0.2 * 5^(-0.5) * 10^0.1 * (e^(4 * (1-0.9)) - 1))
	// S' = 10 * (1 + 0.2 * 0.447 * 1.259 * (e^0.4 - 1))
	// S' = 10 * (1 + 0.112 * (1.4918 - 1))
	// S' = 10 * (1 + 0.112 * 0.4918)
	// S' = 10 * (1 + 0.055)
	// S' = 10 * 1.055 = 10.55
	expected := 10.55

	newStability := params.nextStability(stability, difficulty)

	if math.Abs(newStability-expected) > 0.01 {
		t.Errorf("Expected new stability to be around %.2f, but got %.2f", expected, newStability)
	}
}

func TestAdvance(t *testing.T) {
	model := New(nil)
	now := time.Now()
	reviewState := domain.PracticeState{
		State:      domain.StateReview,
		Stability:  10,
		Difficulty: 5,
	}

	t.Run("Review with Again", func(t *testing.T) {
		next := model.Advance(reviewState, domain.Again, now)
		if next.Stability != 1 {
			t.Errorf("Expected stability to be reset to 1, but got %.2f", next.Stability)
		}
		if next.Difficulty <= reviewState.Difficulty {
			t.Errorf("Expected difficulty to increase, but it did not. Got %.2f", next.Difficulty)
		}
	})

	t.Run("Review with Good", func(t *testing.T) {
		next := model.Advance(reviewState, domain.Good, now)
		if next.Stability <= reviewState.Stability {
			t.Errorf("Expected stability to increase, but it did not. Got %.2f", next.Stability)
		}
		if next.Difficulty != reviewState.Difficulty {
			t.Errorf("Expected difficulty to remain the same for 'Good', but it changed to %.2f", next.Difficulty)
		}
	})

	t.Run("Review with Hard", func(t *testing.T) {
		next := model.Advance(reviewState, domain.Hard, now)
		if next.Difficulty <= reviewState.Difficulty {
			t.Errorf("Expected difficulty to increase for 'Hard', but it did not. Got %.2f", next.Difficulty)
		}
	})

	t.Run("Interval ordering Hard <= Good <= Easy", func(t *testing.T) {
		hard := model.Advance(reviewState, domain.Hard, now)
		good := model.Advance(reviewState, domain.Good, now)
		easy := model.Advance(reviewState, domain.Easy, now)
		if hard.Interval > good.Interval || good.Interval > easy.Interval {
			t.Errorf("Expected interval ordering hard <= good <= easy, got %d, %d, %d",
				hard.Interval, good.Interval, easy.Interval)
		}
	})

	t.Run("First evaluation seeds by rating", func(t *testing.T) {
		fresh := domain.PracticeState{State: domain.StateNew}
		testCases := []struct {
			rating            domain.Rating
			expectedStability float64
		}{
			{domain.Again, 1},
			{domain.Hard, 1},
			{domain.Good, 2},
			{domain.Easy, 4},
		}
		for _, tc := range testCases {
			next := model.Advance(fresh, tc.rating, now)
			if next.Stability != tc.expectedStability {
				t.Errorf("Rating %s: expected initial stability %.0f, but got %.2f",
					tc.rating, tc.expectedStability, next.Stability)
			}
			if next.Interval < 1 {
				t.Errorf("Rating %s: expected interval of at least 1 day, but got %d", tc.rating, next.Interval)
			}
		}
	})

	t.Run("Difficulty is capped at 10", func(t *testing.T) {
		state := reviewState
		for i := 0; i < 20; i++ {
			state = model.Advance(state, domain.Again, now)
			state.State = domain.StateReview
		}
		if state.Difficulty > 10 {
			t.Errorf("Expected difficulty to be capped at 10, but got %.2f", state.Difficulty)
		}
	})
}
