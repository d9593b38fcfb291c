package domain

import "time"

// Rating is the user's evaluation of a practice run.
// The values correspond to FSRS-4.5 ratings:
// 1: Again (Incorrect)
// 2: Hard
// 3: Good
// 4: Easy
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// Valid reports whether r is one of the four defined ratings.
func (r Rating) Valid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	switch r {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	default:
		return "unknown"
	}
}

// MemoryState is the learning phase of a tune's memory model.
type MemoryState int

const (
	StateNew      MemoryState = 0
	StateLearning MemoryState = 1
	StateReview   MemoryState = 2
)

func (s MemoryState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	default:
		return "unknown"
	}
}

// PracticeState holds the memory-model values carried between
// evaluations of the same tune.
type PracticeState struct {
	State      MemoryState
	Stability  float64
	Difficulty float64
	Interval   int // days, always >= 1 once practiced
	Lapses     int
	Due        time.Time
}

// PracticeRecord is one evaluation event. Records are append-only:
// a newer record supersedes an older one, nothing is edited in place.
type PracticeRecord struct {
	ID          string      `json:"id"`
	TuneID      string      `json:"tune_id"`
	PlaylistID  string      `json:"playlist_id"`
	PracticedAt time.Time   `json:"practiced_at"`
	Rating      Rating      `json:"rating"`
	State       MemoryState `json:"state"`
	Stability   float64     `json:"stability"`
	Difficulty  float64     `json:"difficulty"`
	Interval    int         `json:"interval"`
	Due         time.Time   `json:"due"`
	Lapses      int         `json:"lapses"`
}

// QueueItem is one materialized row of the practice queue.
type QueueItem struct {
	TuneID      string
	PlaylistID  string
	Bucket      int // 1: due today, 2: recently lapsed, 3: new, 4: old lapsed
	OrderIndex  int
	CompletedAt *time.Time
}

// Practice queue buckets.
const (
	BucketDueToday       = 1
	BucketRecentlyLapsed = 2
	BucketNew            = 3
	BucketOldLapsed      = 4
)
