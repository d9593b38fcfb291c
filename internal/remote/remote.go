// Package remote defines the authoritative store contract the sync
// engine pushes to and pulls from, with an in-memory reference
// implementation and a JSON-over-HTTP client/server pair.
package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// Row is one remote record, addressed by (Kind, ID). Genre and OwnerID
// drive the pull-side visibility predicate; for annotation rows they
// are stamped from the parent tune at push time.
type Row struct {
	Kind           domain.EntityKind `json:"kind"`
	ID             string            `json:"id"`
	Genre          string            `json:"genre,omitempty"`
	OwnerID        string            `json:"owner_id,omitempty"`
	Payload        json.RawMessage   `json:"payload"`
	LastModifiedAt time.Time         `json:"last_modified_at"`
}

// Query selects rows visible to a user: any row whose genre is in
// Genres or whose owner is OwnerID, changed strictly after Since.
// A zero Since asks for a full resync.
type Query struct {
	Genres  []string  `json:"genres"`
	OwnerID string    `json:"owner_id"`
	Since   time.Time `json:"since"`
}

// Result carries the matched rows plus the watermark the next
// incremental pull should resume from.
type Result struct {
	Rows      []Row     `json:"rows"`
	Watermark time.Time `json:"watermark"`
}

// Store is the remote-store contract. Implementations must stamp
// LastModifiedAt on every write: a row updated without advancing it is
// invisible to incremental pulls, which breaks the watermark contract.
type Store interface {
	// Upsert writes a row keyed by (row.Kind, row.ID). Replaying a
	// delivered-but-unacknowledged upsert must not duplicate effects.
	Upsert(ctx context.Context, row Row) error

	// Delete removes a row. Deleting an absent row is a no-op.
	Delete(ctx context.Context, kind domain.EntityKind, id string) error

	// Fetch returns rows matching the query's visibility predicate.
	Fetch(ctx context.Context, q Query) (Result, error)
}
