package remote

import (
	"context"
	"sync"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// MemoryStore is the reference Store implementation. It backs the HTTP
// server and doubles as the remote in engine tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.RowKey]Row
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory remote store. nowFn
// overrides the write-stamp clock; nil uses time.Now.
func NewMemoryStore(nowFn func() time.Time) *MemoryStore {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemoryStore{
		rows: make(map[domain.RowKey]Row),
		now:  nowFn,
	}
}

// Upsert implements Store. The watermark column is stamped here, on
// every write, so incremental pulls always see the change.
func (m *MemoryStore) Upsert(ctx context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.LastModifiedAt = m.now()
	m.rows[domain.RowKey{Kind: row.Kind, RowID: row.ID}] = row
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, kind domain.EntityKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, domain.RowKey{Kind: kind, RowID: id})
	return nil
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, q Query) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	genres := make(map[string]bool, len(q.Genres))
	for _, g := range q.Genres {
		genres[g] = true
	}

	res := Result{Watermark: q.Since}
	for _, row := range m.rows {
		visible := genres[row.Genre] || (q.OwnerID != "" && row.OwnerID == q.OwnerID)
		if !visible {
			continue
		}
		if !q.Since.IsZero() && !row.LastModifiedAt.After(q.Since) {
			continue
		}
		res.Rows = append(res.Rows, row)
		if row.LastModifiedAt.After(res.Watermark) {
			res.Watermark = row.LastModifiedAt
		}
	}
	return res, nil
}

// Get returns a stored row for test assertions.
func (m *MemoryStore) Get(kind domain.EntityKind, id string) (Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[domain.RowKey{Kind: kind, RowID: id}]
	return row, ok
}

// Len returns the number of stored rows.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}
