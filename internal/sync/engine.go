// Package sync orchestrates delivery between the local store and the
// remote authoritative store: push drains the outbox in order, pull
// merges remote rows behind a watermark, and a purge pass evicts
// annotations that fell out of the user's genre selection.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/domain"
	"github.com/conorfennell/tunequeue/internal/purge"
	"github.com/conorfennell/tunequeue/internal/remote"
	"github.com/conorfennell/tunequeue/internal/storage"
)

// State names the engine's position in a sync cycle.
type State int

const (
	StateIdle State = iota
	StatePushing
	StatePulling
	StatePurging
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	case StatePurging:
		return "purging"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Sync bookkeeping keys in the local store.
const (
	metaWatermark       = "pull_watermark"
	metaInitialComplete = "initial_sync_complete"
)

// Engine runs sync cycles. At most one cycle is in flight at a time;
// a re-entrant request while one runs is coalesced, not queued.
type Engine struct {
	store  *storage.DB
	remote remote.Store
	purger *purge.Purger
	clock  clock.Clock
	logger *slog.Logger

	userID     string
	playlistID string

	mu           gosync.Mutex
	genres       map[string]bool
	state        State
	online       bool
	inFlight     bool
	cancel       context.CancelFunc
	lastSyncedAt time.Time
}

// New creates a sync engine. The engine starts online and idle.
func New(store *storage.DB, rs remote.Store, purger *purge.Purger, clk clock.Clock,
	userID, playlistID string, genres []string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]bool, len(genres))
	for _, g := range genres {
		set[g] = true
	}
	return &Engine{
		store:      store,
		remote:     rs,
		purger:     purger,
		clock:      clk,
		logger:     logger,
		userID:     userID,
		playlistID: playlistID,
		genres:     set,
		online:     true,
	}
}

// State returns the engine's current cycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastSyncedAt returns when the last clean cycle finished.
func (e *Engine) LastSyncedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncedAt
}

// SetGenres replaces the genre selection. The caller should follow
// with a Sync so deselected genres are purged and new ones pull down.
func (e *Engine) SetGenres(genres []string) {
	set := make(map[string]bool, len(genres))
	for _, g := range genres {
		set[g] = true
	}
	e.mu.Lock()
	e.genres = set
	e.mu.Unlock()
}

// GoOffline pauses the engine and cancels any in-flight cycle. The
// cancelled cycle leaves the outbox and watermark consistent: unacked
// entries stay queued, the watermark only moves after a full apply.
func (e *Engine) GoOffline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = false
	e.state = StatePaused
	if e.cancel != nil {
		e.cancel()
	}
}

// GoOnline resumes the engine. The caller should follow with a Sync so
// writes queued while offline drain promptly.
func (e *Engine) GoOnline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = true
	if e.state == StatePaused {
		e.state = StateIdle
	}
}

// begin claims the single in-flight slot. ok is false when a cycle is
// already running (the request coalesces) or the engine is paused.
func (e *Engine) begin(ctx context.Context) (context.Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.online || e.inFlight {
		return ctx, false
	}
	e.inFlight = true
	cycleCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	return cycleCtx, true
}

func (e *Engine) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.online {
		e.state = StateIdle
	} else {
		e.state = StatePaused
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Sync runs one full cycle: push, pull, purge. Returns nil when the
// request was coalesced into a running cycle or the engine is paused.
func (e *Engine) Sync(ctx context.Context) error {
	cycleCtx, ok := e.begin(ctx)
	if !ok {
		return nil
	}
	defer e.end()

	e.setState(StatePushing)
	if err := e.push(cycleCtx); err != nil {
		return err
	}

	e.setState(StatePulling)
	if err := e.pull(cycleCtx, false); err != nil {
		return err
	}

	e.setState(StatePurging)
	if err := e.runPurge(); err != nil {
		return err
	}

	e.mu.Lock()
	e.lastSyncedAt = e.clock.Now()
	e.mu.Unlock()
	return nil
}

// ForceSyncUp pushes the outbox without pulling.
func (e *Engine) ForceSyncUp(ctx context.Context) error {
	cycleCtx, ok := e.begin(ctx)
	if !ok {
		return nil
	}
	defer e.end()
	e.setState(StatePushing)
	return e.push(cycleCtx)
}

// ForceSyncDown runs a full (non-incremental) pull plus the purge pass.
func (e *Engine) ForceSyncDown(ctx context.Context) error {
	cycleCtx, ok := e.begin(ctx)
	if !ok {
		return nil
	}
	defer e.end()
	e.setState(StatePulling)
	if err := e.pull(cycleCtx, true); err != nil {
		return err
	}
	e.setState(StatePurging)
	return e.runPurge()
}

// IsInitialSyncComplete reports whether at least one pull has fully
// applied since the store was created.
func (e *Engine) IsInitialSyncComplete() (bool, error) {
	v, err := e.store.GetMeta(metaInitialComplete)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// push drains the outbox in sequence order. A failure for one row
// halts that row's later entries, preserving per-row order, but does
// not block independent rows.
func (e *Engine) push(ctx context.Context) error {
	entries, err := e.store.PendingOutbox()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	failedRows := make(map[domain.RowKey]bool)
	var firstErr error
	pushed := 0

	for _, entry := range entries {
		key := domain.RowKey{Kind: entry.Kind, RowID: entry.RowID}
		if failedRows[key] {
			continue
		}

		if err := e.deliver(ctx, entry); err != nil {
			failedRows[key] = true
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to deliver %s/%s: %w", entry.Kind, entry.RowID, err)
			}
			e.logger.Warn("push failed for row, will retry",
				"kind", entry.Kind, "row", entry.RowID, "error", err)
			continue
		}

		if err := e.store.AckOutbox(entry.ID); err != nil {
			return err
		}
		pushed++
	}

	if pushed > 0 {
		e.logger.Info("push complete", "delivered", pushed, "failed_rows", len(failedRows))
	}
	return firstErr
}

// deliver sends one outbox entry to the remote. Only remote-call
// failures are classified as transport; a payload that cannot be
// decoded is a data error and will never heal under retry backoff.
func (e *Engine) deliver(ctx context.Context, entry domain.OutboxEntry) error {
	if entry.Op == domain.OpDelete {
		if err := e.remote.Delete(ctx, entry.Kind, entry.RowID); err != nil {
			return &TransportError{Err: err}
		}
		return nil
	}
	row, err := e.rowForEntry(entry)
	if err != nil {
		return err
	}
	if err := e.remote.Upsert(ctx, row); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// rowForEntry stamps the visibility metadata the remote filters on.
// Annotations inherit genre and owner from their parent tune; rows
// that only exist for this user (repertoire, practice) carry the user
// as owner so they always sync regardless of genre.
func (e *Engine) rowForEntry(entry domain.OutboxEntry) (remote.Row, error) {
	row := remote.Row{
		Kind:    entry.Kind,
		ID:      entry.RowID,
		Payload: entry.Payload,
	}

	switch entry.Kind {
	case domain.KindTune:
		var t domain.Tune
		if err := json.Unmarshal(entry.Payload, &t); err != nil {
			return row, fmt.Errorf("failed to decode tune payload: %w", err)
		}
		row.Genre = t.Genre
		row.OwnerID = t.OwnerID
	case domain.KindNote, domain.KindReference:
		var parent struct {
			TuneID string `json:"tune_id"`
		}
		if err := json.Unmarshal(entry.Payload, &parent); err != nil {
			return row, fmt.Errorf("failed to decode annotation payload: %w", err)
		}
		tune, err := e.store.GetTune(parent.TuneID)
		if err != nil {
			// Parent not cached locally; keep the row reachable for
			// this user rather than invisible to everyone.
			row.OwnerID = e.userID
			return row, nil
		}
		row.Genre = tune.Genre
		row.OwnerID = tune.OwnerID
	default:
		row.OwnerID = e.userID
	}
	return row, nil
}

// pull fetches remote rows by the genre-or-owner predicate and merges
// them. Rows with pending local writes are skipped (the in-flight edit
// is preferred until acknowledged); the watermark only advances when
// every fetched row was applied or deliberately skipped.
func (e *Engine) pull(ctx context.Context, full bool) error {
	var since time.Time
	if !full {
		raw, err := e.store.GetMeta(metaWatermark)
		if err != nil {
			return err
		}
		if raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				since = t
			} else {
				e.logger.Warn("stale pull watermark, falling back to full resync", "value", raw)
			}
		}
	}

	e.mu.Lock()
	genres := make([]string, 0, len(e.genres))
	for g := range e.genres {
		genres = append(genres, g)
	}
	e.mu.Unlock()

	res, err := e.remote.Fetch(ctx, remote.Query{
		Genres:  genres,
		OwnerID: e.userID,
		Since:   since,
	})
	if err != nil {
		return &TransportError{Err: fmt.Errorf("pull fetch failed: %w", err)}
	}

	applied, skipped := 0, 0
	for _, row := range res.Rows {
		pending, err := e.store.HasPendingForRow(row.Kind, row.ID)
		if err != nil {
			return err
		}
		if pending {
			skipped++
			e.logger.Info("conflict skipped", "kind", row.Kind, "row", row.ID, "reason", ErrConflictSkipped)
			continue
		}
		if err := e.store.ApplyRemote(row.Kind, row.Payload); err != nil {
			// Watermark untouched: the next cycle re-fetches from the
			// same point and resumes losslessly.
			return err
		}
		applied++
	}

	if !res.Watermark.IsZero() {
		if err := e.store.SetMeta(metaWatermark, res.Watermark.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if err := e.store.SetMeta(metaInitialComplete, "1"); err != nil {
		return err
	}

	if applied > 0 || skipped > 0 {
		e.logger.Info("pull complete", "applied", applied, "conflict_skipped", skipped)
	}
	return nil
}

func (e *Engine) runPurge() error {
	e.mu.Lock()
	genres := make(map[string]bool, len(e.genres))
	for g := range e.genres {
		genres[g] = true
	}
	e.mu.Unlock()

	if _, err := e.purger.Run(e.userID, e.playlistID, genres); err != nil {
		return fmt.Errorf("orphan purge failed, retrying next pull: %w", err)
	}
	return nil
}

// Run drives periodic sync until ctx is cancelled. Transport failures
// back off exponentially (capped) and are never surfaced as data loss;
// other errors are logged and retried on the regular interval.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	backoff := interval

	for {
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := e.Sync(ctx)
		switch {
		case err == nil:
			backoff = interval
		case IsTransport(err):
			backoff = min(backoff*2, 30*time.Minute)
			e.logger.Warn("sync transport failure, backing off", "retry_in", backoff, "error", err)
		default:
			backoff = interval
			e.logger.Error("sync cycle failed", "error", err)
		}
	}
}
