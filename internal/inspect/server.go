// Package inspect exposes the local inspection API consumed by test
// and ops tooling: annotation counts, orphan counts, schedule edits,
// and force-sync triggers. It is not used by the core itself.
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/conorfennell/tunequeue/internal/clock"
	"github.com/conorfennell/tunequeue/internal/config"
	"github.com/conorfennell/tunequeue/internal/queue"
	"github.com/conorfennell/tunequeue/internal/storage"
	tqsync "github.com/conorfennell/tunequeue/internal/sync"
)

// Server holds the dependencies for the inspection HTTP API.
type Server struct {
	store    *storage.DB
	engine   *tqsync.Engine
	builder  *queue.Builder
	clock    clock.Clock
	settings config.Settings
	router   *http.ServeMux
	logger   *slog.Logger
}

// NewServer creates and configures an inspection server.
func NewServer(store *storage.DB, engine *tqsync.Engine, builder *queue.Builder,
	clk clock.Clock, settings config.Settings, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    store,
		engine:   engine,
		builder:  builder,
		clock:    clk,
		settings: settings,
		router:   http.NewServeMux(),
		logger:   logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /annotations/counts", s.handleAnnotationCounts)
	s.router.HandleFunc("GET /annotations/orphaned", s.handleOrphanedCounts)
	s.router.HandleFunc("GET /tunes/by-genre/{genre}", s.handleTuneByGenre)
	s.router.HandleFunc("POST /schedule", s.handleUpdateScheduled)
	s.router.HandleFunc("POST /seed/review", s.handleSeedAddToReview)
	s.router.HandleFunc("POST /sync/up", s.handleForceSyncUp)
	s.router.HandleFunc("POST /sync/down", s.handleForceSyncDown)
	s.router.HandleFunc("GET /sync/status", s.handleSyncStatus)
	s.router.HandleFunc("GET /queue", s.handleQueue)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) handleAnnotationCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.GetAnnotationCounts(r.URL.Query().Get("tune_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, counts)
}

func (s *Server) handleOrphanedCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.GetOrphanedAnnotationCounts(s.settings.UserID, s.settings.GenreSet())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, counts)
}

func (s *Server) handleTuneByGenre(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.GetTuneIDByGenre(r.PathValue("genre"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"id": id})
}

func (s *Server) handleUpdateScheduled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaylistID string                    `json:"playlist_id"`
		Updates    []storage.ScheduledUpdate `json:"updates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	updated, err := s.store.UpdateScheduledDates(req.PlaylistID, req.Updates, s.clock.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]int{"updated": updated})
}

func (s *Server) handleSeedAddToReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaylistID string   `json:"playlist_id"`
		TuneIDs    []string `json:"tune_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.SeedAddToReview(req.PlaylistID, req.TuneIDs, s.clock.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Seeding forces a queue rebuild so new entries surface immediately.
	if _, err := s.builder.Regenerate(req.PlaylistID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceSyncUp(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceSyncUp(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceSyncDown(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceSyncDown(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	complete, err := s.engine.IsInitialSyncComplete()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pending, err := s.store.PendingOutboxCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{
		"state":                 s.engine.State().String(),
		"initial_sync_complete": complete,
		"pending_mutations":     pending,
		"last_synced_at":        s.engine.LastSyncedAt(),
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	playlistID := r.URL.Query().Get("playlist_id")
	if playlistID == "" {
		playlistID = s.settings.PlaylistID
	}
	// The process may have crossed midnight since the last rebuild, in
	// which case yesterday's buckets are stale.
	if err := s.builder.RefreshIfStale(playlistID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items, err := s.builder.Active(playlistID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, items)
}
