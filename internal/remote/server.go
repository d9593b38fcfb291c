package remote

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// Server exposes a Store over JSON/HTTP:
//
//	PUT    /rows            upsert a row
//	DELETE /rows/{kind}/{id} delete a row
//	POST   /fetch           query rows by genre/owner since a watermark
type Server struct {
	store  Store
	router *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an HTTP front for a Store.
func NewServer(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		router: http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("PUT /rows", s.handleUpsert)
	s.router.HandleFunc("DELETE /rows/{kind}/{id}", s.handleDelete)
	s.router.HandleFunc("POST /fetch", s.handleFetch)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var row Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		http.Error(w, "invalid row body", http.StatusBadRequest)
		return
	}
	if row.Kind == "" || row.ID == "" {
		http.Error(w, "kind and id are required", http.StatusBadRequest)
		return
	}
	if err := s.store.Upsert(r.Context(), row); err != nil {
		s.logger.Error("upsert failed", "kind", row.Kind, "id", row.ID, "error", err)
		http.Error(w, "upsert failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind := domain.EntityKind(r.PathValue("kind"))
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), kind, id); err != nil {
		s.logger.Error("delete failed", "kind", kind, "id", id, "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var q Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		http.Error(w, "invalid query body", http.StatusBadRequest)
		return
	}
	res, err := s.store.Fetch(r.Context(), q)
	if err != nil {
		s.logger.Error("fetch failed", "error", err)
		http.Error(w, "fetch failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.logger.Error("failed to encode fetch result", "error", err)
	}
}
