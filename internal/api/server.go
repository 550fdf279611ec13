// Package api exposes health, metrics and the recent-threat store over HTTP
// while the sentinel is running.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"warden/internal/core"
	"warden/internal/logging"
	"warden/internal/store"
)

type Server struct {
	r          *chi.Mux
	store      *store.MemoryStore
	remediator core.Remediator
	logger     *zap.Logger
}

// NewServer wires the routes. A nil gatherer disables /metrics and a nil
// remediator disables the quarantine endpoint.
func NewServer(threats *store.MemoryStore, remediator core.Remediator, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		r:          chi.NewRouter(),
		store:      threats,
		remediator: remediator,
		logger:     logging.WithComponent(logger, "api"),
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.Recoverer)

	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	if gatherer != nil {
		s.r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.r.Get("/threats", s.listThreats)
	s.r.Get("/threats/{id}", s.getThreat)
	if remediator != nil {
		s.r.Post("/threats/{id}/quarantine", s.quarantineThreat)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) listThreats(w http.ResponseWriter, r *http.Request) {
	threats := s.store.All()
	if threats == nil {
		threats = []core.Threat{}
	}
	writeJSON(w, http.StatusOK, threats)
}

func (s *Server) getThreat(w http.ResponseWriter, r *http.Request) {
	t, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "threat not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) quarantineThreat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "threat not found")
		return
	}

	entry, err := s.remediator.Quarantine(t.Path)
	switch {
	case errors.Is(err, core.ErrProtected):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, os.ErrNotExist):
		s.store.Remove(id)
		writeError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.store.Remove(id)
	s.logger.Info("Threat quarantined via API", zap.String("id", id), zap.String("path", t.Path))
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
