// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/fetchlog"
	"github.com/Rishwanth-M/finboard/internal/refresh"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes caps request bodies, including imported dashboards.
const maxBodyBytes = 10 << 20

// History looks up recorded fetch attempts.
type History interface {
	History(ctx context.Context, cacheKey string, limit int) ([]*fetchlog.Entry, error)
}

// Deps are the components the server routes to. Scheduler, History and
// Metrics are optional.
type Deps struct {
	Board     *dashboard.Board
	Gateway   *fetch.Gateway
	Scheduler *refresh.Scheduler
	History   History
	Metrics   http.Handler
	// BoardFile is where board changes are saved. Empty disables saving.
	BoardFile string
	Logger    *slog.Logger
}

// Server handles the finboard HTTP API.
type Server struct {
	Deps
	router chi.Router

	// saveMu orders list, sync and save so the newest list is applied last.
	saveMu sync.Mutex
}

// New builds the server and its routes.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{Deps: d}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/discover", s.handleDiscover)
		r.Post("/resolve", s.handleResolve)

		r.Get("/widgets", s.handleListWidgets)
		r.Post("/widgets", s.handleAddWidget)
		r.Post("/widgets/reorder", s.handleReorder)
		r.Get("/widgets/{id}", s.handleGetWidget)
		r.Patch("/widgets/{id}", s.handleUpdateWidget)
		r.Delete("/widgets/{id}", s.handleRemoveWidget)
		r.Post("/widgets/{id}/refresh", s.handleRefresh)
		r.Get("/widgets/{id}/view", s.handleView)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Get("/fetches/{key}", s.handleFetches)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// changed saves the board and hands the new widget list to the scheduler.
func (s *Server) changed() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.Scheduler != nil {
		s.Scheduler.Sync(s.Board.List())
	}
	if s.BoardFile == "" {
		return nil
	}
	if err := s.Board.SaveFile(s.BoardFile); err != nil {
		s.Logger.Error("server: save dashboard", "path", s.BoardFile, "error", err)
		return err
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Soft  bool   `json:"soft,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
