package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/fetchlog"
	"github.com/Rishwanth-M/finboard/internal/flatten"
	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"github.com/Rishwanth-M/finboard/internal/pathres"
	"github.com/go-chi/chi/v5"
)

type discoverRequest struct {
	URL   string `json:"url"`
	Query string `json:"q"`
	// Force skips the cached sample response.
	Force bool `json:"force"`
}

type discoverResponse struct {
	Fields []api.Field `json:"fields"`
}

// handleDiscover fetches a sample response and lists its addressable fields.
// POST /api/discover
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := decodeBody(w, r, &req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	doc, err := s.Gateway.Fetch(r.Context(), req.URL, fetch.Options{Force: req.Force})
	if err != nil {
		writeError(w, http.StatusBadGateway, fetch.Status(err))
		return
	}
	if msg, soft := fetch.SoftError(doc); soft {
		s.Logger.Info("server: discover throttled", "url", req.URL, "message", msg)
		writeJSON(w, http.StatusOK, errorBody{Error: "API rate limit reached", Soft: true})
		return
	}

	fields := flatten.Filter(flatten.Flatten(doc), req.Query)
	if fields == nil {
		fields = []api.Field{}
	}
	writeJSON(w, http.StatusOK, discoverResponse{Fields: fields})
}

type resolveRequest struct {
	URL      string          `json:"url"`
	Document json.RawMessage `json:"document"`
	Path     string          `json:"path"`
}

type resolveResponse struct {
	Value any  `json:"value"`
	Found bool `json:"found"`
}

// handleResolve reads one path from an inline document or a fetched URL.
// POST /api/resolve
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var doc any
	switch {
	case len(req.Document) > 0:
		v, err := jsondoc.Decode(req.Document)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		doc = v
	case req.URL != "":
		v, err := s.Gateway.Fetch(r.Context(), req.URL, fetch.Options{})
		if err != nil {
			writeError(w, http.StatusBadGateway, fetch.Status(err))
			return
		}
		doc = v
	default:
		writeError(w, http.StatusBadRequest, "url or document is required")
		return
	}

	value, found := pathres.Resolve(doc, req.Path)
	writeJSON(w, http.StatusOK, resolveResponse{Value: value, Found: found})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := s.Board.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="finboard-dashboard.json"`)
	_, _ = w.Write(data)
}

type importResponse struct {
	Imported int `json:"imported"`
}

// handleImport replaces the whole board. Invalid input leaves it untouched.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	widgets, err := s.Board.Import(data)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	s.Logger.Info("server: dashboard imported", "widgets", len(widgets))
	writeJSON(w, http.StatusOK, importResponse{Imported: len(widgets)})
}

// handleFetches lists recent fetch attempts for a widget cache key (the
// widget id, or "<id>-<interval>" for charts).
func (s *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "fetch log disabled")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.History.History(r.Context(), chi.URLParam(r, "key"), limit)
	if err != nil {
		s.Logger.Error("server: fetch history", "error", err)
		writeError(w, http.StatusInternalServerError, "fetch history failed")
		return
	}
	if entries == nil {
		entries = []*fetchlog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
