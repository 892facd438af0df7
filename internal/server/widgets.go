package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Rishwanth-M/finboard/api"
	"github.com/Rishwanth-M/finboard/internal/dashboard"
	"github.com/Rishwanth-M/finboard/internal/fetch"
	"github.com/Rishwanth-M/finboard/internal/view"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListWidgets(w http.ResponseWriter, _ *http.Request) {
	widgets := s.Board.List()
	if widgets == nil {
		widgets = []api.Widget{}
	}
	writeJSON(w, http.StatusOK, widgets)
}

func (s *Server) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var in api.Widget
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	added, err := s.Board.Add(in)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	s.Logger.Info("server: widget added", "widget", added.ID, "type", added.Type)
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	got, ok := s.Board.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, dashboard.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	var p dashboard.Patch
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.Board.Update(chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Board.Remove(id) {
		writeError(w, http.StatusNotFound, dashboard.ErrNotFound.Error())
		return
	}
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	s.Logger.Info("server: widget removed", "widget", id)
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.Board.Reorder(req.From, req.To) {
		writeError(w, http.StatusNotFound, dashboard.ErrNotFound.Error())
		return
	}
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	writeJSON(w, http.StatusOK, s.Board.List())
}

// handleRefresh records a new refresh nonce and drops every cached response
// of the widget, so the next view of any chart interval refetches. The
// scheduler sees the changed nonce on sync and refetches the widget.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	touched, err := s.Board.Touch(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.Gateway.Cache().Evict(view.CacheKeys(touched)...)
	if err := s.changed(); err != nil {
		writeError(w, http.StatusInternalServerError, "save dashboard failed")
		return
	}
	writeJSON(w, http.StatusAccepted, touched)
}

// handleView binds the widget's current data for display. The fetch is served
// from the cache while the last response is younger than the refresh interval.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	widget, ok := s.Board.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, dashboard.ErrNotFound.Error())
		return
	}

	q := view.Query{
		Search:   r.URL.Query().Get("search"),
		Interval: view.Interval(r.URL.Query().Get("interval")),
	}
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		q.Page = n
	}

	doc, err := s.Gateway.Fetch(r.Context(), widget.APIURL, fetch.Options{
		CacheKey: view.CacheKey(widget, q.Interval),
		TTL:      widget.Interval(),
	})
	if err != nil {
		writeJSON(w, http.StatusOK, view.Failed(widget, err))
		return
	}
	writeJSON(w, http.StatusOK, view.Build(widget, doc, q))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrInvalidWidget), errors.Is(err, dashboard.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
