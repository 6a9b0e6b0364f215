package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/service"
	"github.com/sakif/campus-connect/internal/validate"
)

// AdminHandler serves the admin dashboard and event management. Routes are
// mounted behind middleware.RequireAdmin.
type AdminHandler struct {
	events    *service.EventService
	dashboard *service.DashboardService
	logger    *slog.Logger
}

func NewAdminHandler(events *service.EventService, dashboard *service.DashboardService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{events: events, dashboard: dashboard, logger: logger}
}

// HandleStats serves GET /api/admin/stats.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Admin(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleSearch serves GET /api/admin/events?q=. The search matches title,
// location and organizer.
func (h *AdminHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.AdminSearch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleForm serves GET /api/admin/events/{id}/form, the edit form prefilled
// from the stored event.
func (h *AdminHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.events.Form(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// HandleCreate creates an event.
//
// HTTP: POST /api/admin/events
// REQUEST BODY: the event form, e.g.
//
//	{"title": "Hack Night", "description": "...", "date": "2025-03-12",
//	 "time": "18:00", "location": "...", "category": "tech", "organizer": "..."}
func (h *AdminHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var form validate.EventForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Create(r.Context(), form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// HandleUpdate serves PUT /api/admin/events/{id}.
func (h *AdminHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var form validate.EventForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Update(r.Context(), chi.URLParam(r, "id"), form)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleDelete serves DELETE /api/admin/events/{id}.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.events.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeError(w, apperror.NotFound("event", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
