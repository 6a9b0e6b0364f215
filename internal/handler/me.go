package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/client"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/service"
)

// MeHandler serves the pages that belong to the current browser: its session,
// registrations, dashboard, notifications and toasts.
type MeHandler struct {
	registrations *service.RegistrationService
	dashboard     *service.DashboardService
	logger        *slog.Logger
}

func NewMeHandler(registrations *service.RegistrationService, dashboard *service.DashboardService, logger *slog.Logger) *MeHandler {
	return &MeHandler{registrations: registrations, dashboard: dashboard, logger: logger}
}

// settled returns the request's client after its deferred session work has
// run, so profile and notifications reflect the latest sign-in.
func (h *MeHandler) settled(w http.ResponseWriter, r *http.Request) (*client.Client, bool) {
	c, ok := mustClient(w, r)
	if !ok {
		return nil, false
	}
	if err := c.Session.Settle(r.Context()); err != nil {
		h.logger.Warn("settling session", slog.String("client_id", c.ID), slog.String("error", err.Error()))
	}
	return c, true
}

// HandleMe serves GET /api/me. Signed-out browsers get the anonymous snapshot.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	c, ok := h.settled(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Session.Snapshot())
}

// HandleRegistrations serves GET /api/me/registrations.
func (h *MeHandler) HandleRegistrations(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}
	mine, err := h.registrations.Mine(r.Context(), c.Session.UserID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

// HandleDashboard serves GET /api/dashboard.
func (h *MeHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}
	dash, err := h.dashboard.Student(r.Context(), c.Session.UserID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

func notificationsOf(c *client.Client) notificationsResponse {
	return notificationsResponse{
		Notifications: c.Notifications.List(),
		UnreadCount:   c.Notifications.UnreadCount(),
	}
}

// HandleNotifications serves GET /api/notifications.
func (h *MeHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	c, ok := h.settled(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, notificationsOf(c))
}

// HandleMarkRead serves POST /api/notifications/{id}/read.
func (h *MeHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	c, ok := h.settled(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !c.Notifications.MarkAsRead(id) {
		writeError(w, apperror.NotFound("notification", id))
		return
	}
	writeJSON(w, http.StatusOK, notificationsOf(c))
}

// HandleMarkAllRead serves POST /api/notifications/read-all.
func (h *MeHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	c, ok := h.settled(w, r)
	if !ok {
		return
	}
	c.Notifications.MarkAllAsRead()
	writeJSON(w, http.StatusOK, notificationsOf(c))
}

// HandleToasts serves GET /api/toasts. Each toast is returned once.
func (h *MeHandler) HandleToasts(w http.ResponseWriter, r *http.Request) {
	c, ok := h.settled(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Inbox().Drain())
}
