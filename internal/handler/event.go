package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/client"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/query"
	"github.com/sakif/campus-connect/internal/service"
)

// EventHandler serves the public event pages and registration.
type EventHandler struct {
	events        *service.EventService
	registrations *service.RegistrationService
	announcements *service.AnnouncementService
	logger        *slog.Logger
}

func NewEventHandler(
	events *service.EventService,
	registrations *service.RegistrationService,
	announcements *service.AnnouncementService,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		events:        events,
		registrations: registrations,
		announcements: announcements,
		logger:        logger,
	}
}

// HandleList is the events page.
//
// HTTP: GET /api/events?q=hack&category=tech&category=art&sort=date-asc
//
// category may repeat or hold a comma separated list.
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.events.Query(r.Context(), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func criteriaFromQuery(r *http.Request) (query.Criteria, error) {
	q := r.URL.Query()

	sortKey, err := query.ParseSortKey(q.Get("sort"))
	if err != nil {
		return query.Criteria{}, apperror.ValidationFailed("sort", err.Error())
	}

	var categories []model.Category
	for _, raw := range q["category"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if part == "" || part == "all" {
				continue
			}
			c := model.Category(part)
			if !c.Valid() {
				return query.Criteria{}, apperror.ValidationFailed("category", "unknown category "+part)
			}
			categories = append(categories, c)
		}
	}

	return query.Criteria{
		Query:      q.Get("q"),
		Categories: categories,
		Sort:       sortKey,
	}, nil
}

// HandleFeatured serves GET /api/events/featured.
func (h *EventHandler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Featured(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleUpcoming serves GET /api/events/upcoming?limit=3.
func (h *EventHandler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a non-negative number"))
			return
		}
		limit = n
	}

	events, err := h.events.Upcoming(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleGet serves GET /api/events/{id}.
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleRegister serves POST /api/events/{id}/register for the signed-in user.
func (h *EventHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	c, _ := client.FromContext(r.Context())
	userID := ""
	if c != nil {
		userID = c.Session.UserID()
	}

	reg, err := h.registrations.Register(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

type categoryResponse struct {
	ID    model.Category `json:"id"`
	Label string         `json:"label"`
}

// HandleCategories serves GET /api/categories.
func (h *EventHandler) HandleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := model.Categories()
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{ID: c, Label: strings.ToUpper(string(c[:1])) + string(c[1:])})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAnnouncements serves GET /api/announcements.
func (h *EventHandler) HandleAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.announcements.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
