// Package service contains the business rules of the application.
//
// THE LAYERS:
//
//	Handler (HTTP)    → parses requests, writes responses
//	Service (rules)   → validates, enforces rules, orchestrates
//	Repository (data) → reads/writes the store
//
// Services take repository interfaces, never a concrete store, so the memory
// store and the SQLite store are interchangeable and tests can pass fakes.
// Services return apperror kinds; handlers translate them to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/query"
	"github.com/sakif/campus-connect/internal/repository"
	"github.com/sakif/campus-connect/internal/validate"
)

const (
	// DashboardUpcomingLimit is how many upcoming events the student dashboard shows.
	DashboardUpcomingLimit = 3
	// AdminUpcomingLimit is how many upcoming events the admin dashboard shows.
	AdminUpcomingLimit = 5
)

// EventService manages the event catalogue.
type EventService struct {
	events repository.EventRepository
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewEventService creates an EventService. Form dates are read in loc.
func NewEventService(events repository.EventRepository, loc *time.Location, logger *slog.Logger) *EventService {
	if loc == nil {
		loc = time.UTC
	}
	return &EventService{
		events: events,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// All returns every event, soonest first.
func (s *EventService) All(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		s.logger.Error("failed to list events", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service: listing events: %w", err)
	}
	return events, nil
}

// Get returns apperror.ErrNotFound when there is no event with id.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "event ID is required")
	}
	return s.events.GetEvent(ctx, id)
}

// Query runs the events page search, category filter and sort.
func (s *EventService) Query(ctx context.Context, c query.Criteria) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return query.Apply(events, c), nil
}

// AdminSearch is the manage-events search. It also matches location and category.
func (s *EventService) AdminSearch(ctx context.Context, q string) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return query.SearchAdmin(events, q), nil
}

func (s *EventService) Featured(ctx context.Context) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return query.Featured(events), nil
}

// Upcoming returns up to limit events that have not started yet. A limit of
// zero or less returns all of them.
func (s *EventService) Upcoming(ctx context.Context, limit int) ([]model.Event, error) {
	events, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return query.Upcoming(events, s.now(), limit), nil
}

// Create validates form and stores the new event.
func (s *EventService) Create(ctx context.Context, form validate.EventForm) (*model.Event, error) {
	event, err := s.fromForm(form)
	if err != nil {
		return nil, err
	}

	if err := s.events.CreateEvent(ctx, &event); err != nil {
		s.logger.Error("failed to create event",
			slog.String("title", event.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service: creating event: %w", err)
	}

	s.logger.Info("event created",
		slog.String("id", event.ID),
		slog.String("title", event.Title),
	)
	return &event, nil
}

// Update overwrites the editable fields of the event with id. The attendee
// count is kept.
func (s *EventService) Update(ctx context.Context, id string, form validate.EventForm) (*model.Event, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := s.fromForm(form)
	if err != nil {
		return nil, err
	}
	event.ID = existing.ID
	event.CurrentAttendees = existing.CurrentAttendees
	event.CreatedAt = existing.CreatedAt

	if event.MaxAttendees != nil && *event.MaxAttendees < existing.CurrentAttendees {
		return nil, capacityBelowAttendees(existing.CurrentAttendees)
	}

	if err := s.events.UpdateEvent(ctx, &event); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to update event",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service: updating event: %w", err)
	}

	s.logger.Info("event updated", slog.String("id", event.ID))
	return &event, nil
}

func capacityBelowAttendees(current int) error {
	return apperror.ValidationFailed("maxAttendees",
		fmt.Sprintf("Max attendees cannot be lower than the %d people already registered.", current))
}

// Form returns the event with id as the edit form shows it.
func (s *EventService) Form(ctx context.Context, id string) (validate.EventForm, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return validate.EventForm{}, err
	}
	return validate.FormFromEvent(*event, s.loc), nil
}

// Delete removes the event and its registrations. It reports false when no
// such event existed.
func (s *EventService) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	if err := s.events.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		s.logger.Error("failed to delete event",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("service: deleting event: %w", err)
	}

	s.logger.Info("event deleted", slog.String("id", id))
	return true, nil
}

func (s *EventService) fromForm(form validate.EventForm) (model.Event, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	form.Location = strings.TrimSpace(form.Location)
	form.Organizer = strings.TrimSpace(form.Organizer)
	form.Image = strings.TrimSpace(form.Image)

	if err := validate.Error(validate.CheckEvent(form)); err != nil {
		return model.Event{}, err
	}
	return form.Event(s.loc)
}
