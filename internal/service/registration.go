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
)

// RegistrationService signs students up for events.
type RegistrationService struct {
	events        repository.EventRepository
	registrations repository.RegistrationRepository
	profiles      repository.ProfileRepository
	logger        *slog.Logger
	now           func() time.Time
}

func NewRegistrationService(
	events repository.EventRepository,
	registrations repository.RegistrationRepository,
	profiles repository.ProfileRepository,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		profiles:      profiles,
		logger:        logger,
		now:           time.Now,
	}
}

// Register signs userID up for eventID and bumps the event's attendee count.
//
// Admins cannot register. An event that has started, whose registration
// deadline has passed, that is full, or that the user is already registered
// for is rejected with apperror.ErrConflict.
func (s *RegistrationService) Register(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in to register for events")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperror.ValidationFailed("id", "event ID is required")
	}

	admin, err := s.isAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if admin {
		return nil, apperror.Forbidden("administrators cannot register for events")
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case !now.Before(event.Date):
		return nil, apperror.Conflict("this event has already taken place")
	case event.RegistrationClosed(now):
		return nil, apperror.Conflict("registration for this event has closed")
	case event.IsFull():
		return nil, apperror.Conflict("event is full")
	}

	reg := &model.Registration{UserID: userID, EventID: eventID, RegistrationDate: now}
	if err := s.registrations.CreateRegistration(ctx, reg); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to create registration",
			slog.String("user_id", userID),
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service: creating registration: %w", err)
	}

	s.logger.Info("registered for event",
		slog.String("user_id", userID),
		slog.String("event_id", eventID),
	)
	return reg, nil
}

// isAdmin looks up the stored role. A user without a profile is a student.
func (s *RegistrationService) isAdmin(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service: loading profile: %w", err)
	}
	return model.ParseRole(string(profile.Role)) == model.RoleAdmin, nil
}

// ListForUser returns the user's registrations joined with their events,
// most recent registration first. Registrations whose event no longer exists
// are left out.
func (s *RegistrationService) ListForUser(ctx context.Context, userID string) ([]model.RegistrationWithEvent, error) {
	regs, err := s.registrations.ListRegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: listing registrations: %w", err)
	}

	out := make([]model.RegistrationWithEvent, 0, len(regs))
	for _, r := range regs {
		event, err := s.events.GetEvent(ctx, r.EventID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("service: loading event %s: %w", r.EventID, err)
		}
		out = append(out, model.RegistrationWithEvent{
			RegistrationID:   r.ID,
			RegistrationDate: r.RegistrationDate,
			Event:            *event,
		})
	}
	return out, nil
}

// MyRegistrations is the "My registrations" page, split at now.
type MyRegistrations struct {
	Upcoming []model.RegistrationWithEvent `json:"upcoming"`
	Past     []model.RegistrationWithEvent `json:"past"`
}

func (s *RegistrationService) Mine(ctx context.Context, userID string) (*MyRegistrations, error) {
	regs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	upcoming, past := query.SplitByDate(regs, s.now())
	return &MyRegistrations{Upcoming: upcoming, Past: past}, nil
}

// Count returns the total number of registrations across all events.
func (s *RegistrationService) Count(ctx context.Context) (int, error) {
	n, err := s.registrations.CountRegistrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("service: counting registrations: %w", err)
	}
	return n, nil
}
