package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/repository"
)

// AnnouncementService serves campus announcements.
type AnnouncementService struct {
	announcements repository.AnnouncementRepository
	logger        *slog.Logger
}

func NewAnnouncementService(announcements repository.AnnouncementRepository, logger *slog.Logger) *AnnouncementService {
	return &AnnouncementService{announcements: announcements, logger: logger}
}

// List returns announcements, newest first.
func (s *AnnouncementService) List(ctx context.Context) ([]model.Announcement, error) {
	list, err := s.announcements.ListAnnouncements(ctx)
	if err != nil {
		s.logger.Error("failed to list announcements", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service: listing announcements: %w", err)
	}
	return list, nil
}

// Dashboard is the signed-in student's landing page.
type Dashboard struct {
	RegisteredEvents []model.Event `json:"registeredEvents"`
	UpcomingEvents   []model.Event `json:"upcomingEvents"`
}

// AdminStats is the admin dashboard.
type AdminStats struct {
	TotalEvents        int           `json:"totalEvents"`
	UpcomingEvents     int           `json:"upcomingEvents"`
	TotalRegistrations int           `json:"totalRegistrations"`
	TotalAnnouncements int           `json:"totalAnnouncements"`
	NextEvents         []model.Event `json:"nextEvents"`
}

// DashboardService assembles the dashboards from the other services.
type DashboardService struct {
	events        *EventService
	registrations *RegistrationService
	announcements *AnnouncementService
}

func NewDashboardService(events *EventService, registrations *RegistrationService, announcements *AnnouncementService) *DashboardService {
	return &DashboardService{
		events:        events,
		registrations: registrations,
		announcements: announcements,
	}
}

func (s *DashboardService) Student(ctx context.Context, userID string) (*Dashboard, error) {
	regs, err := s.registrations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.events.Upcoming(ctx, DashboardUpcomingLimit)
	if err != nil {
		return nil, err
	}

	registered := make([]model.Event, 0, len(regs))
	for _, r := range regs {
		registered = append(registered, r.Event)
	}
	return &Dashboard{RegisteredEvents: registered, UpcomingEvents: upcoming}, nil
}

func (s *DashboardService) Admin(ctx context.Context) (*AdminStats, error) {
	all, err := s.events.All(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.events.Upcoming(ctx, 0)
	if err != nil {
		return nil, err
	}
	regs, err := s.registrations.Count(ctx)
	if err != nil {
		return nil, err
	}
	announcements, err := s.announcements.List(ctx)
	if err != nil {
		return nil, err
	}

	next := upcoming
	if len(next) > AdminUpcomingLimit {
		next = next[:AdminUpcomingLimit]
	}
	return &AdminStats{
		TotalEvents:        len(all),
		UpcomingEvents:     len(upcoming),
		TotalRegistrations: regs,
		TotalAnnouncements: len(announcements),
		NextEvents:         next,
	}, nil
}
