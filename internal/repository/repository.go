// Package repository defines the storage interfaces the services depend on.
//
// Two implementations exist: repository/memory (the mock dataset, used in
// development and tests) and repository/sqlite (the database-backed store).
// Services only ever see these interfaces, so either store can be swapped in
// from the composition root.
//
// ERROR CONTRACT:
// A missing row is reported as apperror.ErrNotFound, a uniqueness or capacity
// violation as apperror.ErrConflict. Anything else is an infrastructure error.
package repository

import (
	"context"

	"github.com/sakif/campus-connect/internal/model"
)

// EventRepository stores events.
type EventRepository interface {
	// ListEvents returns every event ordered by date, soonest first.
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// CreateEvent assigns ID and timestamps on the passed event.
	CreateEvent(ctx context.Context, event *model.Event) error
	// UpdateEvent overwrites the editable fields. CurrentAttendees is left alone.
	UpdateEvent(ctx context.Context, event *model.Event) error
	// DeleteEvent removes the event together with its registrations.
	DeleteEvent(ctx context.Context, id string) error
}

// RegistrationRepository stores event registrations.
type RegistrationRepository interface {
	// CreateRegistration inserts reg and increments the event's attendee count
	// in one step. It fails with a conflict when the user is already registered
	// or the event is at capacity.
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	ListRegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error)
	CountRegistrations(ctx context.Context) (int, error)
}

// ProfileRepository stores the per-user profile rows that carry the role.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	// UpsertProfile inserts the profile or overwrites an existing one.
	UpsertProfile(ctx context.Context, profile *model.Profile) error
}

// AccountRepository is the identity provider's account table.
// Emails are stored lower-cased by the caller and are unique.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccount(ctx context.Context, account *model.Account) error
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByGitHubID(ctx context.Context, githubID int64) (*model.Account, error)
	GetAccountByConfirmationToken(ctx context.Context, token string) (*model.Account, error)
}

// AnnouncementRepository stores campus announcements, newest first.
type AnnouncementRepository interface {
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	CreateAnnouncement(ctx context.Context, a *model.Announcement) error
}

// Store is everything a backend provides. Both memory.Store and sqlite.DB
// implement it.
type Store interface {
	EventRepository
	RegistrationRepository
	ProfileRepository
	AccountRepository
	AnnouncementRepository
}
