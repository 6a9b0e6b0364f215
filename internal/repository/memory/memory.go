// Package memory is an in-process implementation of repository.Store.
//
// It backs the mock dataset: everything lives in maps guarded by one RWMutex
// and disappears on restart. Values are copied on the way in and out so that
// callers never share memory with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	events        map[string]model.Event
	registrations map[string]model.Registration
	profiles      map[string]model.Profile
	accounts      map[string]model.Account
	announcements map[string]model.Announcement

	now func() time.Time
}

func New() *Store {
	return &Store{
		events:        make(map[string]model.Event),
		registrations: make(map[string]model.Registration),
		profiles:      make(map[string]model.Profile),
		accounts:      make(map[string]model.Account),
		announcements: make(map[string]model.Announcement),
		now:           time.Now,
	}
}

// ===== EVENTS =====

func (s *Store) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b model.Event) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	return &e, nil
}

func (s *Store) CreateEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = xid.New().String()
	}
	now := s.now()
	event.CreatedAt = now
	event.UpdatedAt = now
	s.events[event.ID] = *event
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[event.ID]
	if !ok {
		return apperror.NotFound("event", event.ID)
	}
	if event.MaxAttendees != nil && *event.MaxAttendees < existing.CurrentAttendees {
		return apperror.ValidationFailed("maxAttendees", "max attendees is below the current attendee count")
	}

	event.CurrentAttendees = existing.CurrentAttendees
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = s.now()
	s.events[event.ID] = *event
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return apperror.NotFound("event", id)
	}
	delete(s.events, id)

	for regID, r := range s.registrations {
		if r.EventID == id {
			delete(s.registrations, regID)
		}
	}
	return nil
}

// ===== REGISTRATIONS =====

func (s *Store) CreateRegistration(_ context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[reg.EventID]
	if !ok {
		return apperror.NotFound("event", reg.EventID)
	}
	for _, r := range s.registrations {
		if r.UserID == reg.UserID && r.EventID == reg.EventID {
			return apperror.Conflict("already registered for this event")
		}
	}
	if event.IsFull() {
		return apperror.Conflict("event is full")
	}

	reg.ID = xid.New().String()
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = s.now()
	}
	s.registrations[reg.ID] = *reg

	event.CurrentAttendees++
	s.events[event.ID] = event
	return nil
}

func (s *Store) ListRegistrationsByUser(_ context.Context, userID string) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Registration, 0)
	for _, r := range s.registrations {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	slices.SortFunc(result, func(a, b model.Registration) int {
		return b.RegistrationDate.Compare(a.RegistrationDate)
	})
	return result, nil
}

func (s *Store) CountRegistrations(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registrations), nil
}

// ===== PROFILES =====

func (s *Store) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	return &p, nil
}

func (s *Store) UpsertProfile(_ context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	s.profiles[profile.UserID] = *profile
	return nil
}

// ===== ACCOUNTS =====

func (s *Store) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email {
			return apperror.Conflict("email already registered")
		}
		if account.GitHubID != 0 && a.GitHubID == account.GitHubID {
			return apperror.Conflict("github account already linked")
		}
	}

	account.ID = xid.New().String()
	now := s.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return apperror.NotFound("account", account.ID)
	}
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = s.now()
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	return &a, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	return s.findAccount(email, func(a model.Account) bool { return a.Email == email })
}

func (s *Store) GetAccountByGitHubID(_ context.Context, githubID int64) (*model.Account, error) {
	return s.findAccount("github", func(a model.Account) bool { return githubID != 0 && a.GitHubID == githubID })
}

func (s *Store) GetAccountByConfirmationToken(_ context.Context, token string) (*model.Account, error) {
	return s.findAccount("token", func(a model.Account) bool { return token != "" && a.ConfirmationToken == token })
}

func (s *Store) findAccount(key string, match func(model.Account) bool) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, apperror.NotFound("account", key)
}

// ===== ANNOUNCEMENTS =====

func (s *Store) ListAnnouncements(_ context.Context) ([]model.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		result = append(result, a)
	}
	slices.SortFunc(result, func(a, b model.Announcement) int {
		return b.Date.Compare(a.Date)
	})
	return result, nil
}

func (s *Store) CreateAnnouncement(_ context.Context, a *model.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.Date.IsZero() {
		a.Date = s.now()
	}
	s.announcements[a.ID] = *a
	return nil
}
