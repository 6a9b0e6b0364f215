// Package session tracks one browser client's sign-in state on top of an
// identity provider.
//
// The Manager keeps a standing subscription to the provider's auth events.
// Provider callbacks run while the provider holds its own lock, so the Manager
// only records what the event says inside the callback and defers everything
// that talks to the provider or the database (the profile fetch, identity
// change listeners) onto a Queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/model"
)

// State is the sign-in state of a client.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	// StateProfilePending means signed in, with the profile fetch not yet resolved.
	StateProfilePending State = "profile-pending"
	StateAuthenticated  State = "authenticated"
)

// Snapshot is a consistent copy of the Manager's state.
type Snapshot struct {
	State   State             `json:"state"`
	User    *identity.User    `json:"user"`
	Session *identity.Session `json:"-"`
	Profile *model.Profile    `json:"profile"`
	IsAdmin bool              `json:"isAdmin"`
}

// IdentityListener is called, on the queue, whenever the signed-in user id
// changes. userID is empty after sign-out.
type IdentityListener func(ctx context.Context, userID string)

type Config struct {
	Provider identity.Provider
	Profiles identity.ProfileFetcher
	Inbox    *Inbox
	Logger   *slog.Logger

	// OAuthRedirectURL is where the browser lands after an OAuth sign-in.
	OAuthRedirectURL string
	// SignUpRedirectURL is where the confirmation link sends a new user.
	SignUpRedirectURL string
}

type Manager struct {
	provider identity.Provider
	profiles identity.ProfileFetcher
	inbox    *Inbox
	queue    *Queue
	logger   *slog.Logger

	oauthRedirect  string
	signUpRedirect string

	unsubscribe func()
	now         func() time.Time

	mu        sync.Mutex
	state     State
	session   *identity.Session
	user      *identity.User
	profile   *model.Profile
	listeners []IdentityListener
}

// New subscribes to cfg.Provider. Events the provider delivers from then on,
// including an INITIAL_SESSION from a resumed token, drive the Manager.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inbox := cfg.Inbox
	if inbox == nil {
		inbox = NewInbox()
	}

	m := &Manager{
		provider:       cfg.Provider,
		profiles:       cfg.Profiles,
		inbox:          inbox,
		queue:          NewQueue(logger),
		logger:         logger,
		oauthRedirect:  cfg.OAuthRedirectURL,
		signUpRedirect: cfg.SignUpRedirectURL,
		state:          StateAnonymous,
		now:            time.Now,
	}
	m.unsubscribe = cfg.Provider.OnAuthStateChange(m.handleAuthEvent)
	return m
}

// Inbox returns the toast inbox the Manager reports to.
func (m *Manager) Inbox() *Inbox {
	return m.inbox
}

// OnIdentityChange registers fn. Listeners run on the queue, in registration order.
func (m *Manager) OnIdentityChange(fn IdentityListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// handleAuthEvent runs inside the provider's callback, with the provider's
// lock held. It must not call the provider.
func (m *Manager) handleAuthEvent(event identity.AuthEvent, s *identity.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.userID()

	if s == nil {
		m.clearLocked()
	} else {
		user := s.User
		m.session = s
		m.user = &user
		if m.profile != nil && m.profile.UserID != user.ID {
			m.profile = nil
		}
		if m.profile == nil {
			m.state = StateProfilePending
		} else {
			m.state = StateAuthenticated
		}
		m.queue.Defer(func(ctx context.Context) { m.loadProfile(ctx, user.ID) })
	}

	m.logger.Debug("auth state change",
		slog.String("event", string(event)),
		slog.String("user_id", m.userID()),
	)

	if current := m.userID(); current != previous {
		m.notifyLocked(current)
	}
}

// notifyLocked schedules the identity listeners. Called with mu held.
func (m *Manager) notifyLocked(userID string) {
	listeners := append([]IdentityListener(nil), m.listeners...)
	m.queue.Defer(func(ctx context.Context) {
		for _, fn := range listeners {
			fn(ctx, userID)
		}
	})
}

// loadProfile runs on the queue. The result is only applied when the user it
// was fetched for is still the signed-in user.
func (m *Manager) loadProfile(ctx context.Context, userID string) {
	profile, err := m.profiles.GetProfile(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.user.ID != userID {
		return
	}

	if err != nil {
		m.logger.Error("fetching profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		m.profile = nil
		m.state = StateAuthenticated
		return
	}

	p := *profile
	p.Role = model.ParseRole(string(p.Role))
	m.profile = &p
	m.state = StateAuthenticated
}

// clearLocked drops session, user and profile. Called with mu held.
func (m *Manager) clearLocked() {
	m.session = nil
	m.user = nil
	m.profile = nil
	m.state = StateAnonymous
}

func (m *Manager) userID() string {
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// fail reports err to the user as a destructive toast and returns it.
func (m *Manager) fail(title string, err error) error {
	m.inbox.Push(Toast{
		Title:       title,
		Description: identity.PublicMessage(err),
		Variant:     VariantDestructive,
	})
	return err
}

// SignInWithPassword signs in with email and password. On rejection the
// Manager returns to anonymous and one error toast is pushed.
func (m *Manager) SignInWithPassword(ctx context.Context, email, password string) error {
	m.setState(StateAuthenticating)

	if _, err := m.provider.SignInWithPassword(ctx, email, password); err != nil {
		m.mu.Lock()
		if m.session == nil {
			m.state = StateAnonymous
		} else if m.profile == nil {
			m.state = StateProfilePending
		} else {
			m.state = StateAuthenticated
		}
		m.mu.Unlock()

		m.logger.Info("sign in rejected", slog.String("error", err.Error()))
		return m.fail("Error signing in", err)
	}
	return nil
}

// SignInWithOAuth starts an OAuth sign-in and returns the URL the browser
// must be sent to.
func (m *Manager) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	url, err := m.provider.SignInWithOAuth(ctx, provider, m.oauthRedirect)
	if err != nil {
		return "", m.fail("Error signing in", err)
	}
	return url, nil
}

// SignUp creates an account awaiting email confirmation. It does not sign in.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	if err := m.provider.SignUp(ctx, email, password, m.signUpRedirect); err != nil {
		return m.fail("Error signing up", err)
	}
	m.inbox.Push(Toast{
		Title:       "Check your email",
		Description: "We sent you a confirmation link. Follow it to activate your account.",
	})
	return nil
}

// Logout clears the local session, user and profile before returning,
// whatever the provider says. A provider failure is logged, reported as a
// toast and returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	previous := m.userID()
	m.clearLocked()
	if previous != "" {
		m.notifyLocked("")
	}
	m.mu.Unlock()

	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("remote sign out failed", slog.String("error", err.Error()))
		return m.fail("Error signing out", err)
	}
	return nil
}

// CheckSession asks the provider for its current session, which lets an
// expired session surface as a sign-out. A session that expires within margin
// is refreshed, and the new session is returned so the caller can persist its
// token. It returns nil when nothing was refreshed.
func (m *Manager) CheckSession(ctx context.Context, margin time.Duration) (*identity.Session, error) {
	current, err := m.provider.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ExpiresAt.Sub(m.now()) > margin {
		return nil, nil
	}

	next, err := m.provider.RefreshSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: refreshing token: %w", err)
	}
	m.logger.Debug("session refreshed", slog.String("user_id", next.User.ID))
	return next, nil
}

func (m *Manager) IsAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.IsAdmin()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UserID returns the signed-in user's id, or "" when anonymous.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID()
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:   m.state,
		Session: m.session,
		IsAdmin: m.profile.IsAdmin(),
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	if m.profile != nil {
		p := *m.profile
		snap.Profile = &p
	}
	return snap
}

// Settle waits until deferred work queued so far, such as a profile fetch, has run.
func (m *Manager) Settle(ctx context.Context) error {
	if err := m.queue.Wait(ctx); err != nil && !errors.Is(err, ErrQueueClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the provider and stops the queue.
func (m *Manager) Close() {
	m.unsubscribe()
	m.queue.Close()
}
