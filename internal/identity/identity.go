// Package identity is the identity provider the session layer signs in against.
//
// It is split in two:
//
//   - Service is the process-wide authority. It owns accounts, password
//     hashing, access tokens, OAuth providers, sign-up confirmation and the
//     login attempt limiter.
//   - Client is one browser's handle on the Service. It holds that browser's
//     current session and delivers auth state changes to its subscribers.
//
// CALLBACK DELIVERY:
// A Client delivers auth events synchronously, in order, while it still holds
// its internal lock. A listener must therefore never call back into the same
// Client from inside the callback: the call would block on the lock the
// delivery is holding. Listeners that need provider data (the session manager
// fetching a profile) hand that work to a queue that runs after the callback
// has returned.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/ratelimit"
)

// AuthEvent names a change in a client's auth state.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// User is the account as seen by a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated identity and its access token.
type Session struct {
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// Expired reports whether the session's token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Listener receives auth events. session is nil for EventSignedOut and for an
// EventInitialSession without a stored session.
type Listener func(event AuthEvent, session *Session)

// Provider is the identity provider boundary used by the session manager.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignInWithOAuth returns the provider URL the browser must visit. The
	// session is established later, when the provider redirects back.
	SignInWithOAuth(ctx context.Context, provider, redirectURL string) (string, error)
	// SignUp creates an unconfirmed account and sends a confirmation link that
	// returns the user to redirectURL. It does not sign anyone in.
	SignUp(ctx context.Context, email, password, redirectURL string) error
	SignOut(ctx context.Context) error
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// RefreshSession replaces the current access token and reports the new
	// session as EventTokenRefreshed.
	RefreshSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn Listener) (unsubscribe func())
}

// ProfileFetcher selects a profile row by user id.
// repository.ProfileRepository satisfies it.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// Errors returned to callers. Their text is shown to users as-is.
var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotConfirmed   = errors.New("email not confirmed, check your inbox for the confirmation link")
	ErrEmailTaken          = errors.New("an account with this email already exists")
	ErrUnknownProvider     = errors.New("unsupported sign-in provider")
	ErrInvalidOAuthState   = errors.New("sign-in link is invalid or has expired, please try again")
	ErrInvalidConfirmation = errors.New("confirmation link is invalid or has already been used")
	ErrNoSession           = errors.New("not signed in")
)

var publicErrors = []error{
	ErrInvalidCredentials,
	ErrEmailNotConfirmed,
	ErrEmailTaken,
	ErrUnknownProvider,
	ErrInvalidOAuthState,
	ErrInvalidConfirmation,
	ErrNoSession,
	ratelimit.ErrTooManyAttempts,
}

// PublicMessage returns text about err that is safe to show to the user.
// Infrastructure failures are reduced to a generic message.
func PublicMessage(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "Something went wrong. Please try again."
}
