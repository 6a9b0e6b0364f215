package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
)

var _ Provider = (*Client)(nil)

// oauthStateTTL bounds how long a started OAuth sign-in may take.
const oauthStateTTL = 10 * time.Minute

type pendingOAuth struct {
	state       string
	provider    string
	redirectURL string
	expires     time.Time
}

// Client is one browser's view of the identity provider.
//
// Every method takes mu for its whole duration, including listener delivery.
// See the package documentation for what that means for listeners.
type Client struct {
	svc *Service

	mu        sync.Mutex
	session   *Session
	pending   *pendingOAuth
	listeners map[int]Listener
	nextID    int
}

// OnAuthStateChange registers fn. The returned func removes it again and is
// safe to call more than once.
func (c *Client) OnAuthStateChange(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// emit delivers to every listener in registration order. Called with mu held.
func (c *Client) emit(event AuthEvent, session *Session) {
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fn(event, session)
		}
	}
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.svc.signInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.session = session
	c.emit(EventSignedIn, session)
	return session, nil
}

// SignInWithOAuth remembers a fresh state value for this client and returns
// the provider's consent URL. CompleteOAuth finishes the flow.
func (c *Client) SignInWithOAuth(_ context.Context, provider, redirectURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.svc.oauthProvider(provider)
	if err != nil {
		return "", err
	}

	state := xid.New().String()
	c.pending = &pendingOAuth{
		state:       state,
		provider:    provider,
		redirectURL: redirectURL,
		expires:     c.svc.now().Add(oauthStateTTL),
	}
	return p.AuthURL(state), nil
}

// CompleteOAuth is the callback leg of an OAuth sign-in. The state must match
// the one issued by the last SignInWithOAuth on this client. It returns the
// new session and the redirect URL passed to SignInWithOAuth.
func (c *Client) CompleteOAuth(ctx context.Context, provider, state, code string) (*Session, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pending
	if pending == nil || state == "" || pending.state != state || pending.provider != provider ||
		!c.svc.now().Before(pending.expires) {
		return nil, "", ErrInvalidOAuthState
	}
	// single use, even when the exchange below fails
	c.pending = nil

	session, err := c.svc.signInWithOAuth(ctx, provider, code)
	if err != nil {
		return nil, "", err
	}

	c.session = session
	c.emit(EventSignedIn, session)
	return session, pending.redirectURL, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, redirectURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.svc.signUp(ctx, email, password, redirectURL)
}

// SignOut revokes the current access token. When ctx is already done the
// provider is never reached and the local session is kept.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if c.session != nil {
		c.svc.revoke(c.session)
	}
	c.session = nil
	c.emit(EventSignedOut, nil)
	return nil
}

// GetSession returns the current session. An expired session is dropped and
// reported to listeners as EventSignedOut.
func (c *Client) GetSession(_ context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, nil
	}
	if c.session.Expired(c.svc.now()) {
		c.session = nil
		c.emit(EventSignedOut, nil)
		return nil, nil
	}
	return c.session, nil
}

// RefreshSession swaps the access token for a new one and revokes the old one.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, ErrNoSession
	}

	next, err := c.svc.refresh(ctx, c.session)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			c.session = nil
			c.emit(EventSignedOut, nil)
		}
		return nil, err
	}

	c.session = next
	c.emit(EventTokenRefreshed, next)
	return next, nil
}

// Resume restores a session from a persisted access token and always reports
// the outcome as EventInitialSession. An unusable token resumes as signed out.
func (c *Client) Resume(ctx context.Context, token string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, err := c.svc.sessionFromToken(ctx, token)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return nil, err
	}

	c.session = session
	c.emit(EventInitialSession, session)
	return session, nil
}
