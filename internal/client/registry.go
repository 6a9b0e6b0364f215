package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/notification"
	"github.com/sakif/campus-connect/internal/session"
)

// RegistryConfig collects what every new Client is built from.
type RegistryConfig struct {
	Identity *identity.Service
	Profiles identity.ProfileFetcher
	Events   notification.EventLister
	Logger   *slog.Logger

	// IdleTTL is how long a client may go without a request before it is dropped.
	IdleTTL time.Duration

	// MaxClients caps the registry. Creating a client beyond it evicts the
	// least recently seen one. Zero means DefaultMaxClients.
	MaxClients int

	// OAuthRedirectURL and SignUpRedirectURL are handed to each session manager.
	OAuthRedirectURL  string
	SignUpRedirectURL string
}

// DefaultMaxClients is used when RegistryConfig.MaxClients is not set.
const DefaultMaxClients = 10000

// Registry holds the live clients by id.
type Registry struct {
	cfg    RegistryConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	now func() time.Time
}

func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

// Get returns the client with id and marks it as seen.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()

	if ok {
		c.touch(r.now())
	}
	return c, ok
}

// Create builds a new client. A non-empty token is a persisted access token;
// the client resumes that session when the token is still good and starts
// signed out otherwise.
func (r *Registry) Create(ctx context.Context, token string) (*Client, error) {
	ident := r.cfg.Identity.NewClient()

	manager := session.New(session.Config{
		Provider:          ident,
		Profiles:          r.cfg.Profiles,
		Logger:            r.logger,
		OAuthRedirectURL:  r.cfg.OAuthRedirectURL,
		SignUpRedirectURL: r.cfg.SignUpRedirectURL,
	})
	gen := notification.NewGenerator(r.cfg.Events, r.logger)
	manager.OnIdentityChange(regenerate(gen, r.logger))

	c := &Client{
		ID:            xid.New().String(),
		Identity:      ident,
		Session:       manager,
		Notifications: gen,
		lastSeen:      r.now(),
	}

	if _, err := ident.Resume(ctx, token); err != nil {
		manager.Close()
		return nil, fmt.Errorf("client: resuming session: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		manager.Close()
		return nil, fmt.Errorf("client: registry closed")
	}
	var evicted *Client
	if len(r.clients) >= r.cfg.MaxClients {
		evicted = r.leastRecentlySeen()
		delete(r.clients, evicted.ID)
	}
	r.clients[c.ID] = c
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		r.logger.Warn("client limit reached, evicted least recently seen client",
			slog.String("client_id", evicted.ID),
			slog.Int("max_clients", r.cfg.MaxClients),
		)
	}
	r.logger.Debug("client created", slog.String("client_id", c.ID))
	return c, nil
}

// leastRecentlySeen is called with mu held on a non-empty registry.
func (r *Registry) leastRecentlySeen() *Client {
	var oldest *Client
	var oldestSeen time.Time
	for _, c := range r.clients {
		seen := c.idleSince()
		if oldest == nil || seen.Before(oldestSeen) {
			oldest, oldestSeen = c, seen
		}
	}
	return oldest
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep drops every client idle for longer than IdleTTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	var expired []*Client
	r.mu.Lock()
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) {
			expired = append(expired, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("idle clients evicted", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps on a ticker until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close drops every client. Later Create calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.closed = true
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
