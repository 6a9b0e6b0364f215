// Package client keeps the per-browser state of the application.
//
// Every browser is identified by a cookie and owns one Client: its identity
// provider handle, the session manager subscribed to it, its notification
// list and its toast inbox. The Registry creates clients on first contact and
// forgets them once they have been idle for too long.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/notification"
	"github.com/sakif/campus-connect/internal/session"
)

// Client is one browser's state.
type Client struct {
	ID            string
	Identity      *identity.Client
	Session       *session.Manager
	Notifications *notification.Generator

	mu       sync.Mutex
	lastSeen time.Time
}

// Inbox is the toast inbox the session manager reports to.
func (c *Client) Inbox() *session.Inbox {
	return c.Session.Inbox()
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Close releases the session manager's subscription and queue.
func (c *Client) Close() {
	c.Session.Close()
}

type ctxKey struct{}

// WithClient returns a copy of ctx carrying c.
func WithClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the client attached by the client middleware.
func FromContext(ctx context.Context) (*Client, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Client)
	return c, ok && c != nil
}

// regenerate keeps the notification list in step with the signed-in user.
func regenerate(gen *notification.Generator, logger *slog.Logger) session.IdentityListener {
	return func(ctx context.Context, userID string) {
		if err := gen.Regenerate(ctx, userID); err != nil {
			logger.Error("regenerating notifications",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}
