// Package notification derives a signed-in user's notification list from the
// event catalogue.
//
// Notifications are never stored. The list is rebuilt from scratch whenever
// the signed-in user changes, so read flags only live until the next rebuild.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sakif/campus-connect/internal/model"
)

// ReminderWindow is how far ahead an event must start to get a reminder.
const ReminderWindow = 3 * 24 * time.Hour

// dateLayout renders reminder dates as month/day/year without padding.
const dateLayout = "1/2/2006"

const welcomeID = "welcome"

// EventLister is the part of the event store the generator reads.
type EventLister interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
}

// Generator holds one client's notification list.
type Generator struct {
	events EventLister
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	items []model.Notification
}

func NewGenerator(events EventLister, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Regenerate replaces the list for userID. An empty userID means nobody is
// signed in and leaves the list empty. When the events cannot be loaded the
// list still carries the welcome entry and the error is returned.
func (g *Generator) Regenerate(ctx context.Context, userID string) error {
	if userID == "" {
		g.replace(nil)
		return nil
	}

	now := g.now()
	items := []model.Notification{{
		ID:        welcomeID,
		Title:     "Welcome to CampusConnect",
		Message:   "Thanks for joining our platform. Start exploring campus events!",
		CreatedAt: now,
		Kind:      model.NotificationSystem,
	}}

	events, err := g.events.ListEvents(ctx)
	if err != nil {
		g.replace(items)
		return fmt.Errorf("notification: listing events: %w", err)
	}

	items = append(items, reminders(events, now)...)
	g.replace(items)

	g.logger.Debug("notifications regenerated",
		slog.String("user_id", userID),
		slog.Int("count", len(items)),
	)
	return nil
}

// reminders returns one reminder per event starting in (now, now+ReminderWindow].
func reminders(events []model.Event, now time.Time) []model.Notification {
	horizon := now.Add(ReminderWindow)

	var out []model.Notification
	for _, e := range events {
		if !e.Date.After(now) || e.Date.After(horizon) {
			continue
		}
		out = append(out, model.Notification{
			ID:        "event-reminder-" + e.ID,
			Title:     "Event Reminder",
			Message:   fmt.Sprintf("%s is happening soon on %s", e.Title, e.Date.Format(dateLayout)),
			CreatedAt: now,
			EventID:   e.ID,
			Kind:      model.NotificationReminder,
		})
	}
	return out
}

func (g *Generator) replace(items []model.Notification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = items
}

// MarkAsRead flags the notification with id as read. It reports false when
// there is no such notification.
func (g *Generator) MarkAsRead(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.items {
		if g.items[i].ID == id {
			g.items[i].Read = true
			return true
		}
	}
	return false
}

func (g *Generator) MarkAllAsRead() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.items {
		g.items[i].Read = true
	}
}

// UnreadCount is computed from the current list on every call.
func (g *Generator) UnreadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, item := range g.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// List returns a copy of the current notifications, welcome entry first.
func (g *Generator) List() []model.Notification {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.items == nil {
		return []model.Notification{}
	}
	return slices.Clone(g.items)
}
