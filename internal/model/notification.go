package model

import "time"

// NotificationKind classifies a notification for display.
type NotificationKind string

const (
	NotificationReminder NotificationKind = "reminder"
	NotificationSystem   NotificationKind = "system"
	NotificationEvent    NotificationKind = "event"
)

// Notification is a transient message shown to a signed-in user.
// Notifications are never stored; they are regenerated whenever the user changes.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"date"`
	Read      bool             `json:"read"`
	EventID   string           `json:"eventId,omitempty"`
	Kind      NotificationKind `json:"type"`
}

// Announcement is a campus-wide message published by the administration.
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Date      time.Time `json:"date"`
	Important bool      `json:"important"`
}
