package model

import "time"

// Registration links a user to an event they signed up for.
// Registrations are removed together with their event.
type Registration struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	EventID          string    `json:"eventId"`
	RegistrationDate time.Time `json:"registrationDate"`
}

// RegistrationWithEvent is a registration joined with the event it refers to.
type RegistrationWithEvent struct {
	RegistrationID   string    `json:"registrationId"`
	RegistrationDate time.Time `json:"registrationDate"`
	Event            Event     `json:"event"`
}
