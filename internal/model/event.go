package model

import "time"

// Category is one of the fixed event categories shown in the category filter.
type Category string

const (
	CategoryAcademic Category = "academic"
	CategoryArt      Category = "art"
	CategoryCareer   Category = "career"
	CategoryClub     Category = "club"
	CategorySocial   Category = "social"
	CategorySports   Category = "sports"
	CategoryTech     Category = "tech"
	CategoryWorkshop Category = "workshop"
)

// Categories returns every category in display order.
// A fresh slice is returned each call so callers may modify it.
func Categories() []Category {
	return []Category{
		CategoryAcademic,
		CategoryArt,
		CategoryCareer,
		CategoryClub,
		CategorySocial,
		CategorySports,
		CategoryTech,
		CategoryWorkshop,
	}
}

// Valid reports whether c is a member of the fixed category set.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Event represents a scheduled campus activity.
//
// OPTIONAL FIELDS:
// EndDate, RegistrationDeadline and MaxAttendees are pointers because "not set"
// is a meaningful state that differs from the zero value. An event with
// MaxAttendees == nil has no capacity limit; one with *MaxAttendees == 0 would be
// nonsense, and validation rejects it.
//
// INVARIANT:
// CurrentAttendees >= 0, and CurrentAttendees <= *MaxAttendees when MaxAttendees is set.
type Event struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Date                 time.Time  `json:"date"`
	EndDate              *time.Time `json:"endDate,omitempty"`
	Location             string     `json:"location"`
	Category             Category   `json:"category"`
	Organizer            string     `json:"organizer"`
	Image                string     `json:"image,omitempty"`
	RegistrationDeadline *time.Time `json:"registrationDeadline,omitempty"`
	MaxAttendees         *int       `json:"maxAttendees,omitempty"`
	CurrentAttendees     int        `json:"currentAttendees"`
	IsFeatured           bool       `json:"isFeatured"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// IsFull reports whether the event has a capacity and has reached it.
func (e *Event) IsFull() bool {
	return e.MaxAttendees != nil && e.CurrentAttendees >= *e.MaxAttendees
}

// RegistrationClosed reports whether the registration deadline has passed at now.
// Events without a deadline close when they start.
func (e *Event) RegistrationClosed(now time.Time) bool {
	if e.RegistrationDeadline != nil {
		return now.After(*e.RegistrationDeadline)
	}
	return !now.Before(e.Date)
}
