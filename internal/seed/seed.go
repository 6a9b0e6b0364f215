// Package seed loads the demo dataset: two accounts, a spread of events around
// the current date and a few announcements.
//
// Load is safe to run on every start. Accounts that already exist are left
// alone, and events and announcements are only inserted into an empty store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/repository"
	"github.com/sakif/campus-connect/internal/service"
)

// Demo credentials shown on the login page.
const (
	AdminEmail      = "admin@campus.edu"
	AdminPassword   = "admin123"
	StudentEmail    = "student@campus.edu"
	StudentPassword = "student123"
)

type Deps struct {
	Identity *identity.Service
	Profiles *service.ProfileService
	Store    repository.Store
	Logger   *slog.Logger
}

// Load seeds the store relative to now.
func Load(ctx context.Context, d Deps, now time.Time) error {
	if err := loadAccount(ctx, d, AdminEmail, AdminPassword, model.RoleAdmin); err != nil {
		return err
	}
	if err := loadAccount(ctx, d, StudentEmail, StudentPassword, model.RoleStudent); err != nil {
		return err
	}

	existing, err := d.Store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("seed: listing events: %w", err)
	}
	if len(existing) == 0 {
		for _, e := range Events(now) {
			if err := d.Store.CreateEvent(ctx, &e); err != nil {
				return fmt.Errorf("seed: creating event %q: %w", e.Title, err)
			}
		}
	}

	announcements, err := d.Store.ListAnnouncements(ctx)
	if err != nil {
		return fmt.Errorf("seed: listing announcements: %w", err)
	}
	if len(announcements) == 0 {
		for _, a := range Announcements(now) {
			if err := d.Store.CreateAnnouncement(ctx, &a); err != nil {
				return fmt.Errorf("seed: creating announcement %q: %w", a.Title, err)
			}
		}
	}

	d.Logger.InfoContext(ctx, "demo data loaded",
		slog.Bool("events_inserted", len(existing) == 0),
		slog.Bool("announcements_inserted", len(announcements) == 0),
	)
	return nil
}

func loadAccount(ctx context.Context, d Deps, email, password string, role model.Role) error {
	_, err := d.Store.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("seed: looking up %s: %w", email, err)
	}

	account, err := d.Identity.CreateAccount(ctx, email, password, true)
	if err != nil {
		return fmt.Errorf("seed: creating %s: %w", email, err)
	}
	if role != model.RoleStudent {
		if err := d.Profiles.SetRole(ctx, account.ID, role); err != nil {
			return fmt.Errorf("seed: promoting %s: %w", email, err)
		}
	}
	return nil
}

func day(now time.Time, days, hour int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+days, hour, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// Events returns the demo events. Dates are whole hours relative to now: two
// fall inside the reminder window, several later, and two in the past.
func Events(now time.Time) []model.Event {
	return []model.Event{
		{
			Title:                "Spring Hackathon",
			Description:          "Build something in 24 hours with a team of up to four. Food and mentors provided.",
			Date:                 day(now, 2, 18),
			EndDate:              ptr(day(now, 3, 18)),
			Location:             "Engineering Building, Room 101",
			Category:             model.CategoryTech,
			Organizer:            "Computer Science Society",
			RegistrationDeadline: ptr(day(now, 1, 23)),
			MaxAttendees:         ptr(120),
			CurrentAttendees:     87,
			IsFeatured:           true,
		},
		{
			Title:        "Spring Career Fair",
			Description:  "Meet recruiters from over forty companies hiring for internships and graduate roles.",
			Date:         day(now, 1, 10),
			Location:     "Student Union Hall",
			Category:     model.CategoryCareer,
			Organizer:    "Career Services",
			MaxAttendees: ptr(500),
			IsFeatured:   true,
		},
		{
			Title:            "Watercolour Workshop",
			Description:      "An introduction to watercolour techniques. All materials are supplied.",
			Date:             day(now, 6, 14),
			Location:         "Arts Centre, Studio B",
			Category:         model.CategoryWorkshop,
			Organizer:        "Art Club",
			MaxAttendees:     ptr(20),
			CurrentAttendees: 20,
		},
		{
			Title:       "Inter-Faculty Football Final",
			Description: "The season decider between Engineering and Medicine. Come and support your faculty.",
			Date:        day(now, 9, 16),
			Location:    "North Sports Field",
			Category:    model.CategorySports,
			Organizer:   "Athletics Department",
			IsFeatured:  true,
		},
		{
			Title:       "Guest Lecture: The Future of AI",
			Description: "A talk on where machine learning research is heading, followed by questions.",
			Date:        day(now, 12, 17),
			Location:    "Main Auditorium",
			Category:    model.CategoryAcademic,
			Organizer:   "Faculty of Science",
		},
		{
			Title:        "International Food Night",
			Description:  "Taste dishes from around the world cooked by student societies.",
			Date:         day(now, 15, 19),
			Location:     "Campus Green",
			Category:     model.CategorySocial,
			Organizer:    "International Students Association",
			MaxAttendees: ptr(300),
		},
		{
			Title:       "Photography Club Open Day",
			Description: "See the darkroom, borrow a camera and join a short photo walk around campus.",
			Date:        day(now, -5, 13),
			Location:    "Media Lab",
			Category:    model.CategoryClub,
			Organizer:   "Photography Club",
		},
		{
			Title:       "Student Art Exhibition",
			Description: "Final year students present their portfolio work. Opening night with music.",
			Date:        day(now, -12, 18),
			Location:    "Gallery One",
			Category:    model.CategoryArt,
			Organizer:   "School of Fine Art",
		},
	}
}

// Announcements returns the demo announcements.
func Announcements(now time.Time) []model.Announcement {
	return []model.Announcement{
		{
			Title:     "Library hours extended",
			Content:   "The main library is open until midnight during the exam period.",
			Author:    "Library Services",
			Date:      day(now, -1, 9),
			Important: true,
		},
		{
			Title:   "New event registration system",
			Content: "You can now register for campus events directly from CampusConnect.",
			Author:  "Student Affairs",
			Date:    day(now, -3, 9),
		},
		{
			Title:   "Parking lot C closed",
			Content: "Lot C is closed for resurfacing for two weeks. Please use lot D.",
			Author:  "Facilities",
			Date:    day(now, -7, 9),
		},
	}
}
