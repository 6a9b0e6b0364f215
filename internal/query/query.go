// Package query implements the event query engine behind the Events page:
// text search, category filtering and sorting over an in-memory event list.
//
// Every function here is pure. Inputs are never modified, and every result is a
// freshly allocated slice, so the same inputs always give the same output no
// matter what other queries ran before.
//
// COMPOSITION ORDER:
// Apply runs search first, then the category filter on that result, then the
// sort. Sorting always happens last because the result feeds a stable render
// list.
package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sakif/campus-connect/internal/model"
)

// Criteria holds the three independent, optional inputs of the Events page.
// The zero value matches every event and keeps input order.
type Criteria struct {
	Query      string
	Categories []model.Category
	Sort       SortKey
}

// Apply composes Search, FilterByCategory and Sort, in that order.
func Apply(events []model.Event, c Criteria) []model.Event {
	result := Search(events, c.Query)
	result = FilterByCategory(result, c.Categories)
	return Sort(result, c.Sort)
}

// Search returns the events whose title, organizer or description contains q,
// ignoring case. A blank query returns a copy of events in original order.
func Search(events []model.Event, q string) []model.Event {
	return searchFields(events, q, func(e *model.Event) []string {
		return []string{e.Title, e.Organizer, e.Description}
	})
}

// SearchAdmin is the event management variant of Search. It matches against
// title, organizer, location and category.
func SearchAdmin(events []model.Event, q string) []model.Event {
	return searchFields(events, q, func(e *model.Event) []string {
		return []string{e.Title, e.Organizer, e.Location, string(e.Category)}
	})
}

func searchFields(events []model.Event, q string, fields func(*model.Event) []string) []model.Event {
	q = strings.TrimSpace(q)
	if q == "" {
		return slices.Clone(events)
	}

	// cases.Caser keeps internal state, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(q)

	result := make([]model.Event, 0, len(events))
	for i := range events {
		for _, field := range fields(&events[i]) {
			if strings.Contains(fold.String(field), needle) {
				result = append(result, events[i])
				break
			}
		}
	}
	return result
}

// FilterByCategory keeps the events whose category is in cats.
// An empty cats means "no restriction" and returns a copy of events.
func FilterByCategory(events []model.Event, cats []model.Category) []model.Event {
	if len(cats) == 0 {
		return slices.Clone(events)
	}

	result := make([]model.Event, 0, len(events))
	for _, e := range events {
		if slices.Contains(cats, e.Category) {
			result = append(result, e)
		}
	}
	return result
}

// Featured returns the featured events, soonest first.
func Featured(events []model.Event) []model.Event {
	result := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.IsFeatured {
			result = append(result, e)
		}
	}
	return Sort(result, SortDateAsc)
}

// Upcoming returns events dated strictly after now, soonest first.
// A limit of zero or less returns all of them.
func Upcoming(events []model.Event, now time.Time, limit int) []model.Event {
	result := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.Date.After(now) {
			result = append(result, e)
		}
	}
	result = Sort(result, SortDateAsc)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// SplitByDate partitions registrations into upcoming (event date at or after
// now) and past (event date before now). Input order is kept in both halves.
func SplitByDate(regs []model.RegistrationWithEvent, now time.Time) (upcoming, past []model.RegistrationWithEvent) {
	upcoming = make([]model.RegistrationWithEvent, 0, len(regs))
	past = make([]model.RegistrationWithEvent, 0)
	for _, r := range regs {
		if r.Event.Date.Before(now) {
			past = append(past, r)
		} else {
			upcoming = append(upcoming, r)
		}
	}
	return upcoming, past
}
