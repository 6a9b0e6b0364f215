package query

import (
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sakif/campus-connect/internal/model"
)

// SortKey selects the ordering applied by Sort.
type SortKey string

const (
	SortDateAsc    SortKey = "date-asc"
	SortDateDesc   SortKey = "date-desc"
	SortTitleAsc   SortKey = "title-asc"
	SortTitleDesc  SortKey = "title-desc"
	SortPopularity SortKey = "popularity"
)

// DefaultSort is the ordering the Events page starts with.
const DefaultSort = SortDateAsc

// ParseSortKey validates a sort key coming from user input.
// The empty string resolves to DefaultSort.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return DefaultSort, nil
	case SortDateAsc, SortDateDesc, SortTitleAsc, SortTitleDesc, SortPopularity:
		return k, nil
	default:
		return "", fmt.Errorf("query: unknown sort key %q", s)
	}
}

// Sort returns a sorted copy of events.
//
// Every ordering is stable: events that compare equal keep their input order,
// which makes the result a total order and deterministic under test.
// An unknown key returns a copy in input order.
func Sort(events []model.Event, key SortKey) []model.Event {
	result := slices.Clone(events)

	switch key {
	case SortDateAsc:
		slices.SortStableFunc(result, func(a, b model.Event) int {
			return a.Date.Compare(b.Date)
		})
	case SortDateDesc:
		slices.SortStableFunc(result, func(a, b model.Event) int {
			return b.Date.Compare(a.Date)
		})
	case SortTitleAsc, SortTitleDesc:
		// A Collator is not safe for concurrent use, so each sort builds its own.
		col := collate.New(language.English)
		desc := key == SortTitleDesc
		slices.SortStableFunc(result, func(a, b model.Event) int {
			if desc {
				return col.CompareString(b.Title, a.Title)
			}
			return col.CompareString(a.Title, b.Title)
		})
	case SortPopularity:
		slices.SortStableFunc(result, func(a, b model.Event) int {
			return b.CurrentAttendees - a.CurrentAttendees
		})
	}

	return result
}
