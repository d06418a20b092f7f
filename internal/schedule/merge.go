package schedule

import (
	"sort"
	"time"

	"flowmind/internal/domain"
)

// MaxListedEvents bounds how many merged events are rendered in one reply.
const MaxListedEvents = 20

type eventKey struct {
	title string
	start int64
}

// MergeEvents combines two event sources into one list sorted by start.
// Events with the same title and start instant are collapsed and the copy from
// a wins. Near-duplicates with different titles are kept.
func MergeEvents(a, b []domain.Event) []domain.Event {
	seen := make(map[eventKey]struct{}, len(a)+len(b))
	merged := make([]domain.Event, 0, len(a)+len(b))
	for _, src := range [][]domain.Event{a, b} {
		for _, e := range src {
			k := eventKey{title: e.Title, start: e.Start.UnixNano()}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, e)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}

// DayGroup is a run of consecutive events sharing a calendar date.
type DayGroup struct {
	Date   time.Time
	Events []domain.Event
}

// GroupByDate splits sorted events into runs by calendar date in loc. A new
// group starts whenever an event's date differs from the previous event's.
func GroupByDate(events []domain.Event, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	var groups []DayGroup
	for _, e := range events {
		start := e.Start.In(loc)
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if n := len(groups); n == 0 || !groups[n-1].Date.Equal(date) {
			groups = append(groups, DayGroup{Date: date})
		}
		groups[len(groups)-1].Events = append(groups[len(groups)-1].Events, e)
	}
	return groups
}

// Truncate caps events at MaxListedEvents and returns the original total.
func Truncate(events []domain.Event) ([]domain.Event, int) {
	total := len(events)
	if total > MaxListedEvents {
		return events[:MaxListedEvents], total
	}
	return events, total
}
