// Package schedule finds free time in a calendar and merges events from
// independent sources.
package schedule

import (
	"sort"
	"time"

	"flowmind/internal/domain"
)

const (
	DefaultHorizonDays       = 7
	DefaultBusinessStartHour = 9
	DefaultBusinessEndHour   = 18
	DefaultMinDuration       = 60
	// MaxFreeSlots bounds the number of slots returned to a caller.
	MaxFreeSlots = 20
)

// SlotOptions controls the search window. Zero values take the defaults above.
type SlotOptions struct {
	Now                time.Time
	Location           *time.Location
	HorizonDays        int
	BusinessStartHour  int
	BusinessEndHour    int
	MinDurationMinutes int
	Limit              int
}

func (o SlotOptions) withDefaults() SlotOptions {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	if o.BusinessStartHour == 0 && o.BusinessEndHour == 0 {
		o.BusinessStartHour = DefaultBusinessStartHour
		o.BusinessEndHour = DefaultBusinessEndHour
	}
	if o.MinDurationMinutes <= 0 {
		o.MinDurationMinutes = DefaultMinDuration
	}
	if o.Limit <= 0 || o.Limit > MaxFreeSlots {
		o.Limit = MaxFreeSlots
	}
	return o
}

// FindFreeSlots walks weekdays from today through the horizon and returns the
// gaps between busy intervals inside business hours that last at least the
// minimum duration. A busy interval counts for a day when it starts within that
// day's business window or is still running when the window opens. A nil busy
// list yields the full windows.
func FindFreeSlots(busy []domain.Interval, opts SlotOptions) []domain.FreeSlot {
	opts = opts.withDefaults()
	minGap := time.Duration(opts.MinDurationMinutes) * time.Minute

	now := opts.Now.In(opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, opts.Location)

	var slots []domain.FreeSlot
	for d := 0; d < opts.HorizonDays; d++ {
		day := today.AddDate(0, 0, d)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		workStart := time.Date(day.Year(), day.Month(), day.Day(), opts.BusinessStartHour, 0, 0, 0, opts.Location)
		workEnd := time.Date(day.Year(), day.Month(), day.Day(), opts.BusinessEndHour, 0, 0, 0, opts.Location)

		var dayBusy []domain.Interval
		for _, b := range busy {
			start := b.Start.In(opts.Location)
			if start.After(workEnd) {
				continue
			}
			if start.Before(workStart) && !b.End.After(workStart) {
				continue
			}
			dayBusy = append(dayBusy, b)
		}
		sort.SliceStable(dayBusy, func(i, j int) bool {
			return dayBusy[i].Start.Before(dayBusy[j].Start)
		})

		cursor := workStart
		for _, b := range dayBusy {
			if b.Start.Sub(cursor) >= minGap {
				slots = append(slots, domain.NewFreeSlot(cursor, b.Start.In(opts.Location)))
			}
			if b.End.After(cursor) {
				cursor = b.End.In(opts.Location)
			}
		}
		if workEnd.Sub(cursor) >= minGap {
			slots = append(slots, domain.NewFreeSlot(cursor, workEnd))
		}
	}

	if len(slots) > opts.Limit {
		slots = slots[:opts.Limit]
	}
	return slots
}

// BusyIntervals projects events onto the intervals they occupy.
func BusyIntervals(events []domain.Event) []domain.Interval {
	out := make([]domain.Interval, 0, len(events))
	for _, e := range events {
		out = append(out, domain.Interval{Start: e.Start, End: e.End})
	}
	return out
}

// Overlaps reports whether any event intersects [start, end).
func Overlaps(events []domain.Event, start, end time.Time) bool {
	for _, e := range events {
		if e.Start.Before(end) && e.End.After(start) {
			return true
		}
	}
	return false
}
