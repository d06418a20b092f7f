package schedule

import (
	"testing"
	"time"

	"flowmind/internal/domain"
)

// Monday 2024-01-15.
var monday = time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestFindFreeSlots_SingleBusyInterval(t *testing.T) {
	busy := []domain.Interval{{Start: at(15, 10, 0), End: at(15, 11, 30)}}
	slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1, MinDurationMinutes: 60})

	want := []domain.FreeSlot{
		{Start: at(15, 9, 0), End: at(15, 10, 0), DurationMinutes: 60},
		{Start: at(15, 11, 30), End: at(15, 18, 0), DurationMinutes: 390},
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %+v", len(want), len(slots), slots)
	}
	for i := range want {
		if !slots[i].Start.Equal(want[i].Start) || !slots[i].End.Equal(want[i].End) || slots[i].DurationMinutes != want[i].DurationMinutes {
			t.Errorf("slot %d: got %+v, want %+v", i, slots[i], want[i])
		}
	}
}

func TestFindFreeSlots_SkipsShortGaps(t *testing.T) {
	busy := []domain.Interval{
		{Start: at(15, 9, 30), End: at(15, 12, 0)},
		{Start: at(15, 12, 45), End: at(15, 17, 30)},
	}
	slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1, MinDurationMinutes: 60})
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %+v", slots)
	}
}

func TestFindFreeSlots_SkipsWeekends(t *testing.T) {
	friday := time.Date(2024, 1, 19, 12, 0, 0, 0, time.UTC)
	slots := FindFreeSlots(nil, SlotOptions{Now: friday, Location: time.UTC, HorizonDays: 4})

	// Friday and Monday only.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0].Start.Weekday() != time.Friday || slots[1].Start.Weekday() != time.Monday {
		t.Fatalf("unexpected days: %v, %v", slots[0].Start.Weekday(), slots[1].Start.Weekday())
	}
	for _, s := range slots {
		if s.DurationMinutes != 540 {
			t.Errorf("expected full business window, got %d minutes", s.DurationMinutes)
		}
	}
}

func TestFindFreeSlots_UnsortedAndOverlappingBusy(t *testing.T) {
	busy := []domain.Interval{
		{Start: at(15, 14, 0), End: at(15, 15, 0)},
		{Start: at(15, 10, 0), End: at(15, 13, 0)},
		{Start: at(15, 11, 0), End: at(15, 12, 0)}, // contained in the previous one
	}
	slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1, MinDurationMinutes: 60})

	want := [][2]time.Time{
		{at(15, 9, 0), at(15, 10, 0)},
		{at(15, 13, 0), at(15, 14, 0)},
		{at(15, 15, 0), at(15, 18, 0)},
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %+v", len(want), slots)
	}
	for i, w := range want {
		if !slots[i].Start.Equal(w[0]) || !slots[i].End.Equal(w[1]) {
			t.Errorf("slot %d: got %v-%v, want %v-%v", i, slots[i].Start, slots[i].End, w[0], w[1])
		}
	}
}

func TestFindFreeSlots_IgnoresBusyOutsideBusinessHours(t *testing.T) {
	busy := []domain.Interval{
		{Start: at(15, 19, 0), End: at(15, 21, 0)},
		{Start: at(16, 10, 0), End: at(16, 11, 0)}, // other day
	}
	slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1})
	if len(slots) != 1 || slots[0].DurationMinutes != 540 {
		t.Fatalf("expected the full Monday window, got %+v", slots)
	}
}

func TestFindFreeSlots_BusySpanningBusinessStart(t *testing.T) {
	busy := []domain.Interval{{Start: at(15, 8, 0), End: at(15, 10, 0)}}
	slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1})
	if len(slots) != 1 {
		t.Fatalf("expected one slot, got %+v", slots)
	}
	if !slots[0].Start.Equal(at(15, 10, 0)) || slots[0].DurationMinutes != 480 {
		t.Fatalf("slot = %v (%dm), want 10:00-18:00", slots[0].Start, slots[0].DurationMinutes)
	}

	// Ending exactly at the opening leaves the whole window free.
	busy = []domain.Interval{{Start: at(15, 7, 0), End: at(15, 9, 0)}}
	slots = FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 1})
	if len(slots) != 1 || slots[0].DurationMinutes != 540 {
		t.Fatalf("expected the full Monday window, got %+v", slots)
	}
}

func TestFindFreeSlots_Properties(t *testing.T) {
	busy := []domain.Interval{
		{Start: at(15, 9, 0), End: at(15, 9, 45)},
		{Start: at(15, 11, 0), End: at(15, 11, 20)},
		{Start: at(16, 13, 0), End: at(16, 16, 0)},
		{Start: at(17, 9, 10), End: at(17, 17, 55)},
		{Start: at(18, 8, 0), End: at(18, 10, 0)},
		{Start: at(19, 6, 0), End: at(19, 9, 0)},
		{Start: at(19, 17, 30), End: at(19, 20, 0)},
	}
	for _, minutes := range []int{15, 30, 60, 120} {
		slots := FindFreeSlots(busy, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 7, MinDurationMinutes: minutes})
		if len(slots) > MaxFreeSlots {
			t.Fatalf("min=%d: %d slots exceeds cap", minutes, len(slots))
		}
		for _, s := range slots {
			if s.DurationMinutes < minutes {
				t.Errorf("min=%d: slot %+v shorter than requested", minutes, s)
			}
			for _, b := range busy {
				if s.Start.Before(b.End) && s.End.After(b.Start) {
					t.Errorf("min=%d: slot %v-%v overlaps busy %v-%v", minutes, s.Start, s.End, b.Start, b.End)
				}
			}
		}
	}
}

func TestFindFreeSlots_Cap(t *testing.T) {
	slots := FindFreeSlots(nil, SlotOptions{Now: monday, Location: time.UTC, HorizonDays: 60, MinDurationMinutes: 30})
	if len(slots) != MaxFreeSlots {
		t.Fatalf("expected %d slots, got %d", MaxFreeSlots, len(slots))
	}
	if !slots[0].Start.Equal(at(15, 9, 0)) {
		t.Fatalf("expected slots in date order starting today, got %v", slots[0].Start)
	}
}

func TestOverlaps(t *testing.T) {
	events := []domain.Event{{Title: "standup", Start: at(15, 10, 0), End: at(15, 10, 30)}}
	if !Overlaps(events, at(15, 9, 45), at(15, 10, 15)) {
		t.Error("expected overlap")
	}
	if Overlaps(events, at(15, 10, 30), at(15, 11, 0)) {
		t.Error("adjacent windows should not overlap")
	}
}
