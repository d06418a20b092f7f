package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/schedule"
)

func newTestCalendarFlow(store *memStore, cal domain.CalendarProvider) *CalendarFlow {
	return NewCalendarFlow(CalendarFlowConfig{
		Store:    store,
		Calendar: cal,
		Parser:   testParser(),
		Logger:   testLogger(),
	})
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestCalendarFlow_CreateEventMirrorsRemotely(t *testing.T) {
	store := newMemStore()
	cal := &fakeCalendar{}

	res, err := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "schedule team sync at tomorrow at 2 PM")
	if err != nil {
		t.Fatal(err)
	}

	in := res.Intent.(domain.CalendarIntent)
	if in.Title != "team sync" || in.DateStr != "tomorrow" || in.TimeStr != "2 pm" {
		t.Fatalf("intent = %+v", in)
	}
	if len(store.events) != 1 {
		t.Fatalf("local events = %d, want 1", len(store.events))
	}
	e := store.events[0]
	if !e.Start.Equal(at(16, 14, 0)) || !e.End.Equal(at(16, 15, 0)) {
		t.Errorf("event span = %v - %v", e.Start, e.End)
	}
	if e.ExternalID != "remote-1" {
		t.Errorf("external id = %q", e.ExternalID)
	}
	if !strings.Contains(res.Text, "Added to your remote calendar") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestCalendarFlow_CreateEventSurvivesRemoteFailure(t *testing.T) {
	store := newMemStore()
	cal := &fakeCalendar{err: errBoom}

	res, _ := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "book dentist on tomorrow at 9am")
	if len(store.events) != 1 || store.events[0].ExternalID != "" {
		t.Fatalf("events = %+v", store.events)
	}
	if !strings.Contains(res.Text, "Saved locally") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestCalendarFlow_UnparseableTimeWritesNothing(t *testing.T) {
	store := newMemStore()
	cal := &fakeCalendar{}

	res, _ := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "schedule lunch at tomorrow at 25:00")
	if len(store.events) != 0 || len(cal.created) != 0 {
		t.Fatalf("event written: local %d remote %d", len(store.events), len(cal.created))
	}
	if !strings.HasPrefix(res.Text, "❌ I couldn't understand the date/time") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestCalendarFlow_ScheduleMeetingTitle(t *testing.T) {
	store := newMemStore()
	newTestCalendarFlow(store, nil).Handle(context.Background(), "u1", "set up a meeting with alex on tomorrow at 3 pm")
	if len(store.events) != 1 {
		t.Fatalf("events = %d", len(store.events))
	}
	if got := store.events[0].Title; got != "Meeting with alex" {
		t.Errorf("title = %q", got)
	}
}

func TestCalendarFlow_ListMergesRemoteAndLocal(t *testing.T) {
	store := newMemStore()
	store.events = []domain.Event{
		{ID: "l1", Title: "Sync", Start: at(15, 10, 0), End: at(15, 11, 0), Owner: "u1"},
		{ID: "l2", Title: "Lunch", Start: at(15, 12, 0), End: at(15, 13, 0), Owner: "u1"},
	}
	cal := &fakeCalendar{events: []domain.Event{
		{Title: "Sync", Start: at(15, 10, 0), End: at(15, 11, 0), Location: "Room 4"},
	}}

	res, _ := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "what do i have today")
	if n := strings.Count(res.Text, "Sync"); n != 1 {
		t.Errorf("Sync listed %d times:\n%s", n, res.Text)
	}
	for _, want := range []string{"Today's Schedule", "Lunch", "Room 4"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("reply missing %q:\n%s", want, res.Text)
		}
	}
}

func TestCalendarFlow_ListFallsBackToLocalWhenRemoteFails(t *testing.T) {
	store := newMemStore()
	store.events = []domain.Event{{Title: "Lunch", Start: at(15, 12, 0), End: at(15, 13, 0), Owner: "u1"}}
	cal := &fakeCalendar{err: errBoom}

	res, _ := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "show calendar")
	if !strings.Contains(res.Text, "Lunch") {
		t.Errorf("reply = %q", res.Text)
	}
	if cal.listHits != 1 {
		t.Errorf("remote queried %d times", cal.listHits)
	}
}

func TestCalendarFlow_ListLocalFailureApologizes(t *testing.T) {
	store := newMemStore()
	store.failEvents = errBoom

	res, _ := newTestCalendarFlow(store, &fakeCalendar{}).Handle(context.Background(), "u1", "list events")
	if res.Text != compose.Apology("retrieve your calendar events", errBoom) {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestCalendarFlow_CheckAvailability(t *testing.T) {
	store := newMemStore()
	store.events = []domain.Event{{Title: "Standup", Start: at(16, 10, 0), End: at(16, 10, 15), Owner: "u1"}}
	flow := newTestCalendarFlow(store, nil)

	busy, _ := flow.Handle(context.Background(), "u1", "am i free at 10 am tomorrow")
	if !strings.Contains(busy.Text, "You have conflicts") || !strings.Contains(busy.Text, "Standup") {
		t.Errorf("busy reply = %q", busy.Text)
	}

	free, _ := flow.Handle(context.Background(), "u1", "am i free at 4 pm tomorrow")
	if !strings.Contains(free.Text, "You're free") {
		t.Errorf("free reply = %q", free.Text)
	}
}

func TestCalendarFlow_FreeTimeFromRemote(t *testing.T) {
	cal := &fakeCalendar{slots: []domain.FreeSlot{domain.NewFreeSlot(at(16, 13, 0), at(16, 14, 0))}}

	res, _ := newTestCalendarFlow(newMemStore(), cal).Handle(context.Background(), "u1", "find free time")
	if !strings.Contains(res.Text, "Available Time Slots (60 minutes)") || !strings.Contains(res.Text, "01:00 PM - 02:00 PM") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestCalendarFlow_FreeTimeComputedLocallyWhenRemoteFails(t *testing.T) {
	store := newMemStore()
	store.events = []domain.Event{{Title: "Focus", Start: at(15, 9, 0), End: at(15, 12, 0), Owner: "u1"}}
	cal := &fakeCalendar{err: errBoom}

	res, _ := newTestCalendarFlow(store, cal).Handle(context.Background(), "u1", "find free time for 2 hours")
	if !strings.Contains(res.Text, "Available Time Slots (120 minutes)") {
		t.Fatalf("reply = %q", res.Text)
	}
	// Monday is busy until noon, so the first slot starts then.
	first := res.Text[strings.Index(res.Text, "✅ "):]
	if !strings.HasPrefix(first, "✅ 12:00 PM - 02:00 PM") {
		t.Errorf("first slot line = %q", strings.SplitN(first, "\n", 2)[0])
	}
}

func TestCalendarFlow_DuplicateKeepsRemoteCopy(t *testing.T) {
	store := newMemStore()
	store.events = []domain.Event{{ID: "local-1", Title: "Standup", Start: at(16, 10, 0), End: at(16, 10, 15), Owner: "u1"}}
	cal := &fakeCalendar{events: []domain.Event{{ID: "remote-1", Title: "Standup", Start: at(16, 10, 0), End: at(16, 10, 15), Owner: "u1"}}}
	flow := newTestCalendarFlow(store, cal)

	events, err := flow.Events(context.Background(), "u1", at(16, 0, 0), at(17, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != "remote-1" {
		t.Fatalf("events = %+v, want the remote copy only", events)
	}

	// Availability goes through the same merge.
	res, _ := flow.Handle(context.Background(), "u1", "am i free at 10 am tomorrow")
	if strings.Count(res.Text, "Standup") != 1 {
		t.Errorf("availability reply = %q", res.Text)
	}
}

func TestCalendarFlow_RemoteFreeSlotsCapped(t *testing.T) {
	var slots []domain.FreeSlot
	for i := 0; i < schedule.MaxFreeSlots+5; i++ {
		start := at(16, 9, 0).Add(time.Duration(i) * 2 * time.Hour)
		slots = append(slots, domain.NewFreeSlot(start, start.Add(time.Hour)))
	}
	flow := newTestCalendarFlow(newMemStore(), &fakeCalendar{slots: slots})

	got := flow.FreeSlots(context.Background(), "u1", 60)
	if len(got) != schedule.MaxFreeSlots {
		t.Fatalf("slots = %d, want %d", len(got), schedule.MaxFreeSlots)
	}
	if !got[0].Start.Equal(slots[0].Start) {
		t.Errorf("first slot = %v", got[0].Start)
	}
}
