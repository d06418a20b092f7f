package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"flowmind/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeCompleter struct {
	reply  string
	err    error
	calls  int
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.Message, _ string) (string, error) {
	f.calls++
	if len(messages) > 0 {
		f.prompt = messages[0].Content
	}
	return f.reply, f.err
}

var refNow = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func newTestEngine(c domain.Completer) *Engine {
	return NewEngine(Config{Completer: c, Now: func() time.Time { return refNow }, Logger: testLogger()})
}

func slot(hour, minutes int) domain.FreeSlot {
	start := time.Date(2024, 1, 15, hour, 0, 0, 0, time.UTC)
	return domain.NewFreeSlot(start, start.Add(time.Duration(minutes)*time.Minute))
}

func events(n int) []domain.Event {
	var out []domain.Event
	for i := 0; i < n; i++ {
		start := time.Date(2024, 1, 15, 9+i, 0, 0, 0, time.UTC)
		out = append(out, domain.Event{Title: fmt.Sprintf("meeting %d", i), Start: start, End: start.Add(30 * time.Minute)})
	}
	return out
}

func highTasks(n int) []domain.Task {
	var out []domain.Task
	for i := 0; i < n; i++ {
		out = append(out, domain.Task{ID: fmt.Sprintf("h%d", i), Title: fmt.Sprintf("high %d", i), Priority: domain.PriorityHigh, Status: domain.TaskPending})
	}
	return out
}

const twoModelSuggestions = `[
  {"type":"focus","title":"Block focus time","description":"Protect your afternoon"},
  {"type":"batch","title":"Batch your email","description":"Twice a day"}
]`

func kinds(s []domain.Suggestion) []domain.SuggestionKind {
	out := make([]domain.SuggestionKind, len(s))
	for i := range s {
		out[i] = s[i].Kind
	}
	return out
}

func TestGenerate_FullPipelineOrder(t *testing.T) {
	a := domain.Task{ID: "a", Title: "A", Priority: domain.PriorityHigh}
	b := domain.Task{ID: "b", Title: "B", Priority: domain.PriorityMedium}
	fc := &fakeCompleter{reply: twoModelSuggestions}

	got := newTestEngine(fc).Generate(context.Background(), Input{
		Owner:     "u1",
		Tasks:     highTasks(6),
		Urgent:    []domain.Task{a, b},
		Events:    events(5),
		FreeSlots: []domain.FreeSlot{slot(9, 60), slot(11, 30), slot(13, 90)},
	})

	want := []domain.SuggestionKind{
		domain.KindScheduleTask,
		domain.KindScheduleTask,
		domain.KindBreakReminder,
		domain.KindPriorityReview,
		domain.KindModelGenerated,
	}
	if fmt.Sprint(kinds(got)) != fmt.Sprint(want) {
		t.Fatalf("got kinds %v, want %v", kinds(got), want)
	}
	if got[0].Payload["task_id"] != "a" || got[1].Payload["task_id"] != "b" {
		t.Errorf("expected urgent tasks in input order, got %v, %v", got[0].Payload["task_id"], got[1].Payload["task_id"])
	}
	if got[0].Payload["duration"] != 60 {
		t.Errorf("expected the 60 minute slot, got %v", got[0].Payload["duration"])
	}
	if got[3].Payload["high_priority_count"] != 6 {
		t.Errorf("expected high priority count 6, got %v", got[3].Payload["high_priority_count"])
	}
	if got[4].Title != "Block focus time" {
		t.Errorf("expected first model candidate, got %q", got[4].Title)
	}
	for _, s := range got {
		if s.ID == "" || s.Owner != "u1" || s.Status != domain.SuggestionPending {
			t.Errorf("incomplete suggestion: %+v", s)
		}
		if s.ExpiresAt == nil || !s.ExpiresAt.Equal(refNow.Add(DefaultTTL)) {
			t.Errorf("expected expiry at now+ttl, got %v", s.ExpiresAt)
		}
	}
}

func TestGenerate_WorkDurationCapped(t *testing.T) {
	got := newTestEngine(nil).Generate(context.Background(), Input{
		Urgent:    []domain.Task{{ID: "a", Title: "A"}},
		FreeSlots: []domain.FreeSlot{slot(9, 30), slot(10, 45), slot(13, 240)},
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Payload["duration"] != maxWorkMinutes {
		t.Fatalf("expected duration capped at %d, got %v", maxWorkMinutes, got[0].Payload["duration"])
	}
	if !strings.Contains(got[0].Title, "'A'") {
		t.Errorf("unexpected title %q", got[0].Title)
	}
}

func TestGenerate_OnlyFirstThreeSlotsScanned(t *testing.T) {
	got := newTestEngine(nil).Generate(context.Background(), Input{
		Urgent:    []domain.Task{{ID: "a", Title: "A"}},
		FreeSlots: []domain.FreeSlot{slot(9, 30), slot(10, 30), slot(11, 30), slot(13, 180)},
	})
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

func TestGenerate_ModelFailureContributesNothing(t *testing.T) {
	for _, fc := range []*fakeCompleter{
		{err: errors.New("provider down")},
		{reply: "I'm not sure what to suggest."},
		{reply: `{"title": "not an array"}`},
	} {
		got := newTestEngine(fc).Generate(context.Background(), Input{
			Tasks:  highTasks(6),
			Events: events(4),
		})
		want := []domain.SuggestionKind{domain.KindBreakReminder, domain.KindPriorityReview}
		if fmt.Sprint(kinds(got)) != fmt.Sprint(want) {
			t.Errorf("reply %q err %v: got %v, want %v", fc.reply, fc.err, kinds(got), want)
		}
		if fc.calls != 1 {
			t.Errorf("expected one model call, got %d", fc.calls)
		}
	}
}

func TestGenerate_NoModelCallWithoutTasksOrEvents(t *testing.T) {
	fc := &fakeCompleter{reply: twoModelSuggestions}
	got := newTestEngine(fc).Generate(context.Background(), Input{FreeSlots: []domain.FreeSlot{slot(9, 60)}})
	if len(got) != 0 || fc.calls != 0 {
		t.Fatalf("expected nothing and no model call, got %d suggestions and %d calls", len(got), fc.calls)
	}
}

func TestGenerate_HeuristicsNeverDisplaced(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n" + twoModelSuggestions + "\n```"}
	urgent := []domain.Task{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}

	for n := 0; n <= 6; n++ {
		in := Input{Tasks: highTasks(n), Events: events(n), Urgent: urgent[:min(n, 3)], FreeSlots: []domain.FreeSlot{slot(9, 90)}}
		got := newTestEngine(fc).Generate(context.Background(), in)
		if len(got) > MaxSuggestions {
			t.Fatalf("n=%d: %d suggestions exceeds cap", n, len(got))
		}
		seenModel := false
		for _, s := range got {
			if s.Kind == domain.KindModelGenerated {
				seenModel = true
			} else if seenModel {
				t.Fatalf("n=%d: heuristic suggestion after model output: %v", n, kinds(got))
			}
		}
	}
}

func TestGenerate_ModelCandidatesCapped(t *testing.T) {
	fc := &fakeCompleter{reply: `[{"title":"one"},{"title":""},{"title":"two"},{"title":"three"}]`}
	got := newTestEngine(fc).Generate(context.Background(), Input{Tasks: []domain.Task{{Title: "x"}}})
	if len(got) != 2 || got[0].Title != "one" || got[1].Title != "two" {
		t.Fatalf("expected the first two titled candidates, got %+v", got)
	}
	if !strings.Contains(fc.prompt, `"title": "x"`) {
		t.Errorf("expected task titles in the model context, got %s", fc.prompt)
	}
}
