package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"flowmind/internal/domain"
)

func newTestMindFlow(store *memStore, cal domain.CalendarProvider, c domain.Completer) *MindFlow {
	return NewMindFlow(MindFlowConfig{
		Store:     store,
		Calendar:  cal,
		Completer: c,
		Parser:    testParser(),
		Logger:    testLogger(),
	})
}

func TestMindFlow_ProactiveStoresAndShowsSuggestions(t *testing.T) {
	store := newMemStore()
	store.CreateTask(context.Background(), domain.Task{Title: "Ship release", Owner: "u1", Priority: domain.PriorityHigh})
	fc := &fakeCompleter{reply: "nothing structured here"}

	reply := newTestMindFlow(store, nil, fc).Handle(context.Background(), "u1",
		domain.OrchestrationIntent{Action: domain.OrchestrationProactive})

	if len(store.suggestions) != 1 {
		t.Fatalf("stored %d suggestions, want 1", len(store.suggestions))
	}
	sg := store.suggestions[0]
	if sg.Kind != domain.KindScheduleTask || sg.Owner != "u1" {
		t.Errorf("suggestion = %+v", sg)
	}
	if !strings.Contains(reply, "MindFlow Insights") || !strings.Contains(reply, "Schedule 'Ship release'") {
		t.Errorf("reply = %q", reply)
	}
	if fc.calls != 1 {
		t.Errorf("model calls = %d, want 1", fc.calls)
	}
}

func TestMindFlow_ProactiveWithNothingToSuggest(t *testing.T) {
	reply := newTestMindFlow(newMemStore(), nil, nil).Handle(context.Background(), "u1",
		domain.OrchestrationIntent{Action: domain.OrchestrationProactive})
	if !strings.HasPrefix(reply, "🧠 You're doing great!") {
		t.Errorf("reply = %q", reply)
	}
}

func TestMindFlow_ProactiveStoreFailure(t *testing.T) {
	store := newMemStore()
	store.failTasks = errBoom
	reply := newTestMindFlow(store, nil, nil).Handle(context.Background(), "u1",
		domain.OrchestrationIntent{Action: domain.OrchestrationProactive})
	if !strings.HasPrefix(reply, "🧠 I'm having trouble analyzing") || !strings.Contains(reply, "boom") {
		t.Errorf("reply = %q", reply)
	}
}

func TestMindFlow_Status(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedTasks(store, "u1", "Write tests", "Review PR", "Deploy")
	store.UpdateTaskStatus(ctx, store.tasks[2].ID, domain.TaskCompleted)
	store.events = []domain.Event{{Title: "Standup", Start: at(15, 10, 0), End: at(15, 10, 15), Owner: "u1"}}

	reply := newTestMindFlow(store, nil, nil).Handle(ctx, "u1", domain.OrchestrationIntent{Action: domain.OrchestrationStatus})
	for _, want := range []string{
		"**Pending Tasks:** 2",
		"**Completed Today:** 1",
		"**Today's Events:** 1",
		"Write tests",
		"Review PR",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestMindFlow_DailySummary(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Deploy")
	store.UpdateTaskStatus(context.Background(), store.tasks[0].ID, domain.TaskCompleted)
	fc := &fakeCompleter{reply: " Great day! "}

	reply := newTestMindFlow(store, nil, fc).Handle(context.Background(), "u1", domain.OrchestrationIntent{Action: domain.OrchestrationDaily})
	if reply != "📈 **Daily Summary:**\n\nGreat day!" {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(fc.prompts[0], "Completed 1 tasks today") || !strings.Contains(fc.prompts[0], "Completed tasks: Deploy") {
		t.Errorf("prompt = %q", fc.prompts[0])
	}
}

func TestMindFlow_DailySummaryModelFailure(t *testing.T) {
	reply := newTestMindFlow(newMemStore(), nil, &fakeCompleter{err: errBoom}).Handle(context.Background(), "u1",
		domain.OrchestrationIntent{Action: domain.OrchestrationDaily})
	if reply != "📈 I'm having trouble generating your daily summary. Error: boom" {
		t.Errorf("reply = %q", reply)
	}
}

func TestWorkflowTips(t *testing.T) {
	now := refNow
	high := func(n int) []domain.Task {
		var out []domain.Task
		for i := 0; i < n; i++ {
			out = append(out, domain.Task{Priority: domain.PriorityHigh, Status: domain.TaskPending})
		}
		return out
	}
	events := func(n int) []domain.Event { return make([]domain.Event, n) }
	overdue := domain.Task{Priority: domain.PriorityLow, Status: domain.TaskPending, DueDate: dueAt(now.Add(-time.Hour))}

	tests := []struct {
		name   string
		tasks  []domain.Task
		events []domain.Event
		want   []string
	}{
		{"balanced", high(5), events(8), []string{"Your workflow looks well-organized"}},
		{"too many high", high(6), nil, []string{"breaking down high-priority"}},
		{"overdue", []domain.Task{overdue}, nil, []string{"You have 1 overdue tasks"}},
		{"packed calendar", nil, events(9), []string{"calendar looks packed"}},
		{"all", append(high(6), overdue), events(9), []string{"breaking down", "overdue", "packed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := WorkflowTips(tt.tasks, tt.events, now)
			if len(tips) != len(tt.want) {
				t.Fatalf("tips = %q", tips)
			}
			for i, want := range tt.want {
				if !strings.Contains(tips[i], want) {
					t.Errorf("tip %d = %q, want it to mention %q", i, tips[i], want)
				}
			}
		})
	}
}

func TestMindFlow_DailyReportFallback(t *testing.T) {
	got := newTestMindFlow(newMemStore(), nil, &fakeCompleter{err: errBoom}).DailyReport(context.Background(), "u1")
	if !strings.HasPrefix(got, "Here's your daily summary: You're making progress") || !strings.Contains(got, "boom") {
		t.Errorf("report = %q", got)
	}
}

func TestMindFlow_DailyReport(t *testing.T) {
	fc := &fakeCompleter{reply: "Solid progress."}
	got := newTestMindFlow(newMemStore(), nil, fc).DailyReport(context.Background(), "u1")
	if got != "Solid progress." {
		t.Errorf("report = %q", got)
	}
	if !strings.Contains(fc.prompts[0], "Keep it under 200 words.") {
		t.Errorf("prompt = %q", fc.prompts[0])
	}
}
