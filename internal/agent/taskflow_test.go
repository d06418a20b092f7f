package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
)

func newTestTaskFlow(store *memStore, c domain.Completer) *TaskFlow {
	return NewTaskFlow(TaskFlowConfig{Store: store, Completer: c, Parser: testParser(), Logger: testLogger()})
}

func seedTasks(s *memStore, owner string, titles ...string) {
	for _, title := range titles {
		s.CreateTask(context.Background(), domain.Task{Title: title, Owner: owner})
	}
}

func TestTaskFlow_CompleteMatchesFirstPendingBySubstring(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Finish report", "Email client")

	res, err := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "complete finish report")
	if err != nil {
		t.Fatal(err)
	}

	in, ok := res.Intent.(domain.TaskIntent)
	if !ok || in.Action != domain.TaskComplete || in.Identifier != "finish report" {
		t.Fatalf("intent = %#v", res.Intent)
	}
	if res.Text != compose.TaskCompleted("Finish report") {
		t.Errorf("reply = %q", res.Text)
	}
	if store.tasks[0].Status != domain.TaskCompleted {
		t.Errorf("Finish report status = %s, want completed", store.tasks[0].Status)
	}
	if store.tasks[1].Status != domain.TaskPending {
		t.Errorf("Email client status = %s, want pending", store.tasks[1].Status)
	}
}

func TestTaskFlow_CompleteIgnoresCompletedTasks(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Finish report")
	store.tasks[0].Status = domain.TaskCompleted

	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "complete finish report")
	if res.Text != compose.TaskNotFound("finish report", true) {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_CreateUsesModelAnalysis(t *testing.T) {
	store := newMemStore()
	fc := &fakeCompleter{reply: "```json\n{\"priority\": \"high\", \"estimated_hours\": 2, \"reasoning\": \"Due soon\"}\n```"}

	res, err := newTestTaskFlow(store, fc).Handle(context.Background(), "u1", "add task write report by tomorrow")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(store.tasks))
	}
	task := store.tasks[0]
	if task.Title != "write report" || task.Priority != domain.PriorityHigh {
		t.Errorf("task = %+v", task)
	}
	wantDue := time.Date(2024, 1, 16, 23, 59, 59, 0, time.UTC)
	if task.DueDate == nil || !task.DueDate.Equal(wantDue) {
		t.Errorf("due = %v, want %v", task.DueDate, wantDue)
	}
	for _, want := range []string{"Task Created Successfully", "write report", "Due: 2024-01-16 23:59", "Due soon"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("reply missing %q:\n%s", want, res.Text)
		}
	}
	if !strings.Contains(fc.prompts[0], "Due Date: tomorrow") {
		t.Errorf("analysis prompt = %q", fc.prompts[0])
	}
}

func TestTaskFlow_CreateFallsBackWhenModelFails(t *testing.T) {
	for name, fc := range map[string]*fakeCompleter{
		"error":     {err: errBoom},
		"malformed": {reply: "I think this is important"},
		"bad value": {reply: `{"priority": "urgent"}`},
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			newTestTaskFlow(store, fc).Handle(context.Background(), "u1", "add task water plants")
			if len(store.tasks) != 1 || store.tasks[0].Priority != domain.PriorityMedium {
				t.Fatalf("tasks = %+v", store.tasks)
			}
		})
	}
}

func TestTaskFlow_CreateKeepsTaskWhenDueDateUnparseable(t *testing.T) {
	store := newMemStore()
	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "add task water plants by someday")

	if len(store.tasks) != 1 || store.tasks[0].DueDate != nil {
		t.Fatalf("tasks = %+v", store.tasks)
	}
	if !strings.Contains(res.Text, "couldn't understand the due date 'someday'") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_CreateStoreFailureApologizes(t *testing.T) {
	store := newMemStore()
	store.failCreate = errBoom
	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "add task water plants")
	if res.Text != compose.Apology("create the task", errBoom) {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_UpdatePriority(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Finish report", "Email client")

	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "change the priority of email client to high")
	if store.tasks[1].Priority != domain.PriorityHigh {
		t.Errorf("priority = %s, want high", store.tasks[1].Priority)
	}
	if store.tasks[1].Title != "Email client" {
		t.Errorf("title changed to %q", store.tasks[1].Title)
	}
	if res.Text != compose.TaskPriorityUpdated("Email client", domain.PriorityHigh) {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_UpdateTitle(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Finish report")

	newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "update report to final report")
	if store.tasks[0].Title != "final report" {
		t.Errorf("title = %q", store.tasks[0].Title)
	}
}

func TestTaskFlow_Delete(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Finish report", "Email client")

	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "delete email")
	if len(store.tasks) != 1 || store.tasks[0].Title != "Finish report" {
		t.Errorf("tasks = %+v", store.tasks)
	}
	if res.Text != compose.TaskDeleted("Email client") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_ListIsScopedToOwner(t *testing.T) {
	store := newMemStore()
	seedTasks(store, "u1", "Mine")
	seedTasks(store, "u2", "Theirs")

	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "show my tasks")
	if !strings.Contains(res.Text, "Mine") || strings.Contains(res.Text, "Theirs") {
		t.Errorf("reply = %q", res.Text)
	}
}

func TestTaskFlow_GeneralWithoutModel(t *testing.T) {
	store := newMemStore()
	res, _ := newTestTaskFlow(store, nil).Handle(context.Background(), "u1", "tasks are overwhelming")
	if !strings.HasPrefix(res.Text, "📝 I'm here to help with your tasks!") {
		t.Errorf("reply = %q", res.Text)
	}
}
