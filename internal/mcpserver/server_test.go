package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"flowmind/internal/agent"
	"flowmind/internal/domain"
	"flowmind/internal/store"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeChatter struct{ owner, content string }

func (f *fakeChatter) ProcessDirect(_ context.Context, owner, content string) agent.Reply {
	f.owner, f.content = owner, content
	return agent.Reply{Text: "ok: " + content, Agent: agent.AgentInfoFlow}
}

type fakeCalendar struct {
	start, end time.Time
	minutes    int
	events     []domain.Event
}

func (f *fakeCalendar) Events(_ context.Context, _ string, start, end time.Time) ([]domain.Event, error) {
	f.start, f.end = start, end
	return f.events, nil
}

func (f *fakeCalendar) FreeSlots(_ context.Context, _ string, minutes int) []domain.FreeSlot {
	f.minutes = minutes
	return []domain.FreeSlot{domain.NewFreeSlot(now.Add(time.Hour), now.Add(3*time.Hour))}
}

type fakeSuggester struct {
	st    domain.Store
	calls int
}

func (f *fakeSuggester) Suggest(ctx context.Context, owner string) ([]domain.Suggestion, error) {
	f.calls++
	s := []domain.Suggestion{{Kind: domain.KindBreakReminder, Title: "Block focus time", Description: "2h free"}}
	_, err := f.st.StoreSuggestions(ctx, owner, s)
	return s, err
}

type fixture struct {
	srv   *Server
	store *store.SQLiteStore
	chat  *fakeChatter
	cal   *fakeCalendar
	sugg  *fakeSuggester
}

func testServer(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "mcp.db"), time.UTC, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	f := &fixture{store: st, chat: &fakeChatter{}, cal: &fakeCalendar{}, sugg: &fakeSuggester{st: st}}
	f.srv = New(Config{
		DefaultUser: "ada",
		Chat:        f.chat,
		Store:       st,
		Calendar:    f.cal,
		Suggester:   f.sugg,
		Location:    time.UTC,
		Now:         func() time.Time { return now },
		Logger:      testLogger(),
	})
	return f
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"chat":              srv.chatTool,
		"list_tasks":        srv.listTasks,
		"create_task":       srv.createTask,
		"complete_task":     srv.completeTask,
		"list_events":       srv.listEvents,
		"find_free_time":    srv.findFreeTime,
		"list_suggestions":  srv.listSuggestions,
		"update_suggestion": srv.updateSuggestion,
		"add_note":          srv.addNote,
		"list_notes":        srv.listNotes,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestChat_DefaultsUser(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "chat", map[string]interface{}{"message": "what's next"})
	if r.IsError || resultText(r) != "ok: what's next" {
		t.Fatalf("result = %+v", r)
	}
	if f.chat.owner != "ada" {
		t.Errorf("owner = %q, want default user", f.chat.owner)
	}

	callTool(t, f.srv, "chat", map[string]interface{}{"message": "hi", "user_id": "bob"})
	if f.chat.owner != "bob" {
		t.Errorf("owner = %q", f.chat.owner)
	}

	r = callTool(t, f.srv, "chat", map[string]interface{}{"message": "  "})
	if !r.IsError {
		t.Error("blank message should be an error")
	}
}

func TestCreateAndCompleteTask(t *testing.T) {
	f := testServer(t)

	r := callTool(t, f.srv, "create_task", map[string]interface{}{
		"title": "Write report", "priority": "high", "due_date": "2025-03-12",
	})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	var task domain.Task
	if err := json.Unmarshal([]byte(resultText(r)), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.Owner != "ada" || task.Priority != domain.PriorityHigh || task.DueDate == nil || task.DueDate.Day() != 12 {
		t.Fatalf("task = %+v", task)
	}

	r = callTool(t, f.srv, "complete_task", map[string]interface{}{"task_id": task.ID})
	if r.IsError {
		t.Fatalf("complete: %s", resultText(r))
	}
	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil || got.Status != domain.TaskCompleted {
		t.Fatalf("stored = %+v, %v", got, err)
	}

	r = callTool(t, f.srv, "list_tasks", map[string]interface{}{"status": "pending"})
	if resultText(r) != "no tasks found" {
		t.Errorf("pending list = %q", resultText(r))
	}
	r = callTool(t, f.srv, "list_tasks", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Write report") {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	f := testServer(t)
	cases := []map[string]interface{}{
		{},
		{"title": "x", "priority": "urgent"},
		{"title": "x", "due_date": "next week"},
	}
	for _, args := range cases {
		if r := callTool(t, f.srv, "create_task", args); !r.IsError {
			t.Errorf("args %v: expected error, got %q", args, resultText(r))
		}
	}
}

func TestCompleteTask_NotFound(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "complete_task", map[string]interface{}{"task_id": "missing"})
	if !r.IsError || !strings.Contains(resultText(r), "task not found") {
		t.Fatalf("result = %q", resultText(r))
	}
}

func TestListEvents_DefaultRange(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "list_events", map[string]interface{}{})
	if resultText(r) != "no events found" {
		t.Fatalf("result = %q", resultText(r))
	}
	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !f.cal.start.Equal(wantStart) || !f.cal.end.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Errorf("range = %v .. %v", f.cal.start, f.cal.end)
	}

	f.cal.events = []domain.Event{{ID: "e1", Title: "Standup", Owner: "ada", Start: now, End: now.Add(15 * time.Minute)}}
	r = callTool(t, f.srv, "list_events", map[string]interface{}{"start": "2025-03-11", "end": "2025-03-12"})
	if !strings.Contains(resultText(r), "Standup") {
		t.Errorf("result = %q", resultText(r))
	}
	if f.cal.start.Day() != 11 || f.cal.end.Day() != 12 {
		t.Errorf("range = %v .. %v", f.cal.start, f.cal.end)
	}

	r = callTool(t, f.srv, "list_events", map[string]interface{}{"start": "2025-03-12", "end": "2025-03-11"})
	if !r.IsError {
		t.Error("inverted range should be an error")
	}
}

func TestFindFreeTime(t *testing.T) {
	f := testServer(t)
	r := callTool(t, f.srv, "find_free_time", map[string]interface{}{})
	if r.IsError || f.cal.minutes != 60 {
		t.Fatalf("default duration: minutes=%d result=%q", f.cal.minutes, resultText(r))
	}
	callTool(t, f.srv, "find_free_time", map[string]interface{}{"duration": float64(90)})
	if f.cal.minutes != 90 {
		t.Errorf("minutes = %d", f.cal.minutes)
	}
	if r := callTool(t, f.srv, "find_free_time", map[string]interface{}{"duration": float64(0)}); !r.IsError {
		t.Error("zero duration should be an error")
	}
}

func TestSuggestions_RefreshAndUpdate(t *testing.T) {
	f := testServer(t)

	r := callTool(t, f.srv, "list_suggestions", map[string]interface{}{})
	if resultText(r) != "no pending suggestions" || f.sugg.calls != 0 {
		t.Fatalf("result = %q calls=%d", resultText(r), f.sugg.calls)
	}

	r = callTool(t, f.srv, "list_suggestions", map[string]interface{}{"refresh": true})
	if f.sugg.calls != 1 {
		t.Fatalf("suggester calls = %d", f.sugg.calls)
	}
	var list []domain.Suggestion
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil || len(list) != 1 {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}

	r = callTool(t, f.srv, "update_suggestion", map[string]interface{}{"suggestion_id": list[0].ID, "status": "accepted"})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	r = callTool(t, f.srv, "list_suggestions", map[string]interface{}{})
	if resultText(r) != "no pending suggestions" {
		t.Errorf("after accept = %q", resultText(r))
	}

	r = callTool(t, f.srv, "update_suggestion", map[string]interface{}{"suggestion_id": list[0].ID, "status": "maybe"})
	if !r.IsError {
		t.Error("unknown status should be an error")
	}
	r = callTool(t, f.srv, "update_suggestion", map[string]interface{}{"suggestion_id": "nope", "status": "dismissed"})
	if !r.IsError || !strings.Contains(resultText(r), "not found") {
		t.Errorf("missing id = %q", resultText(r))
	}
}

func TestNotes(t *testing.T) {
	f := testServer(t)
	if r := callTool(t, f.srv, "list_notes", map[string]interface{}{}); resultText(r) != "no notes found" {
		t.Fatalf("empty = %q", resultText(r))
	}

	r := callTool(t, f.srv, "add_note", map[string]interface{}{"content": "buy milk", "tags": "home, ,errands"})
	if r.IsError || !strings.HasPrefix(resultText(r), "saved note ") {
		t.Fatalf("add = %q", resultText(r))
	}

	notes, err := f.store.ListNotes(context.Background(), "ada")
	if err != nil || len(notes) != 1 {
		t.Fatalf("notes = %+v, %v", notes, err)
	}
	if len(notes[0].Tags) != 2 || notes[0].Tags[1] != "errands" {
		t.Errorf("tags = %q", notes[0].Tags)
	}
	if r := callTool(t, f.srv, "list_notes", map[string]interface{}{}); !strings.Contains(resultText(r), "buy milk") {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestMCPServer_Accessor(t *testing.T) {
	f := testServer(t)
	if f.srv.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}
