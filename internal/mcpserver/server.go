// Package mcpserver exposes the assistant to MCP clients over stdio: chat,
// tasks, events, free time, suggestions and notes.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"flowmind/internal/agent"
	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/schedule"
)

// Chatter answers one user turn synchronously.
type Chatter interface {
	ProcessDirect(ctx context.Context, owner, content string) agent.Reply
}

// CalendarView reads merged remote and local calendar data.
type CalendarView interface {
	Events(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error)
	FreeSlots(ctx context.Context, owner string, minutes int) []domain.FreeSlot
}

type Config struct {
	Version     string
	DefaultUser string // used when a tool call omits user_id
	Chat        Chatter
	Store       domain.Store
	Calendar    CalendarView
	Suggester   agent.Suggester // optional
	Location    *time.Location
	Now         func() time.Time
	Logger      *slog.Logger
}

// Server wraps the MCP server with the assistant's tools.
type Server struct {
	mcp         *server.MCPServer
	defaultUser string
	chat        Chatter
	store       domain.Store
	calendar    CalendarView
	suggester   agent.Suggester
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a server with every tool registered.
func New(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.DefaultUser == "" {
		cfg.DefaultUser = "local"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		defaultUser: cfg.DefaultUser,
		chat:        cfg.Chat,
		store:       cfg.Store,
		calendar:    cfg.Calendar,
		suggester:   cfg.Suggester,
		loc:         cfg.Location,
		now:         cfg.Now,
		logger:      cfg.Logger.With("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"FlowMind",
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	userArg := mcp.WithString("user_id", mcp.Description("User the request acts for (defaults to the configured user)"))

	s.mcp.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a free-text message to the assistant. It is routed to the task, calendar, info or orchestration specialist and the reply is returned."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		userArg,
	), s.chatTool)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List the user's tasks, newest first."),
		mcp.WithString("status", mcp.Description("Optional filter"), mcp.Enum("pending", "completed", "cancelled")),
		userArg,
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a task."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("due_date", mcp.Description("Due date as YYYY-MM-DD or RFC 3339")),
		mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum("low", "medium", "high")),
		userArg,
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task completed by id."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id")),
	), s.completeTask)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List calendar events from the remote calendar and the local store, deduplicated. Defaults to the next 7 days."),
		mcp.WithString("start", mcp.Description("Range start as YYYY-MM-DD or RFC 3339")),
		mcp.WithString("end", mcp.Description("Range end (exclusive) as YYYY-MM-DD or RFC 3339")),
		userArg,
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("find_free_time",
		mcp.WithDescription("Find free slots within business hours over the coming days."),
		mcp.WithNumber("duration", mcp.Description("Minimum slot length in minutes (default 60)")),
		userArg,
	), s.findFreeTime)

	s.mcp.AddTool(mcp.NewTool("list_suggestions",
		mcp.WithDescription("List pending proactive suggestions. Set refresh to generate new ones first."),
		mcp.WithBoolean("refresh", mcp.Description("Generate suggestions before listing")),
		userArg,
	), s.listSuggestions)

	s.mcp.AddTool(mcp.NewTool("update_suggestion",
		mcp.WithDescription("Accept or dismiss a suggestion."),
		mcp.WithString("suggestion_id", mcp.Required(), mcp.Description("Suggestion id")),
		mcp.WithString("status", mcp.Required(), mcp.Enum("pending", "accepted", "dismissed")),
	), s.updateSuggestion)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Save a note."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body")),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		userArg,
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the user's notes, newest first."),
		userArg,
	), s.listNotes)

	s.mcp.AddResource(mcp.NewResource(
		"flowmind://help",
		"FlowMind usage",
		mcp.WithResourceDescription("What the assistant understands"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "flowmind://help", MIMEType: "text/plain", Text: compose.Help},
		}, nil
	})

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) owner(req mcp.CallToolRequest) string {
	if u := strings.TrimSpace(req.GetString("user_id", "")); u != "" {
		return u
	}
	return s.defaultUser
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) chatTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is empty"), nil
	}
	reply := s.chat.ProcessDirect(ctx, s.owner(req), message)
	return mcp.NewToolResultText(reply.Text), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := domain.TaskStatus(req.GetString("status", ""))
	tasks, err := s.store.ListTasks(ctx, s.owner(req), status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks found"), nil
	}
	return jsonResult(tasks)
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task := domain.Task{Owner: s.owner(req), Title: title}
	if p := req.GetString("priority", ""); p != "" {
		priority, ok := domain.ParsePriority(p)
		if !ok {
			return mcp.NewToolResultError("priority must be low, medium or high"), nil
		}
		task.Priority = priority
	}
	if d := req.GetString("due_date", ""); d != "" {
		due, err := s.parseTime(d)
		if err != nil {
			return mcp.NewToolResultError("due_date: " + err.Error()), nil
		}
		task.DueDate = &due
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(created)
}

func (s *Server) completeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.UpdateTaskStatus(ctx, id, domain.TaskCompleted); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("completed: %s", id)), nil
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 7)
	if v := req.GetString("start", ""); v != "" {
		t, err := s.parseTime(v)
		if err != nil {
			return mcp.NewToolResultError("start: " + err.Error()), nil
		}
		start, end = t, t.AddDate(0, 0, 7)
	}
	if v := req.GetString("end", ""); v != "" {
		t, err := s.parseTime(v)
		if err != nil {
			return mcp.NewToolResultError("end: " + err.Error()), nil
		}
		end = t
	}
	if !end.After(start) {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	events, err := s.calendar.Events(ctx, s.owner(req), start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("no events found"), nil
	}
	return jsonResult(events)
}

func (s *Server) findFreeTime(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes := req.GetInt("duration", schedule.DefaultMinDuration)
	if minutes <= 0 {
		return mcp.NewToolResultError("duration must be positive"), nil
	}
	slots := s.calendar.FreeSlots(ctx, s.owner(req), minutes)
	if len(slots) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no free slots of %d minutes found", minutes)), nil
	}
	return jsonResult(slots)
}

func (s *Server) listSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := s.owner(req)
	if req.GetBool("refresh", false) && s.suggester != nil {
		if _, err := s.suggester.Suggest(ctx, owner); err != nil {
			s.logger.Warn("suggestion refresh failed", "owner", owner, "error", err)
		}
	}
	suggestions, err := s.store.ListPendingSuggestions(ctx, owner, s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(suggestions) == 0 {
		return mcp.NewToolResultText("no pending suggestions"), nil
	}
	return jsonResult(suggestions)
}

func (s *Server) updateSuggestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("suggestion_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, ok := domain.ParseSuggestionStatus(raw)
	if !ok {
		return mcp.NewToolResultError("status must be pending, accepted or dismissed"), nil
	}
	if err := s.store.UpdateSuggestionStatus(ctx, id, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("suggestion not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("suggestion %s %s", id, status)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var tags []string
	for _, t := range strings.Split(req.GetString("tags", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	note, err := s.store.CreateNote(ctx, domain.Note{
		Owner:   s.owner(req),
		Title:   req.GetString("title", ""),
		Content: content,
		Tags:    tags,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved note %s", note.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.store.ListNotes(ctx, s.owner(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return jsonResult(notes)
}

func (s *Server) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, s.loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", v)
}
