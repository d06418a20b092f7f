// Package suggest builds proactive suggestions from a user's tasks, events
// and free time. Deterministic rules run first; model-generated candidates
// are appended after them and never displace them.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"flowmind/internal/domain"
	"flowmind/internal/llmjson"
)

const (
	MaxSuggestions = 5

	urgentConsidered   = 2
	slotsConsidered    = 3
	minWorkSlotMinutes = 60
	maxWorkMinutes     = 120
	busyDayEvents      = 4
	breakMinutes       = 15
	highPriorityLimit  = 5
	modelCandidates    = 2

	contextTasks  = 10
	contextEvents = 5

	DefaultTTL = 24 * time.Hour
)

const systemPrompt = `You are a proactive productivity assistant. Based on the user's current tasks,
calendar events, and free time slots, generate helpful suggestions.

Respond with a JSON array of suggestions and nothing else:
[
  {
    "type": "schedule_task",
    "title": "Schedule high-priority task",
    "description": "You have a free slot at 2 PM to work on your urgent project",
    "action_data": {"task_id": "123", "suggested_time": "2024-01-15T14:00:00"}
  }
]`

// Input is the working set for one user. Urgent must already be ordered by
// due date ascending then priority descending; Events are today's events.
type Input struct {
	Owner     string
	Tasks     []domain.Task
	Urgent    []domain.Task
	Events    []domain.Event
	FreeSlots []domain.FreeSlot
}

type Config struct {
	// Completer is optional; without it only the deterministic rules run.
	Completer domain.Completer
	TTL       time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

type Engine struct {
	completer domain.Completer
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewEngine(cfg Config) *Engine {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		completer: cfg.Completer,
		ttl:       cfg.TTL,
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "suggest"),
	}
}

// Generate runs the rule pipeline and returns at most MaxSuggestions
// suggestions in insertion order. It never fails: a model error only means
// no model-generated candidates.
func (e *Engine) Generate(ctx context.Context, in Input) []domain.Suggestion {
	var out []domain.Suggestion

	out = append(out, e.scheduleUrgent(in)...)

	if len(in.Events) >= busyDayEvents {
		out = append(out, e.newSuggestion(in.Owner, domain.KindBreakReminder,
			"Take a Break",
			fmt.Sprintf("You have many events today. Consider scheduling a %d-minute break between meetings.", breakMinutes),
			map[string]any{"break_duration": breakMinutes}))
	}

	if n := countHighPriority(in.Tasks); n > highPriorityLimit {
		out = append(out, e.newSuggestion(in.Owner, domain.KindPriorityReview,
			"Review Task Priorities",
			fmt.Sprintf("You have %d high-priority tasks. Consider reviewing and adjusting priorities for better focus.", n),
			map[string]any{"high_priority_count": n}))
	}

	if len(in.Tasks) > 0 || len(in.Events) > 0 {
		out = append(out, e.fromModel(ctx, in)...)
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// scheduleUrgent pairs each of the top urgent tasks with the first of the
// leading free slots long enough to work in.
func (e *Engine) scheduleUrgent(in Input) []domain.Suggestion {
	if len(in.Urgent) == 0 || len(in.FreeSlots) == 0 {
		return nil
	}
	var out []domain.Suggestion
	for _, task := range head(in.Urgent, urgentConsidered) {
		for _, slot := range head(in.FreeSlots, slotsConsidered) {
			if slot.DurationMinutes < minWorkSlotMinutes {
				continue
			}
			out = append(out, e.newSuggestion(in.Owner, domain.KindScheduleTask,
				fmt.Sprintf("Schedule '%s'", task.Title),
				fmt.Sprintf("You have a free slot at %s - perfect for working on this urgent task!", slot.Start.Format("Mon Jan 2 15:04")),
				map[string]any{
					"task_id":        task.ID,
					"suggested_time": slot.Start.Format(time.RFC3339),
					"duration":       min(slot.DurationMinutes, maxWorkMinutes),
				}))
			break
		}
	}
	return out
}

type modelCandidate struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ActionData  map[string]any `json:"action_data"`
}

func (e *Engine) fromModel(ctx context.Context, in Input) []domain.Suggestion {
	if e.completer == nil {
		return nil
	}

	prompt, err := buildContext(in)
	if err != nil {
		e.logger.Warn("failed to build suggestion context", "owner", in.Owner, "error", err)
		return nil
	}
	reply, err := e.completer.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}}, systemPrompt)
	if err != nil {
		e.logger.Warn("model suggestions unavailable", "owner", in.Owner, "error", err)
		return nil
	}

	var candidates []modelCandidate
	if err := llmjson.Decode(reply, &candidates); err != nil {
		e.logger.Warn("unparseable model suggestions", "owner", in.Owner, "error", err)
		return nil
	}

	var out []domain.Suggestion
	for _, c := range candidates {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		payload := c.ActionData
		if payload == nil {
			payload = make(map[string]any)
		}
		if c.Type != "" {
			payload["model_type"] = c.Type
		}
		out = append(out, e.newSuggestion(in.Owner, domain.KindModelGenerated, c.Title, c.Description, payload))
		if len(out) == modelCandidates {
			break
		}
	}
	return out
}

func buildContext(in Input) (string, error) {
	type taskCtx struct {
		Title    string `json:"title"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
	}
	type eventCtx struct {
		Title string `json:"title"`
		Start string `json:"start"`
	}
	type slotCtx struct {
		Start    string `json:"start_time"`
		End      string `json:"end_time"`
		Duration int    `json:"duration"`
	}

	var ctx struct {
		Tasks     []taskCtx  `json:"tasks"`
		Events    []eventCtx `json:"events"`
		FreeSlots []slotCtx  `json:"free_slots"`
	}
	for _, t := range head(in.Tasks, contextTasks) {
		ctx.Tasks = append(ctx.Tasks, taskCtx{Title: t.Title, Priority: string(t.Priority), Status: string(t.Status)})
	}
	for _, ev := range head(in.Events, contextEvents) {
		title := ev.Title
		if title == "" {
			title = "Event"
		}
		ctx.Events = append(ctx.Events, eventCtx{Title: title, Start: ev.Start.Format(time.RFC3339)})
	}
	for _, s := range head(in.FreeSlots, slotsConsidered) {
		ctx.FreeSlots = append(ctx.FreeSlots, slotCtx{Start: s.Start.Format(time.RFC3339), End: s.End.Format(time.RFC3339), Duration: s.DurationMinutes})
	}

	b, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "", err
	}
	return "Current context:\n" + string(b), nil
}

func (e *Engine) newSuggestion(owner string, kind domain.SuggestionKind, title, description string, payload map[string]any) domain.Suggestion {
	now := e.now()
	expires := now.Add(e.ttl)
	return domain.Suggestion{
		ID:          uuid.NewString(),
		Owner:       owner,
		Kind:        kind,
		Title:       title,
		Description: description,
		Payload:     payload,
		Status:      domain.SuggestionPending,
		CreatedAt:   now,
		ExpiresAt:   &expires,
	}
}

func countHighPriority(tasks []domain.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Priority == domain.PriorityHigh {
			n++
		}
	}
	return n
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
