package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/metrics"
	"flowmind/internal/schedule"
	"flowmind/internal/suggest"
	"flowmind/internal/timeparse"
)

const (
	urgentHorizon        = 24 * time.Hour
	workflowHorizonDays  = 7
	highPriorityOverload = 5
	busyCalendarEvents   = 8
)

type MindFlowConfig struct {
	Store     domain.Store
	Calendar  domain.CalendarProvider
	Completer domain.Completer
	Engine    *suggest.Engine
	Parser    *timeparse.Parser
	Slots     schedule.SlotOptions
	Logger    *slog.Logger
}

// MindFlow is the orchestrator persona: status, summaries, workflow advice
// and proactive suggestions.
type MindFlow struct {
	store     domain.Store
	completer domain.Completer
	engine    *suggest.Engine
	parser    *timeparse.Parser
	slots     schedule.SlotOptions
	sources   eventSources
	logger    *slog.Logger
}

func NewMindFlow(cfg MindFlowConfig) *MindFlow {
	if cfg.Parser == nil {
		cfg.Parser = timeparse.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = suggest.NewEngine(suggest.Config{Completer: cfg.Completer, Now: cfg.Parser.Reference, Logger: cfg.Logger})
	}
	logger := cfg.Logger.With("component", AgentMindFlow)
	return &MindFlow{
		store:     cfg.Store,
		completer: cfg.Completer,
		engine:    cfg.Engine,
		parser:    cfg.Parser,
		slots:     cfg.Slots,
		sources:   eventSources{store: cfg.Store, calendar: cfg.Calendar, logger: logger},
		logger:    logger,
	}
}

// Handle answers the persona's own intents. Routing intents are not handled here.
func (m *MindFlow) Handle(ctx context.Context, owner string, in domain.OrchestrationIntent) string {
	switch in.Action {
	case domain.OrchestrationProactive:
		return m.proactive(ctx, owner)
	case domain.OrchestrationStatus:
		return m.status(ctx, owner)
	case domain.OrchestrationDaily:
		return m.dailySummary(ctx, owner)
	case domain.OrchestrationWorkflow:
		return m.workflow(ctx, owner)
	}
	return compose.RoutingNotice
}

// Gather collects the suggestion inputs for owner.
func (m *MindFlow) Gather(ctx context.Context, owner string) (suggest.Input, error) {
	now := m.parser.Reference()
	in := suggest.Input{Owner: owner}

	var err error
	if in.Tasks, err = m.store.ListTasks(ctx, owner, domain.TaskPending); err != nil {
		return in, fmt.Errorf("list pending tasks: %w", err)
	}
	if in.Urgent, err = m.store.UrgentTasks(ctx, owner, now.Add(urgentHorizon)); err != nil {
		return in, fmt.Errorf("list urgent tasks: %w", err)
	}
	start, end := dayBounds(now)
	if in.Events, err = m.sources.merged(ctx, owner, start, end); err != nil {
		return in, fmt.Errorf("list today's events: %w", err)
	}
	opts := m.slots
	opts.Now = now
	opts.Location = now.Location()
	in.FreeSlots = m.sources.freeSlots(ctx, owner, schedule.DefaultMinDuration, opts)
	return in, nil
}

// Suggest generates and persists suggestions for owner.
func (m *MindFlow) Suggest(ctx context.Context, owner string) ([]domain.Suggestion, error) {
	in, err := m.Gather(ctx, owner)
	if err != nil {
		return nil, err
	}
	suggestions := m.engine.Generate(ctx, in)
	if len(suggestions) == 0 {
		return nil, nil
	}
	if _, err := m.store.StoreSuggestions(ctx, owner, suggestions); err != nil {
		return suggestions, fmt.Errorf("store suggestions: %w", err)
	}
	metrics.SuggestionsGenerated.Add(int64(len(suggestions)))
	return suggestions, nil
}

func (m *MindFlow) proactive(ctx context.Context, owner string) string {
	suggestions, err := m.Suggest(ctx, owner)
	if err != nil {
		m.logger.Error("proactive suggestions failed", "owner", owner, "error", err)
		return fmt.Sprintf("🧠 I'm having trouble analyzing your current situation. Let me know what specific help you need! Error: %v", err)
	}
	return compose.Suggestions(suggestions)
}

func (m *MindFlow) status(ctx context.Context, owner string) string {
	now := m.parser.Reference()
	tasks, err := m.store.ListTasks(ctx, owner, "")
	if err != nil {
		return fmt.Sprintf("📊 I'm having trouble getting your status. Error: %v", err)
	}
	start, end := dayBounds(now)
	events, err := m.sources.merged(ctx, owner, start, end)
	if err != nil {
		return fmt.Sprintf("📊 I'm having trouble getting your status. Error: %v", err)
	}
	pending, completedToday := splitTasks(tasks, now)
	return compose.Status(pending, len(completedToday), len(events))
}

func splitTasks(tasks []domain.Task, now time.Time) (pending, completedToday []domain.Task) {
	for _, t := range tasks {
		switch {
		case t.Status == domain.TaskPending:
			pending = append(pending, t)
		case t.Status == domain.TaskCompleted && sameDay(now, t.UpdatedAt):
			completedToday = append(completedToday, t)
		}
	}
	return pending, completedToday
}

func (m *MindFlow) dailySummary(ctx context.Context, owner string) string {
	now := m.parser.Reference()
	tasks, err := m.store.ListTasks(ctx, owner, "")
	if err != nil {
		return fmt.Sprintf("📈 I'm having trouble generating your daily summary. Error: %v", err)
	}
	start, end := dayBounds(now)
	events, err := m.sources.merged(ctx, owner, start, end)
	if err != nil {
		return fmt.Sprintf("📈 I'm having trouble generating your daily summary. Error: %v", err)
	}
	if m.completer == nil {
		return fmt.Sprintf("📈 I'm having trouble generating your daily summary. Error: %v", domain.ErrProviderUnavailable)
	}

	pending, done := splitTasks(tasks, now)
	taskTitle := func(t domain.Task) string { return t.Title }
	prompt := fmt.Sprintf(`Generate a motivating daily summary for a user based on their productivity data:
- Completed %d tasks today
- Has %d pending tasks
- Had %d calendar events

Completed tasks: %s
Upcoming tasks: %s

Make it encouraging and actionable.`,
		len(done), len(pending), len(events), titles(done, 3, taskTitle), titles(pending, 3, taskTitle))

	reply, err := m.completer.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return fmt.Sprintf("📈 I'm having trouble generating your daily summary. Error: %v", err)
	}
	return "📈 **Daily Summary:**\n\n" + strings.TrimSpace(reply)
}

// WorkflowTips derives workflow advice from task load and calendar density.
func WorkflowTips(tasks []domain.Task, events []domain.Event, now time.Time) []string {
	high, overdue := 0, 0
	for _, t := range tasks {
		if t.Priority == domain.PriorityHigh {
			high++
		}
		if t.Status == domain.TaskPending && t.Overdue(now) {
			overdue++
		}
	}

	var tips []string
	if high > highPriorityOverload {
		tips = append(tips, "Consider breaking down high-priority tasks into smaller, manageable chunks.")
	}
	if overdue > 0 {
		tips = append(tips, fmt.Sprintf("You have %d overdue tasks. Let's reschedule them realistically.", overdue))
	}
	if len(events) > busyCalendarEvents {
		tips = append(tips, "Your calendar looks packed. Consider blocking focus time for deep work.")
	}
	if len(tips) == 0 {
		tips = append(tips, "Your workflow looks well-organized! Keep maintaining this balance.")
	}
	return tips
}

func (m *MindFlow) workflow(ctx context.Context, owner string) string {
	now := m.parser.Reference()
	tasks, err := m.store.ListTasks(ctx, owner, "")
	if err != nil {
		return fmt.Sprintf("⚡ I'm having trouble analyzing your workflow. Error: %v", err)
	}
	start, _ := dayBounds(now)
	events, err := m.sources.merged(ctx, owner, start, start.AddDate(0, 0, workflowHorizonDays))
	if err != nil {
		return fmt.Sprintf("⚡ I'm having trouble analyzing your workflow. Error: %v", err)
	}
	return compose.Workflow(WorkflowTips(tasks, events, now))
}

// DailyReport writes a short narrated-style report of the day. Failures
// degrade to a generic encouragement carrying the error.
func (m *MindFlow) DailyReport(ctx context.Context, owner string) string {
	report, err := m.dailyReport(ctx, owner)
	if err != nil {
		m.logger.Warn("daily report failed", "owner", owner, "error", err)
		return fmt.Sprintf("Here's your daily summary: You're making progress on your goals. Keep up the great work! (Error: %v)", err)
	}
	return report
}

func (m *MindFlow) dailyReport(ctx context.Context, owner string) (string, error) {
	if m.completer == nil {
		return "", domain.ErrProviderUnavailable
	}
	now := m.parser.Reference()
	tasks, err := m.store.ListTasks(ctx, owner, "")
	if err != nil {
		return "", err
	}
	start, end := dayBounds(now)
	events, err := m.sources.merged(ctx, owner, start, end)
	if err != nil {
		return "", err
	}
	suggestions, err := m.store.ListPendingSuggestions(ctx, owner, now)
	if err != nil {
		return "", err
	}

	pending, done := splitTasks(tasks, now)
	var highPending []domain.Task
	for _, t := range head(pending, 3) {
		if t.Priority == domain.PriorityHigh {
			highPending = append(highPending, t)
		}
	}
	taskTitle := func(t domain.Task) string { return t.Title }
	prompt := fmt.Sprintf(`Create a personalized daily productivity report for a user:

Today's Achievements:
- Completed %d tasks
- Attended %d events/meetings

Current Status:
- %d pending tasks
- %d active suggestions

Top completed tasks: %s
Priority pending tasks: %s

Make this report encouraging, specific, and actionable for tomorrow.
Keep it under 200 words.`,
		len(done), len(events), len(pending), len(suggestions),
		titles(done, 3, taskTitle), titles(highPending, 3, taskTitle))

	reply, err := m.completer.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
