package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/intent"
	"flowmind/internal/llmjson"
	"flowmind/internal/timeparse"
)

const taskAnalysisPrompt = `You are a productivity expert. Analyze the given task and provide:
1. Suggested priority level (low, medium, high)
2. Estimated time to complete (in hours)
3. Brief reasoning for the priority level

Respond in JSON format only:
{"priority": "medium", "estimated_hours": 2, "reasoning": "explanation here"}`

var fallbackAnalysis = compose.TaskAnalysis{
	Priority:       string(domain.PriorityMedium),
	EstimatedHours: 1,
	Reasoning:      "Unable to analyze automatically",
}

type TaskFlowConfig struct {
	Store      domain.Store
	Completer  domain.Completer
	Classifier *intent.Classifier
	Parser     *timeparse.Parser
	Logger     *slog.Logger
}

// TaskFlow manages the user's tasks.
type TaskFlow struct {
	store      domain.Store
	completer  domain.Completer
	classifier *intent.Classifier
	parser     *timeparse.Parser
	logger     *slog.Logger
}

func NewTaskFlow(cfg TaskFlowConfig) *TaskFlow {
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.Parser == nil {
		cfg.Parser = timeparse.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TaskFlow{
		store:      cfg.Store,
		completer:  cfg.Completer,
		classifier: cfg.Classifier,
		parser:     cfg.Parser,
		logger:     cfg.Logger.With("component", AgentTaskFlow),
	}
}

func (f *TaskFlow) Name() string                { return AgentTaskFlow }
func (f *TaskFlow) Domain() domain.IntentDomain { return domain.DomainTask }

func (f *TaskFlow) Handle(ctx context.Context, owner, text string) (Result, error) {
	in, ok := f.classifier.Classify(text, domain.DomainTask).(domain.TaskIntent)
	if !ok {
		return Result{}, fmt.Errorf("task classifier returned unexpected intent: %w", domain.ErrInvalidInput)
	}

	var reply string
	switch in.Action {
	case domain.TaskCreate:
		reply = f.create(ctx, owner, in)
	case domain.TaskComplete:
		reply = f.complete(ctx, owner, in)
	case domain.TaskDelete:
		reply = f.remove(ctx, owner, in)
	case domain.TaskList:
		reply = f.list(ctx, owner, in)
	case domain.TaskUpdate:
		reply = f.update(ctx, owner, in)
	case domain.TaskPrioritize:
		reply = f.prioritize(ctx, owner)
	default:
		reply = f.general(ctx, owner, in.Query)
	}
	return Result{Text: reply, Intent: in}, nil
}

func (f *TaskFlow) create(ctx context.Context, owner string, in domain.TaskIntent) string {
	task := domain.Task{
		Title:  in.Title,
		Owner:  owner,
		Status: domain.TaskPending,
	}

	var note string
	if in.DueDate != "" {
		if due, ok := f.parser.ParseDueDate(in.DueDate); ok {
			task.DueDate = &due
		} else {
			note = fmt.Sprintf("\n\n⚠️ I couldn't understand the due date '%s', so the task has none.", in.DueDate)
		}
	}

	analysis := f.analyze(ctx, in.Title, in.DueDate)
	task.Priority, _ = domain.ParsePriority(analysis.Priority)

	created, err := f.store.CreateTask(ctx, task)
	if err != nil {
		f.logger.Error("create task failed", "owner", owner, "error", err)
		return compose.Apology("create the task", err)
	}
	return compose.TaskCreated(created, analysis) + note
}

// analyze asks the model for a priority estimate. Any failure or malformed
// reply yields the medium-priority fallback.
func (f *TaskFlow) analyze(ctx context.Context, title, due string) compose.TaskAnalysis {
	if f.completer == nil {
		return fallbackAnalysis
	}
	info := fmt.Sprintf("Title: %s\nDescription: ", title)
	if due != "" {
		info += "\nDue Date: " + due
	}
	reply, err := f.completer.Complete(ctx, []domain.Message{{Role: "user", Content: info}}, taskAnalysisPrompt)
	if err != nil {
		f.logger.Warn("task analysis unavailable", "error", err)
		return fallbackAnalysis
	}
	var a compose.TaskAnalysis
	if err := llmjson.Decode(reply, &a); err != nil {
		f.logger.Warn("unparseable task analysis", "error", err)
		return fallbackAnalysis
	}
	if _, ok := domain.ParsePriority(a.Priority); !ok {
		a.Priority = string(domain.PriorityMedium)
	}
	return a
}

func (f *TaskFlow) complete(ctx context.Context, owner string, in domain.TaskIntent) string {
	tasks, err := f.store.ListTasks(ctx, owner, domain.TaskPending)
	if err != nil {
		return compose.Apology("complete the task", err)
	}
	task, ok := findTask(tasks, in.Identifier)
	if !ok {
		return compose.TaskNotFound(in.Identifier, true)
	}
	if err := f.store.UpdateTaskStatus(ctx, task.ID, domain.TaskCompleted); err != nil {
		return compose.Apology("complete the task", err)
	}
	return compose.TaskCompleted(task.Title)
}

func (f *TaskFlow) remove(ctx context.Context, owner string, in domain.TaskIntent) string {
	tasks, err := f.store.ListTasks(ctx, owner, "")
	if err != nil {
		return compose.Apology("delete the task", err)
	}
	task, ok := findTask(tasks, in.Identifier)
	if !ok {
		return compose.TaskNotFound(in.Identifier, false)
	}
	if err := f.store.DeleteTask(ctx, task.ID); err != nil {
		return compose.Apology("delete the task", err)
	}
	return compose.TaskDeleted(task.Title)
}

func (f *TaskFlow) list(ctx context.Context, owner string, in domain.TaskIntent) string {
	tasks, err := f.store.ListTasks(ctx, owner, in.StatusFilter)
	if err != nil {
		return compose.Apology("retrieve your tasks", err)
	}
	return compose.TaskList(tasks, in.StatusFilter, f.parser.Reference())
}

// update applies a priority when the new value names one, otherwise renames the task.
func (f *TaskFlow) update(ctx context.Context, owner string, in domain.TaskIntent) string {
	tasks, err := f.store.ListTasks(ctx, owner, "")
	if err != nil {
		return compose.Apology("update the task", err)
	}

	priority, isPriority := domain.ParsePriority(in.NewValue)
	identifier := in.Identifier
	if isPriority {
		for _, prefix := range []string{"the priority of ", "priority of "} {
			identifier = strings.TrimPrefix(identifier, prefix)
		}
	}
	task, ok := findTask(tasks, identifier)
	if !ok {
		return compose.TaskNotFound(in.Identifier, false)
	}

	if isPriority {
		if err := f.store.UpdateTaskPriority(ctx, task.ID, priority); err != nil {
			return compose.Apology("update the task", err)
		}
		return compose.TaskPriorityUpdated(task.Title, priority)
	}
	if err := f.store.UpdateTaskTitle(ctx, task.ID, in.NewValue); err != nil {
		return compose.Apology("update the task", err)
	}
	return compose.TaskRenamed(task.Title, in.NewValue)
}

func (f *TaskFlow) prioritize(ctx context.Context, owner string) string {
	tasks, err := f.store.ListTasks(ctx, owner, domain.TaskPending)
	if err != nil {
		return compose.Apology("analyze your task priorities", err)
	}
	return compose.Prioritized(tasks)
}

func (f *TaskFlow) general(ctx context.Context, owner, query string) string {
	const help = "📝 I'm here to help with your tasks! You can ask me to add, complete, delete, or list your tasks."

	tasks, err := f.store.ListTasks(ctx, owner, "")
	if err != nil {
		return fmt.Sprintf("%s Error: %v", help, err)
	}
	if f.completer == nil {
		return help
	}

	pending, completed := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskPending:
			pending++
		case domain.TaskCompleted:
			completed++
		}
	}
	prompt := fmt.Sprintf(`User query: %s

User has %d total tasks:
- %d pending
- %d completed

Recent tasks: %s

Provide a helpful response about task management.`,
		query, len(tasks), pending, completed,
		titles(tasks, 5, func(t domain.Task) string { return t.Title }))

	reply, err := f.completer.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return fmt.Sprintf("%s Error: %v", help, err)
	}
	return "📝 **TaskFlow:** " + strings.TrimSpace(reply)
}
