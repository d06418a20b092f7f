package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
)

// ChatCommand represents a parsed chat command.
type ChatCommand struct {
	Name string   // command name without "/"
	Args []string // arguments after the command
	Raw  string   // original full text
}

// CommandResult holds the response for a handled command.
type CommandResult struct {
	Response string
	Handled  bool // false: forward the text to the orchestrator
}

const defaultHistoryLimit = 10

// startTime records when the process started for /uptime.
var startTime = time.Now()

// version is set by the build system.
var version = "dev"

func SetVersion(v string) { version = v }

// ParseCommand returns nil when text is not a slash command.
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	return &ChatCommand{
		Name: strings.ToLower(strings.TrimPrefix(parts[0], "/")),
		Args: parts[1:],
		Raw:  text,
	}
}

// Commands answers slash commands straight from the store, bypassing
// classification.
type Commands struct {
	store domain.Store
	now   func() time.Time
}

func NewCommands(store domain.Store, now func() time.Time) *Commands {
	if now == nil {
		now = time.Now
	}
	return &Commands{store: store, now: now}
}

// Handle runs cmd for owner. Unknown commands are not handled.
func (c *Commands) Handle(ctx context.Context, owner string, cmd *ChatCommand) CommandResult {
	handled := func(s string) CommandResult { return CommandResult{Response: s, Handled: true} }

	switch cmd.Name {
	case "help", "start":
		return handled(helpText())
	case "tasks":
		tasks, err := c.store.ListTasks(ctx, owner, "")
		if err != nil {
			return handled(compose.Apology("list your tasks", err))
		}
		return handled(compose.TaskList(tasks, "", c.now()))
	case "today":
		now := c.now()
		start, end := dayBounds(now)
		events, err := c.store.ListEvents(ctx, owner, start, end)
		if err != nil {
			return handled(compose.Apology("list your events", err))
		}
		return handled(compose.EventList(compose.ScheduleHeading(domain.FilterToday), events, now.Location()))
	case "suggestions":
		s, err := c.store.ListPendingSuggestions(ctx, owner, c.now())
		if err != nil {
			return handled(compose.Apology("load your suggestions", err))
		}
		return handled(suggestionIndex(s))
	case "accept", "dismiss":
		if len(cmd.Args) == 0 {
			return handled(fmt.Sprintf("Usage: /%s <suggestion-id>", cmd.Name))
		}
		status := domain.SuggestionAccepted
		if cmd.Name == "dismiss" {
			status = domain.SuggestionDismissed
		}
		if err := c.store.UpdateSuggestionStatus(ctx, cmd.Args[0], status); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return handled(fmt.Sprintf("❌ No suggestion with id %s.", cmd.Args[0]))
			}
			return handled(compose.Apology("update the suggestion", err))
		}
		return handled(fmt.Sprintf("✅ Suggestion %s %s.", cmd.Args[0], status))
	case "history":
		limit := defaultHistoryLimit
		if len(cmd.Args) > 0 {
			if n, err := strconv.Atoi(cmd.Args[0]); err == nil && n > 0 {
				limit = n
			}
		}
		msgs, err := c.store.ListMessages(ctx, owner, limit)
		if err != nil {
			return handled(compose.Apology("load the conversation", err))
		}
		return handled(historyText(msgs))
	case "uptime":
		return handled(fmt.Sprintf("Uptime: %s", time.Since(startTime).Round(time.Second)))
	case "version":
		return handled(fmt.Sprintf("flowmind %s (%s/%s, Go %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version()))
	}
	return CommandResult{}
}

func helpText() string {
	return `**flowmind commands**

/help: this message
/tasks: all your tasks
/today: today's local events
/suggestions: pending suggestions with their ids
/accept <id>, /dismiss <id>: act on a suggestion
/history [n]: the last n conversation messages
/uptime, /version

Anything else is handled as a normal message.`
}

func suggestionIndex(s []domain.Suggestion) string {
	if len(s) == 0 {
		return "💡 No pending suggestions."
	}
	var b strings.Builder
	b.WriteString("💡 **Pending suggestions:**\n\n")
	for _, sg := range s {
		fmt.Fprintf(&b, "• `%s` **%s**: %s\n", sg.ID, sg.Title, sg.Description)
	}
	return b.String()
}

func historyText(msgs []domain.ConversationMessage) string {
	if len(msgs) == 0 {
		return "No conversation yet."
	}
	var b strings.Builder
	for _, m := range msgs {
		who := "you"
		if m.Sender == domain.SenderAgent {
			who = m.Agent
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("01-02 15:04"), who, m.Content)
	}
	return b.String()
}
