// Package compose renders handler results as user-facing text.
package compose

import (
	"fmt"
	"strings"
	"time"

	"flowmind/internal/domain"
	"flowmind/internal/schedule"
)

const (
	dayLayout      = "Monday, January 02, 2006"
	shortDayLayout = "Monday, January 02"
	clockLayout    = "03:04 PM"
	dueLayout      = "2006-01-02 15:04"

	maxPendingListed   = 10
	maxCompletedListed = 5
	listNoteThreshold  = 15
	maxPerPriority     = 3
	maxConflicts       = 3
	maxSlotsListed     = 10
	maxStatusTasks     = 3
	// SuggestionsShown is how many suggestions a chat reply lists.
	SuggestionsShown = 3
)

// RoutingNotice is the orchestrator's reply when a message belongs to a specialist.
const RoutingNotice = "🧠 I'm analyzing your request and will route it to the appropriate specialist..."

// Help answers a message no specialist claimed.
const Help = `🧠 I'm not sure which of my specialists should take that. I can help with:

• **Tasks:** "add task finish report by tomorrow", "show my tasks"
• **Calendar:** "schedule team sync tomorrow at 2 PM", "find free time for 30 min on my calendar"
• **Questions:** "explain dependency injection", "how to write a cover letter"
• **Planning:** "what should I do", "status", "optimize my week"`

func PriorityEmoji(p domain.Priority) string {
	switch p {
	case domain.PriorityHigh:
		return "🔴"
	case domain.PriorityMedium:
		return "🟡"
	case domain.PriorityLow:
		return "🟢"
	}
	return "⚪"
}

// Apology is the terminal reply for a failed operation.
func Apology(action string, err error) string {
	return fmt.Sprintf("❌ Sorry, I couldn't %s. Error: %v", action, err)
}

// NotUnderstood asks the user to rephrase a date or time.
func NotUnderstood(phrase string) string {
	return fmt.Sprintf("❌ I couldn't understand the date/time '%s'. Please try a format like 'tomorrow at 2 PM' or 'today at 14:00'.", strings.TrimSpace(phrase))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TaskAnalysis is the model's estimate for a new task.
type TaskAnalysis struct {
	Priority       string  `json:"priority"`
	EstimatedHours float64 `json:"estimated_hours"`
	Reasoning      string  `json:"reasoning"`
}

func TaskCreated(t domain.Task, a TaskAnalysis) string {
	var b strings.Builder
	b.WriteString("✅ **Task Created Successfully!**\n\n")
	fmt.Fprintf(&b, "%s **%s**\n", PriorityEmoji(t.Priority), t.Title)
	fmt.Fprintf(&b, "Priority: %s\n", titleCase(string(t.Priority)))
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", t.DueDate.Format(dueLayout))
	}
	if a.EstimatedHours > 0 {
		fmt.Fprintf(&b, "Estimated time: %g hours\n", a.EstimatedHours)
	}
	if a.Reasoning != "" {
		fmt.Fprintf(&b, "\n💡 *%s*", a.Reasoning)
	}
	return b.String()
}

func TaskCompleted(title string) string {
	return fmt.Sprintf("🎉 **Great job!** '%s' has been marked as complete!\n\nKeep up the excellent work! 💪", title)
}

func TaskDeleted(title string) string {
	return fmt.Sprintf("🗑️ **Task Deleted:** '%s' has been removed from your list.", title)
}

func TaskNotFound(identifier string, pendingOnly bool) string {
	if pendingOnly {
		return fmt.Sprintf("❌ I couldn't find a pending task matching '%s'. Please check the task name.", identifier)
	}
	return fmt.Sprintf("❌ I couldn't find a task matching '%s'. Please check the task name.", identifier)
}

func TaskPriorityUpdated(title string, p domain.Priority) string {
	return fmt.Sprintf("📝 **Task Updated:** '%s' is now %s %s priority.", title, PriorityEmoji(p), p)
}

func TaskRenamed(oldTitle, newTitle string) string {
	return fmt.Sprintf("📝 **Task Updated:** '%s' → '%s'.", oldTitle, newTitle)
}

// dueLabel describes how close a due date is in whole calendar days.
func dueLabel(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	// Compare calendar dates in UTC so a 23h or 25h DST day still counts as one.
	d := due.In(now.Location())
	dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(dueDay.Sub(today) / (24 * time.Hour))
	switch {
	case days < 0:
		return " ⚠️ (Overdue)"
	case days == 0:
		return " 📅 (Due today)"
	case days <= 3:
		return fmt.Sprintf(" 📅 (Due in %d days)", days)
	}
	return ""
}

// TaskList renders tasks grouped by status. filter is empty for all statuses.
func TaskList(tasks []domain.Task, filter domain.TaskStatus, now time.Time) string {
	if len(tasks) == 0 {
		if filter != "" {
			return fmt.Sprintf("📝 You have no %s tasks. Great job staying organized!", filter)
		}
		return "📝 You have no tasks yet. Ready to add some goals to achieve?"
	}

	var pending, completed []domain.Task
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskPending:
			pending = append(pending, t)
		case domain.TaskCompleted:
			completed = append(completed, t)
		}
	}

	var b strings.Builder
	b.WriteString("📝 **Your Tasks:**\n\n")
	if len(pending) > 0 && (filter == "" || filter == domain.TaskPending) {
		b.WriteString("**📋 Pending Tasks:**\n")
		for _, t := range head(pending, maxPendingListed) {
			fmt.Fprintf(&b, "%s %s%s\n", PriorityEmoji(t.Priority), t.Title, dueLabel(t.DueDate, now))
		}
		b.WriteString("\n")
	}
	if len(completed) > 0 && (filter == "" || filter == domain.TaskCompleted) {
		fmt.Fprintf(&b, "**✅ Completed Tasks (%d):**\n", len(completed))
		for _, t := range head(completed, maxCompletedListed) {
			fmt.Fprintf(&b, "✅ %s\n", t.Title)
		}
	}
	if len(tasks) > listNoteThreshold {
		fmt.Fprintf(&b, "\n*Showing recent tasks. You have %d total tasks.*", len(tasks))
	}
	return b.String()
}

// Prioritized groups pending tasks by priority.
func Prioritized(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return "📝 You have no pending tasks to prioritize. Great job staying on top of things!"
	}
	groups := map[domain.Priority][]domain.Task{}
	for _, t := range tasks {
		groups[t.Priority] = append(groups[t.Priority], t)
	}

	var b strings.Builder
	b.WriteString("🎯 **Task Prioritization Analysis:**\n\n")
	if hi := groups[domain.PriorityHigh]; len(hi) > 0 {
		fmt.Fprintf(&b, "**🔴 High Priority (%d tasks):**\nFocus on these first!\n", len(hi))
		for _, t := range head(hi, maxPerPriority) {
			fmt.Fprintf(&b, "• %s\n", t.Title)
		}
		b.WriteString("\n")
	}
	if med := groups[domain.PriorityMedium]; len(med) > 0 {
		fmt.Fprintf(&b, "**🟡 Medium Priority (%d tasks):**\nSchedule these after high-priority items.\n", len(med))
		for _, t := range head(med, maxPerPriority) {
			fmt.Fprintf(&b, "• %s\n", t.Title)
		}
		b.WriteString("\n")
	}
	if lo := groups[domain.PriorityLow]; len(lo) > 0 {
		fmt.Fprintf(&b, "**🟢 Low Priority (%d tasks):**\nHandle these when you have extra time.\n", len(lo))
	}
	if len(tasks) > 5 {
		b.WriteString("\n💡 **Suggestion:** Consider breaking down large tasks into smaller, manageable chunks for better progress tracking.")
	}
	return b.String()
}

// EventCreated confirms a new event or meeting. mirrored reports whether the
// remote calendar accepted a copy.
func EventCreated(e domain.Event, meeting, mirrored bool) string {
	var b strings.Builder
	if meeting {
		b.WriteString("🤝 **Meeting Scheduled!**\n\n")
	} else {
		b.WriteString("📅 **Event Created Successfully!**\n\n")
	}
	fmt.Fprintf(&b, "**%s**\n", e.Title)
	fmt.Fprintf(&b, "📅 %s\n", e.Start.Format(dayLayout))
	fmt.Fprintf(&b, "🕐 %s - %s\n", e.Start.Format(clockLayout), e.End.Format(clockLayout))
	switch {
	case mirrored && meeting:
		b.WriteString("\n✅ Added to your remote calendar with invitations")
	case mirrored:
		b.WriteString("\n✅ Added to your remote calendar")
	default:
		b.WriteString("\n📝 Saved locally (remote calendar sync unavailable)")
	}
	return b.String()
}

// ScheduleHeading names the window a list_events reply covers.
func ScheduleHeading(f domain.TimeFilter) string {
	switch f {
	case domain.FilterTomorrow:
		return "Tomorrow's Schedule"
	case domain.FilterWeek:
		return "This Week's Schedule"
	case domain.FilterMonth:
		return "This Month's Schedule"
	}
	return "Today's Schedule"
}

// EventList renders merged events with a date header per calendar day,
// capped at schedule.MaxListedEvents.
func EventList(heading string, events []domain.Event, loc *time.Location) string {
	if len(events) == 0 {
		return fmt.Sprintf("📅 **%s:**\n\nNo events scheduled. You have a free day! 🎉", heading)
	}
	shown, total := schedule.Truncate(events)

	var b strings.Builder
	fmt.Fprintf(&b, "📅 **%s:**\n\n", heading)
	for _, g := range schedule.GroupByDate(shown, loc) {
		fmt.Fprintf(&b, "\n**%s:**\n", g.Date.Format(shortDayLayout))
		for _, e := range g.Events {
			span := e.Start.In(loc).Format(clockLayout)
			if !e.End.IsZero() {
				span += " - " + e.End.In(loc).Format(clockLayout)
			}
			title := e.Title
			if title == "" {
				title = "Untitled Event"
			}
			fmt.Fprintf(&b, "🕐 %s - %s\n", span, title)
			if e.Location != "" {
				fmt.Fprintf(&b, "   📍 %s\n", e.Location)
			}
		}
	}
	if total > len(shown) {
		fmt.Fprintf(&b, "\n*Showing first %d events. You have %d total events.*", len(shown), total)
	}
	return b.String()
}

func Availability(at time.Time, conflicts []domain.Event) string {
	when := fmt.Sprintf("📅 %s\n🕐 %s", at.Format(dayLayout), at.Format(clockLayout))
	if len(conflicts) == 0 {
		return fmt.Sprintf("✅ **You're free!**\n\n%s\n\nNo conflicts found in your calendar.", when)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "❌ **You have conflicts:**\n\n%s\n\n**Conflicting events:**\n", when)
	for _, e := range head(conflicts, maxConflicts) {
		title := e.Title
		if title == "" {
			title = "Event"
		}
		fmt.Fprintf(&b, "• %s at %s\n", title, e.Start.In(at.Location()).Format(clockLayout))
	}
	return b.String()
}

// FreeSlots lists slots of the requested duration starting at each slot's start.
func FreeSlots(slots []domain.FreeSlot, durationMinutes int, loc *time.Location) string {
	if len(slots) == 0 {
		return fmt.Sprintf("📅 I couldn't find any free slots of %d minutes in the next few days. Your calendar is quite busy!", durationMinutes)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🕐 **Available Time Slots (%d minutes):**\n\n", durationMinutes)
	var current time.Time
	for _, s := range head(slots, maxSlotsListed) {
		start := s.Start.In(loc)
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if !day.Equal(current) {
			current = day
			fmt.Fprintf(&b, "\n**%s:**\n", day.Format(shortDayLayout))
		}
		end := start.Add(time.Duration(durationMinutes) * time.Minute)
		fmt.Fprintf(&b, "✅ %s - %s\n", start.Format(clockLayout), end.Format(clockLayout))
	}
	b.WriteString("\nWould you like me to schedule something in one of these slots?")
	return b.String()
}

// Suggestions lists the leading suggestions of a proactive reply.
func Suggestions(s []domain.Suggestion) string {
	if len(s) == 0 {
		return "🧠 You're doing great! I don't see any immediate optimizations needed. Keep up the good work!"
	}
	var b strings.Builder
	b.WriteString("🧠 **MindFlow Insights:**\n\n")
	for i, sg := range head(s, SuggestionsShown) {
		fmt.Fprintf(&b, "%d. **%s**\n   %s\n\n", i+1, sg.Title, sg.Description)
	}
	b.WriteString("Would you like me to help you implement any of these suggestions?")
	return b.String()
}

func Status(pending []domain.Task, completedToday, eventsToday int) string {
	var b strings.Builder
	b.WriteString("📊 **Your Current Status:**\n\n")
	fmt.Fprintf(&b, "• **Pending Tasks:** %d\n", len(pending))
	fmt.Fprintf(&b, "• **Completed Today:** %d\n", completedToday)
	fmt.Fprintf(&b, "• **Today's Events:** %d\n\n", eventsToday)
	if len(pending) > 0 {
		b.WriteString("**Next Priority Tasks:**\n")
		for _, t := range head(pending, maxStatusTasks) {
			fmt.Fprintf(&b, "%s %s\n", PriorityEmoji(t.Priority), t.Title)
		}
	}
	return b.String()
}

func Workflow(tips []string) string {
	var b strings.Builder
	b.WriteString("⚡ **Workflow Optimization Suggestions:**\n\n")
	for i, tip := range tips {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tip)
	}
	return b.String()
}

// Labeled prefixes a model reply with a specialist header.
func Labeled(emoji, label, body string) string {
	return fmt.Sprintf("%s **%s:**\n\n%s", emoji, label, strings.TrimSpace(body))
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
