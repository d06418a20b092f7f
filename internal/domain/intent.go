package domain

import (
	"strconv"
)

// IntentDomain selects which rule table classifies a message.
type IntentDomain string

const (
	DomainTask          IntentDomain = "task"
	DomainCalendar      IntentDomain = "calendar"
	DomainInfo          IntentDomain = "info"
	DomainOrchestration IntentDomain = "orchestration"
)

// Intent is the discrete action plus slots derived from one user message.
// Each domain has its own concrete variant carrying typed slots.
type Intent interface {
	Domain() IntentDomain
	Tag() string
	// Slots renders the extracted parameters as trimmed raw strings; absent slots are omitted.
	Slots() map[string]string
}

type TaskAction string

const (
	TaskCreate     TaskAction = "create"
	TaskComplete   TaskAction = "complete"
	TaskDelete     TaskAction = "delete"
	TaskList       TaskAction = "list"
	TaskUpdate     TaskAction = "update"
	TaskPrioritize TaskAction = "prioritize"
	TaskGeneral    TaskAction = "general"
)

type TaskIntent struct {
	Action       TaskAction
	Title        string
	DueDate      string
	Identifier   string
	NewValue     string
	StatusFilter TaskStatus
	Query        string
}

func (i TaskIntent) Domain() IntentDomain { return DomainTask }
func (i TaskIntent) Tag() string          { return string(i.Action) }

func (i TaskIntent) Slots() map[string]string {
	s := make(map[string]string)
	putSlot(s, "title", i.Title)
	putSlot(s, "due_date_str", i.DueDate)
	putSlot(s, "task_identifier", i.Identifier)
	putSlot(s, "new_value", i.NewValue)
	putSlot(s, "status", string(i.StatusFilter))
	putSlot(s, "query", i.Query)
	return s
}

type CalendarAction string

const (
	CalendarCreateEvent       CalendarAction = "create_event"
	CalendarListEvents        CalendarAction = "list_events"
	CalendarCheckAvailability CalendarAction = "check_availability"
	CalendarFindFreeTime      CalendarAction = "find_free_time"
	CalendarScheduleMeeting   CalendarAction = "schedule_meeting"
	CalendarGeneral           CalendarAction = "general"
)

// TimeFilter is the window a list_events request covers.
type TimeFilter string

const (
	FilterToday    TimeFilter = "today"
	FilterTomorrow TimeFilter = "tomorrow"
	FilterWeek     TimeFilter = "week"
	FilterMonth    TimeFilter = "month"
)

type CalendarIntent struct {
	Action          CalendarAction
	Title           string
	DateStr         string
	TimeStr         string
	TimeFilter      TimeFilter
	DurationMinutes int
	Attendees       string
	Query           string
}

func (i CalendarIntent) Domain() IntentDomain { return DomainCalendar }
func (i CalendarIntent) Tag() string          { return string(i.Action) }

func (i CalendarIntent) Slots() map[string]string {
	s := make(map[string]string)
	putSlot(s, "title", i.Title)
	putSlot(s, "date_str", i.DateStr)
	putSlot(s, "time_str", i.TimeStr)
	putSlot(s, "time_filter", string(i.TimeFilter))
	if i.DurationMinutes > 0 {
		s["duration"] = strconv.Itoa(i.DurationMinutes)
	}
	putSlot(s, "attendees", i.Attendees)
	putSlot(s, "query", i.Query)
	return s
}

type InfoAction string

const (
	InfoExplanation   InfoAction = "explanation"
	InfoSummarization InfoAction = "summarization"
	InfoDefinition    InfoAction = "definition"
	InfoHowTo         InfoAction = "how_to"
	InfoComparison    InfoAction = "comparison"
	InfoAnalysis      InfoAction = "analysis"
	InfoGeneral       InfoAction = "general"
)

type InfoIntent struct {
	Action InfoAction
	Query  string
}

func (i InfoIntent) Domain() IntentDomain { return DomainInfo }
func (i InfoIntent) Tag() string          { return string(i.Action) }

func (i InfoIntent) Slots() map[string]string {
	s := make(map[string]string)
	putSlot(s, "query", i.Query)
	return s
}

type OrchestrationAction string

const (
	OrchestrationProactive OrchestrationAction = "proactive_request"
	OrchestrationStatus    OrchestrationAction = "status_check"
	OrchestrationDaily     OrchestrationAction = "daily_summary"
	OrchestrationWorkflow  OrchestrationAction = "workflow_optimization"
	OrchestrationRoute     OrchestrationAction = "orchestration"
)

type OrchestrationIntent struct {
	Action OrchestrationAction
}

func (i OrchestrationIntent) Domain() IntentDomain { return DomainOrchestration }
func (i OrchestrationIntent) Tag() string          { return string(i.Action) }
func (i OrchestrationIntent) Slots() map[string]string {
	return map[string]string{}
}

func putSlot(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
