package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flowmind/internal/compose"
	"flowmind/internal/domain"
	"flowmind/internal/intent"
	"flowmind/internal/schedule"
	"flowmind/internal/timeparse"
)

const (
	defaultEventDuration = time.Hour
	availabilityWindow   = 30 * time.Minute
)

type CalendarFlowConfig struct {
	Store      domain.Store
	Calendar   domain.CalendarProvider // optional remote mirror
	Completer  domain.Completer
	Classifier *intent.Classifier
	Parser     *timeparse.Parser
	// Slots carries business hours and horizon for locally computed free time.
	Slots  schedule.SlotOptions
	Logger *slog.Logger
}

// CalendarFlow manages events in the local store and the remote calendar.
type CalendarFlow struct {
	store      domain.Store
	calendar   domain.CalendarProvider
	completer  domain.Completer
	classifier *intent.Classifier
	parser     *timeparse.Parser
	slots      schedule.SlotOptions
	sources    eventSources
	logger     *slog.Logger
}

func NewCalendarFlow(cfg CalendarFlowConfig) *CalendarFlow {
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewClassifier()
	}
	if cfg.Parser == nil {
		cfg.Parser = timeparse.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", AgentCalendarFlow)
	return &CalendarFlow{
		store:      cfg.Store,
		calendar:   cfg.Calendar,
		completer:  cfg.Completer,
		classifier: cfg.Classifier,
		parser:     cfg.Parser,
		slots:      cfg.Slots,
		sources:    eventSources{store: cfg.Store, calendar: cfg.Calendar, logger: logger},
		logger:     logger,
	}
}

func (f *CalendarFlow) Name() string                { return AgentCalendarFlow }
func (f *CalendarFlow) Domain() domain.IntentDomain { return domain.DomainCalendar }

func (f *CalendarFlow) Handle(ctx context.Context, owner, text string) (Result, error) {
	in, ok := f.classifier.Classify(text, domain.DomainCalendar).(domain.CalendarIntent)
	if !ok {
		return Result{}, fmt.Errorf("calendar classifier returned unexpected intent: %w", domain.ErrInvalidInput)
	}

	var reply string
	switch in.Action {
	case domain.CalendarCreateEvent:
		reply = f.createEvent(ctx, owner, in.Title, in.DateStr, in.TimeStr, "")
	case domain.CalendarScheduleMeeting:
		reply = f.createEvent(ctx, owner, "Meeting with "+in.Attendees, in.DateStr, in.TimeStr, in.Attendees)
	case domain.CalendarListEvents:
		reply = f.listEvents(ctx, owner, in.TimeFilter)
	case domain.CalendarCheckAvailability:
		reply = f.checkAvailability(ctx, owner, in.TimeStr)
	case domain.CalendarFindFreeTime:
		reply = f.findFreeTime(ctx, owner, in.DurationMinutes)
	default:
		reply = f.general(ctx, owner, in.Query)
	}
	return Result{Text: reply, Intent: in}, nil
}

// createEvent stores a one-hour event. Attendees, when set, mark it as a meeting.
// An unparseable date aborts before anything is written.
func (f *CalendarFlow) createEvent(ctx context.Context, owner, title, dateStr, timeStr, attendees string) string {
	start, ok := f.parser.Parse(dateStr, timeStr)
	if !ok {
		return compose.NotUnderstood(dateStr + " " + timeStr)
	}
	if !timeparse.Recognized(dateStr) {
		f.logger.Debug("date phrase not recognized, using today", "phrase", dateStr)
	}

	meeting := attendees != ""
	event := domain.Event{
		Title: title,
		Start: start,
		End:   start.Add(defaultEventDuration),
		Owner: owner,
	}
	if meeting {
		event.Description = "Attendees: " + attendees
	}

	if f.calendar != nil {
		externalID, err := f.calendar.CreateEvent(ctx, owner, event)
		if err != nil {
			f.logger.Warn("remote calendar create failed, saving locally", "owner", owner, "error", err)
		} else {
			event.ExternalID = externalID
		}
	}

	created, err := f.store.CreateEvent(ctx, event)
	if err != nil {
		f.logger.Error("create event failed", "owner", owner, "error", err)
		if meeting {
			return compose.Apology("schedule the meeting", err)
		}
		return compose.Apology("create the event", err)
	}
	return compose.EventCreated(created, meeting, created.ExternalID != "")
}

// window returns the range a list_events filter covers.
func window(f domain.TimeFilter, now time.Time) (time.Time, time.Time) {
	today, tomorrow := dayBounds(now)
	switch f {
	case domain.FilterTomorrow:
		return tomorrow, tomorrow.AddDate(0, 0, 1)
	case domain.FilterWeek:
		return today, now.AddDate(0, 0, 7)
	case domain.FilterMonth:
		return today, now.AddDate(0, 0, 30)
	}
	return today, tomorrow
}

func (f *CalendarFlow) listEvents(ctx context.Context, owner string, filter domain.TimeFilter) string {
	now := f.parser.Reference()
	start, end := window(filter, now)
	events, err := f.sources.merged(ctx, owner, start, end)
	if err != nil {
		return compose.Apology("retrieve your calendar events", err)
	}
	return compose.EventList(compose.ScheduleHeading(filter), events, now.Location())
}

func (f *CalendarFlow) checkAvailability(ctx context.Context, owner, phrase string) string {
	at, ok := f.parser.Parse(phrase, phrase)
	if !ok {
		return compose.NotUnderstood(phrase)
	}
	events, err := f.sources.merged(ctx, owner, at.Add(-availabilityWindow), at.Add(availabilityWindow))
	if err != nil {
		return compose.Apology("check your availability", err)
	}
	return compose.Availability(at, events)
}

func (f *CalendarFlow) findFreeTime(ctx context.Context, owner string, minutes int) string {
	if minutes <= 0 {
		minutes = schedule.DefaultMinDuration
	}
	slots := f.FreeSlots(ctx, owner, minutes)
	return compose.FreeSlots(slots, minutes, f.parser.Reference().Location())
}

// FreeSlots returns open slots of at least minutes, remote first with a
// local fallback.
func (f *CalendarFlow) FreeSlots(ctx context.Context, owner string, minutes int) []domain.FreeSlot {
	if minutes <= 0 {
		minutes = schedule.DefaultMinDuration
	}
	opts := f.slots
	opts.Now = f.parser.Reference()
	opts.Location = opts.Now.Location()
	return f.sources.freeSlots(ctx, owner, minutes, opts)
}

// Events returns remote and local events in [start, end), deduplicated.
func (f *CalendarFlow) Events(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error) {
	return f.sources.merged(ctx, owner, start, end)
}

func (f *CalendarFlow) general(ctx context.Context, owner, query string) string {
	const help = "📅 I'm here to help with your calendar! You can ask me to schedule events, check availability, or show your schedule."

	start, end := dayBounds(f.parser.Reference())
	events, err := f.store.ListEvents(ctx, owner, start, end)
	if err != nil {
		return fmt.Sprintf("%s Error: %v", help, err)
	}
	if f.completer == nil {
		return help
	}

	prompt := fmt.Sprintf(`User query: %s

User has %d events today.
Recent events: %s

Provide a helpful response about calendar management.`,
		query, len(events), titles(events, 3, func(e domain.Event) string { return e.Title }))

	reply, err := f.completer.Complete(ctx, []domain.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return fmt.Sprintf("%s Error: %v", help, err)
	}
	return "📅 **CalendarFlow:** " + strings.TrimSpace(reply)
}
