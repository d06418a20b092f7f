package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"flowmind/internal/domain"
	"flowmind/internal/metrics"
	"flowmind/internal/schedule"
)

// Agent names as they appear on replies and in the conversation log.
const (
	AgentMindFlow     = "mindflow"
	AgentTaskFlow     = "taskflow"
	AgentCalendarFlow = "calendarflow"
	AgentInfoFlow     = "infoflow"
)

// Result is what a specialist produced for one message.
type Result struct {
	Text   string
	Intent domain.Intent
}

// Specialist handles a message in its own domain and always ends the turn.
type Specialist interface {
	Name() string
	Domain() domain.IntentDomain
	Handle(ctx context.Context, owner, text string) (Result, error)
}

// dayBounds returns [00:00, next 00:00) of the day containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// eventSources fetches events from the remote calendar and the local store.
type eventSources struct {
	store    domain.Store
	calendar domain.CalendarProvider
	logger   *slog.Logger
}

// fetch queries both sources concurrently over [start, end). A remote failure
// is logged and contributes nothing; it never cancels the local query. The
// local error is returned for callers that treat the store as essential.
func (s eventSources) fetch(ctx context.Context, owner string, start, end time.Time) (remote, local []domain.Event, localErr error) {
	var g errgroup.Group
	if s.calendar != nil {
		g.Go(func() error {
			events, err := s.calendar.ListEvents(ctx, owner, start, end)
			if err != nil {
				s.logger.Warn("remote calendar fetch failed", "owner", owner, "provider", s.calendar.Name(), "error", err)
				metrics.CalendarErrors.Inc()
				return nil
			}
			remote = events
			return nil
		})
	}
	g.Go(func() error {
		local, localErr = s.store.ListEvents(ctx, owner, start, end)
		return nil
	})
	_ = g.Wait()
	return remote, local, localErr
}

// merged returns remote and local events deduplicated, remote copy first.
func (s eventSources) merged(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error) {
	remote, local, err := s.fetch(ctx, owner, start, end)
	if err != nil {
		return nil, err
	}
	return schedule.MergeEvents(remote, local), nil
}

// freeSlots asks the remote calendar first and falls back to computing slots
// from local events. Busy intervals that cannot be fetched count as none.
func (s eventSources) freeSlots(ctx context.Context, owner string, minutes int, opts schedule.SlotOptions) []domain.FreeSlot {
	if s.calendar != nil {
		slots, err := s.calendar.FreeSlots(ctx, owner, minutes)
		if err == nil {
			if len(slots) > schedule.MaxFreeSlots {
				slots = slots[:schedule.MaxFreeSlots]
			}
			return slots
		}
		s.logger.Warn("remote free slots unavailable, computing locally", "owner", owner, "error", err)
	}

	opts.MinDurationMinutes = minutes
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = schedule.DefaultHorizonDays
	}
	start, _ := dayBounds(opts.Now.In(opts.Location))
	events, err := s.store.ListEvents(ctx, owner, start, start.AddDate(0, 0, opts.HorizonDays))
	if err != nil {
		s.logger.Warn("local events unavailable for free slots", "owner", owner, "error", err)
		events = nil
	}
	return schedule.FindFreeSlots(schedule.BusyIntervals(events), opts)
}

// findTask returns the first task whose title contains identifier
// (case-insensitive) or whose id equals it.
func findTask(tasks []domain.Task, identifier string) (domain.Task, bool) {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) || t.ID == identifier {
			return t, true
		}
	}
	return domain.Task{}, false
}

func titles[T any](items []T, n int, title func(T) string) string {
	var out []string
	for i, it := range items {
		if i == n {
			break
		}
		out = append(out, title(it))
	}
	return strings.Join(out, ", ")
}
