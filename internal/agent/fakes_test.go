package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"flowmind/internal/domain"
	"flowmind/internal/timeparse"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// refNow is Monday 2024-01-15 08:00 UTC.
var refNow = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func testParser() *timeparse.Parser {
	p := timeparse.New(time.UTC)
	p.Now = func() time.Time { return refNow }
	return p
}

// memStore is an in-memory domain.Store. Lists come back in insertion order.
type memStore struct {
	mu          sync.Mutex
	seq         int
	tasks       []domain.Task
	events      []domain.Event
	suggestions []domain.Suggestion
	users       []domain.User
	messages    []domain.ConversationMessage
	notes       []domain.Note

	failTasks  error // returned by task reads and writes
	failEvents error // returned by ListEvents
	failCreate error // returned by CreateEvent and CreateTask
}

func newMemStore() *memStore { return &memStore{} }

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) CreateTask(_ context.Context, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return domain.Task{}, s.failCreate
	}
	if t.ID == "" {
		t.ID = s.nextID("task")
	}
	if t.Status == "" {
		t.Status = domain.TaskPending
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	t.CreatedAt, t.UpdatedAt = refNow, refNow
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *memStore) GetTask(_ context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			t := s.tasks[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ListTasks(_ context.Context, owner string, status domain.TaskStatus) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTasks != nil {
		return nil, s.failTasks
	}
	var out []domain.Task
	for _, t := range s.tasks {
		if t.Owner == owner && (status == "" || t.Status == status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) UrgentTasks(_ context.Context, owner string, dueBefore time.Time) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTasks != nil {
		return nil, s.failTasks
	}
	var out []domain.Task
	for _, t := range s.tasks {
		if t.Owner != owner || t.Status != domain.TaskPending {
			continue
		}
		if t.Priority == domain.PriorityHigh || (t.DueDate != nil && t.DueDate.Before(dueBefore)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) update(id string, fn func(*domain.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTasks != nil {
		return s.failTasks
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			fn(&s.tasks[i])
			s.tasks[i].UpdatedAt = refNow
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

func (s *memStore) UpdateTaskStatus(_ context.Context, id string, st domain.TaskStatus) error {
	return s.update(id, func(t *domain.Task) { t.Status = st })
}

func (s *memStore) UpdateTaskPriority(_ context.Context, id string, p domain.Priority) error {
	return s.update(id, func(t *domain.Task) { t.Priority = p })
}

func (s *memStore) UpdateTaskTitle(_ context.Context, id, title string) error {
	return s.update(id, func(t *domain.Task) { t.Title = title })
}

func (s *memStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) CreateEvent(_ context.Context, e domain.Event) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return domain.Event{}, s.failCreate
	}
	if e.ID == "" {
		e.ID = s.nextID("event")
	}
	s.events = append(s.events, e)
	return e, nil
}

func (s *memStore) ListEvents(_ context.Context, owner string, start, end time.Time) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEvents != nil {
		return nil, s.failEvents
	}
	var out []domain.Event
	for _, e := range s.events {
		if e.Owner != owner {
			continue
		}
		if (!start.IsZero() && e.Start.Before(start)) || (!end.IsZero() && !e.Start.Before(end)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) StoreSuggestions(_ context.Context, owner string, in []domain.Suggestion) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, sg := range in {
		sg.Owner = owner
		if sg.Status == "" {
			sg.Status = domain.SuggestionPending
		}
		s.suggestions = append(s.suggestions, sg)
		ids = append(ids, sg.ID)
	}
	return ids, nil
}

func (s *memStore) ListPendingSuggestions(_ context.Context, owner string, now time.Time) ([]domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Suggestion
	for _, sg := range s.suggestions {
		if sg.Owner == owner && !sg.Expired(now) {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (s *memStore) UpdateSuggestionStatus(_ context.Context, id string, st domain.SuggestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.suggestions {
		if s.suggestions[i].ID == id {
			s.suggestions[i].Status = st
			return nil
		}
	}
	return fmt.Errorf("suggestion %s: %w", id, domain.ErrNotFound)
}

func (s *memStore) ExpireSuggestions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.suggestions[:0]
	for _, sg := range s.suggestions {
		if sg.Status == domain.SuggestionPending && sg.ExpiresAt != nil && !sg.ExpiresAt.After(now) {
			n++
			continue
		}
		kept = append(kept, sg)
	}
	s.suggestions = kept
	return n, nil
}

func (s *memStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
	return u, nil
}

func (s *memStore) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User(nil), s.users...), nil
}

func (s *memStore) AppendMessage(_ context.Context, m domain.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *memStore) ListMessages(_ context.Context, owner string, limit int) ([]domain.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ConversationMessage
	for _, m := range s.messages {
		if m.Owner == owner {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) CreateNote(_ context.Context, n domain.Note) (domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return n, nil
}

func (s *memStore) ListNotes(_ context.Context, owner string) ([]domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Note
	for _, n := range s.notes {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

// fakeCalendar is a remote calendar with canned results.
type fakeCalendar struct {
	mu       sync.Mutex
	events   []domain.Event
	slots    []domain.FreeSlot
	err      error
	created  []domain.Event
	listHits int
}

func (c *fakeCalendar) Name() string { return "fake" }

func (c *fakeCalendar) ListEvents(_ context.Context, _ string, _, _ time.Time) ([]domain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listHits++
	return c.events, c.err
}

func (c *fakeCalendar) CreateEvent(_ context.Context, _ string, e domain.Event) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.created = append(c.created, e)
	return fmt.Sprintf("remote-%d", len(c.created)), nil
}

func (c *fakeCalendar) FreeSlots(_ context.Context, _ string, _ int) ([]domain.FreeSlot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots, c.err
}

// fakeCompleter replays a fixed reply and records prompts.
type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
	systems []string
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.Message, system string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	f.systems = append(f.systems, system)
	return f.reply, f.err
}

var errBoom = errors.New("boom")

func dueAt(t time.Time) *time.Time { return &t }
