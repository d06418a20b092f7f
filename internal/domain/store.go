package domain

import (
	"context"
	"time"
)

// Store is the persistent record store for tasks, events, suggestions and conversation history.
// Implementations return ErrNotFound (wrapped) for unknown ids.
type Store interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	// ListTasks returns the owner's tasks, newest first. An empty status returns all.
	ListTasks(ctx context.Context, owner string, status TaskStatus) ([]Task, error)
	// UrgentTasks returns pending tasks that are high priority or due before the given cutoff,
	// ordered by due date ascending (undated last) then priority descending.
	UrgentTasks(ctx context.Context, owner string, dueBefore time.Time) ([]Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) error
	UpdateTaskPriority(ctx context.Context, id string, priority Priority) error
	UpdateTaskTitle(ctx context.Context, id, title string) error
	DeleteTask(ctx context.Context, id string) error

	CreateEvent(ctx context.Context, event Event) (Event, error)
	// ListEvents returns events whose start lies in [start, end). Zero bounds are open.
	ListEvents(ctx context.Context, owner string, start, end time.Time) ([]Event, error)

	StoreSuggestions(ctx context.Context, owner string, suggestions []Suggestion) ([]string, error)
	ListPendingSuggestions(ctx context.Context, owner string, now time.Time) ([]Suggestion, error)
	UpdateSuggestionStatus(ctx context.Context, id string, status SuggestionStatus) error
	ExpireSuggestions(ctx context.Context, now time.Time) (int64, error)

	CreateUser(ctx context.Context, user User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	AppendMessage(ctx context.Context, msg ConversationMessage) error
	ListMessages(ctx context.Context, owner string, limit int) ([]ConversationMessage, error)

	CreateNote(ctx context.Context, note Note) (Note, error)
	ListNotes(ctx context.Context, owner string) ([]Note, error)

	Close() error
}

// CalendarProvider is the remote calendar the local store mirrors into.
// Failures are non-fatal to callers: they fall back to local data.
type CalendarProvider interface {
	Name() string
	ListEvents(ctx context.Context, owner string, start, end time.Time) ([]Event, error)
	// CreateEvent returns the remote identifier of the created event.
	CreateEvent(ctx context.Context, owner string, event Event) (string, error)
	FreeSlots(ctx context.Context, owner string, minDurationMinutes int) ([]FreeSlot, error)
}
