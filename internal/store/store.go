package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"flowmind/internal/domain"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

var _ domain.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations. Times read back are expressed in loc; nil
// means time.Local.
func NewSQLiteStore(dbPath string, loc *time.Location, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, loc: loc, now: time.Now, logger: logger.With("component", "store")}
	if err := RunMigrations(db, s.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- time helpers ---

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func (s *SQLiteStore) fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(s.loc)
}

func (s *SQLiteStore) fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := s.fromMillis(v.Int64)
	return &t
}

// checkAffected turns a zero-row update into a wrapped ErrNotFound.
func checkAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// --- tasks ---

const taskColumns = "id, owner, title, description, due_at, priority, status, created_at, updated_at"

func (s *SQLiteStore) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = domain.TaskPending
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	task.Title = strings.TrimSpace(task.Title)
	if err := task.Validate(); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	now := s.now()
	task.CreatedAt = now.In(s.loc)
	task.UpdatedAt = task.CreatedAt

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		task.ID, task.Owner, task.Title, task.Description, nullMillis(task.DueDate),
		string(task.Priority), string(task.Status), toMillis(now), toMillis(now),
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	s.logger.Debug("task created", "id", task.ID, "owner", task.Owner)
	return task, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, owner string, status domain.TaskStatus) ([]domain.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE owner = ?"
	args := []any{owner}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	return s.queryTasks(ctx, query, args...)
}

func (s *SQLiteStore) UrgentTasks(ctx context.Context, owner string, dueBefore time.Time) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE owner = ? AND status = 'pending'
		  AND (priority = 'high' OR (due_at IS NOT NULL AND due_at < ?))
		ORDER BY due_at IS NULL, due_at ASC,
		  CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
		  created_at ASC`,
		owner, toMillis(dueBefore),
	)
}

func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	return s.updateTask(ctx, id, "status", string(status))
}

func (s *SQLiteStore) UpdateTaskPriority(ctx context.Context, id string, priority domain.Priority) error {
	return s.updateTask(ctx, id, "priority", string(priority))
}

func (s *SQLiteStore) UpdateTaskTitle(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	return s.updateTask(ctx, id, "title", title)
}

// updateTask sets one whitelisted column.
func (s *SQLiteStore) updateTask(ctx context.Context, id, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+column+" = ?, updated_at = ? WHERE id = ?",
		value, toMillis(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", column, err)
	}
	return checkAffected(res, "task", id)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return checkAffected(res, "task", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTask(row scanner) (domain.Task, error) {
	var (
		t                domain.Task
		due              sql.NullInt64
		priority, status string
		created, updated int64
	)
	if err := row.Scan(&t.ID, &t.Owner, &t.Title, &t.Description, &due, &priority, &status, &created, &updated); err != nil {
		return domain.Task{}, err
	}
	t.DueDate = s.fromNullMillis(due)
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	t.CreatedAt = s.fromMillis(created)
	t.UpdatedAt = s.fromMillis(updated)
	return t, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// --- events ---

func (s *SQLiteStore) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := event.Validate(); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	now := s.now()
	event.CreatedAt = now.In(s.loc)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, owner, title, description, start_at, end_at, location, external_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Owner, event.Title, event.Description,
		toMillis(event.Start), toMillis(event.End), event.Location, event.ExternalID, toMillis(now),
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error) {
	query := `SELECT id, owner, title, description, start_at, end_at, location, external_id, created_at
		FROM events WHERE owner = ?`
	args := []any{owner}
	if !start.IsZero() {
		query += " AND start_at >= ?"
		args = append(args, toMillis(start))
	}
	if !end.IsZero() {
		query += " AND start_at < ?"
		args = append(args, toMillis(end))
	}
	query += " ORDER BY start_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e                         domain.Event
			startMs, endMs, createdMs int64
		)
		if err := rows.Scan(&e.ID, &e.Owner, &e.Title, &e.Description, &startMs, &endMs, &e.Location, &e.ExternalID, &createdMs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Start = s.fromMillis(startMs)
		e.End = s.fromMillis(endMs)
		e.CreatedAt = s.fromMillis(createdMs)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- suggestions ---

func (s *SQLiteStore) StoreSuggestions(ctx context.Context, owner string, suggestions []domain.Suggestion) ([]string, error) {
	if len(suggestions) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	ids := make([]string, 0, len(suggestions))
	for _, sg := range suggestions {
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if sg.Status == "" {
			sg.Status = domain.SuggestionPending
		}
		created := now
		if !sg.CreatedAt.IsZero() {
			created = sg.CreatedAt
		}
		payload := []byte("{}")
		if len(sg.Payload) > 0 {
			if payload, err = json.Marshal(sg.Payload); err != nil {
				return nil, fmt.Errorf("encode payload: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suggestions (id, owner, kind, title, description, payload, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sg.ID, owner, string(sg.Kind), sg.Title, sg.Description, string(payload),
			string(sg.Status), toMillis(created), nullMillis(sg.ExpiresAt),
		); err != nil {
			return nil, fmt.Errorf("insert suggestion: %w", err)
		}
		ids = append(ids, sg.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit suggestions: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) ListPendingSuggestions(ctx context.Context, owner string, now time.Time) ([]domain.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, kind, title, description, payload, status, created_at, expires_at
		FROM suggestions
		WHERE owner = ? AND status = 'pending' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC, rowid ASC`,
		owner, toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var (
			sg                    domain.Suggestion
			kind, status, payload string
			created               int64
			expires               sql.NullInt64
		)
		if err := rows.Scan(&sg.ID, &sg.Owner, &kind, &sg.Title, &sg.Description, &payload, &status, &created, &expires); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.Kind = domain.SuggestionKind(kind)
		sg.Status = domain.SuggestionStatus(status)
		sg.CreatedAt = s.fromMillis(created)
		sg.ExpiresAt = s.fromNullMillis(expires)
		if payload != "" && payload != "{}" {
			if err := json.Unmarshal([]byte(payload), &sg.Payload); err != nil {
				s.logger.Warn("suggestion payload unreadable", "id", sg.ID, "error", err)
			}
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateSuggestionStatus(ctx context.Context, id string, status domain.SuggestionStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE suggestions SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update suggestion: %w", err)
	}
	return checkAffected(res, "suggestion", id)
}

// ExpireSuggestions deletes pending suggestions whose expiry has passed.
func (s *SQLiteStore) ExpireSuggestions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM suggestions WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= ?",
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire suggestions: %w", err)
	}
	return res.RowsAffected()
}

// --- users ---

// CreateUser inserts the user, or refreshes the email and name of an existing id.
func (s *SQLiteStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END,
			name  = CASE WHEN excluded.name  != '' THEN excluded.name  ELSE users.name  END`,
		user.ID, user.Email, user.Name, toMillis(now),
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}

	var created int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT email, name, created_at FROM users WHERE id = ?", user.ID,
	).Scan(&user.Email, &user.Name, &created); err != nil {
		return domain.User{}, fmt.Errorf("read user: %w", err)
	}
	user.CreatedAt = s.fromMillis(created)
	return user, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, email, name, created_at FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u       domain.User
			created int64
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = s.fromMillis(created)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- conversation history ---

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg domain.ConversationMessage) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (owner, content, sender, agent, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.Owner, msg.Content, string(msg.Sender), msg.Agent, toMillis(ts),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the owner's last limit messages in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, owner string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, content, sender, agent, created_at FROM (
			SELECT * FROM messages WHERE owner = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ConversationMessage
	for rows.Next() {
		var (
			m       domain.ConversationMessage
			sender  string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.Owner, &m.Content, &sender, &m.Agent, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = domain.Sender(sender)
		m.Timestamp = s.fromMillis(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- notes ---

func (s *SQLiteStore) CreateNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	if strings.TrimSpace(note.Content) == "" || note.Owner == "" {
		return domain.Note{}, fmt.Errorf("%w: note needs an owner and content", domain.ErrInvalidInput)
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}
	tags, err := json.Marshal(note.Tags)
	if err != nil {
		return domain.Note{}, fmt.Errorf("encode tags: %w", err)
	}
	now := s.now()
	note.CreatedAt = now.In(s.loc)
	note.UpdatedAt = note.CreatedAt

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, owner, title, content, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Owner, note.Title, note.Content, string(tags), toMillis(now), toMillis(now),
	); err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

func (s *SQLiteStore) ListNotes(ctx context.Context, owner string) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, title, content, tags, created_at, updated_at
		FROM notes WHERE owner = ? ORDER BY created_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		var (
			n                domain.Note
			tags             string
			created, updated int64
		)
		if err := rows.Scan(&n.ID, &n.Owner, &n.Title, &n.Content, &tags, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			n.Tags = nil
		}
		n.CreatedAt = s.fromMillis(created)
		n.UpdatedAt = s.fromMillis(updated)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
