package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flowmind/internal/agent"
	"flowmind/internal/bus"
	"flowmind/internal/domain"
	"flowmind/internal/schedule"
)

const (
	apiChannel         = "api"
	apiMaxBodySize     = 1 << 20
	defaultEventWindow = 7 * 24 * time.Hour
)

// Chatter answers one user turn synchronously.
type Chatter interface {
	ProcessDirect(ctx context.Context, owner, content string) agent.Reply
}

// CalendarView reads merged remote and local calendar data.
type CalendarView interface {
	Events(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error)
	FreeSlots(ctx context.Context, owner string, minutes int) []domain.FreeSlot
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIConfig struct {
	Addr      string
	Token     string // Bearer token; empty disables auth
	Chat      Chatter
	Store     domain.Store
	Calendar  CalendarView
	Suggester agent.Suggester // optional: ?refresh=true on suggestions
	Events    *bus.EventBus   // optional: GET /activity
	Health    map[string]Pinger
	Metrics   http.Handler // optional
	MetricsAt string
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

// API is the HTTP JSON channel. It answers chat synchronously and exposes
// the user's tasks, events, free time and suggestions.
type API struct {
	addr    string
	handler http.Handler
	server  *http.Server
	logger  *slog.Logger
}

var _ domain.Channel = (*API)(nil)

func NewAPI(cfg APIConfig) *API {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MetricsAt == "" {
		cfg.MetricsAt = "/metrics"
	}
	logger := cfg.Logger.With("channel", apiChannel)
	h := &apiHandler{cfg: cfg, logger: logger}
	return &API{addr: cfg.Addr, handler: h.routes(), logger: logger}
}

func (a *API) Name() string { return apiChannel }

// Handler exposes the router, mainly for tests.
func (a *API) Handler() http.Handler { return a.handler }

// Start serves HTTP until ctx is cancelled. The bus is unused: chat replies
// are returned in the response body.
func (a *API) Start(ctx context.Context, _ domain.MessageBus) error {
	a.server = &http.Server{
		Addr:              a.addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second, // model replies can be slow
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", "error", err)
		}
	}()

	a.logger.Info("http api listening", "addr", a.addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (a *API) Stop() error {
	if a.server != nil {
		return a.server.Close()
	}
	return nil
}

type apiHandler struct {
	cfg    APIConfig
	logger *slog.Logger
}

func (h *apiHandler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if h.cfg.Metrics != nil {
		r.Handle(h.cfg.MetricsAt, h.cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.cfg.Token))

		r.Post("/chat", h.chat)
		r.Get("/users/{id}/tasks", h.listTasks)
		r.Post("/users/{id}/tasks", h.createTask)
		r.Get("/users/{id}/events", h.listEvents)
		r.Get("/users/{id}/free-time", h.freeTime)
		r.Get("/users/{id}/suggestions", h.listSuggestions)
		r.Post("/suggestions/{id}/status", h.updateSuggestion)
		r.Get("/activity", h.activity)
	})
	return r
}

// AuthMiddleware validates a Bearer token. An empty token disables the check.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *apiHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps sentinel errors onto status codes.
func (h *apiHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		h.logger.Error(op+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, apiMaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return false
	}
	return true
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.cfg.Health))
	status, code := "ok", http.StatusOK
	for name, p := range h.cfg.Health {
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
	Agent    string `json:"agent"`
	Intent   string `json:"intent,omitempty"`
}

func (h *apiHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("user_id and message are required"))
		return
	}

	reply := h.cfg.Chat.ProcessDirect(r.Context(), req.UserID, req.Message)
	resp := chatResponse{Response: reply.Text, Agent: reply.Agent}
	if reply.Intent != nil {
		resp.Intent = string(reply.Intent.Domain()) + "/" + reply.Intent.Tag()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *apiHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "id")
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.TaskPending, domain.TaskCompleted, domain.TaskCancelled:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("status must be pending, completed or cancelled"))
		return
	}
	tasks, err := h.cfg.Store.ListTasks(r.Context(), owner, status)
	if err != nil {
		h.writeError(w, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "total": len(tasks)})
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
}

func (h *apiHandler) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	task := domain.Task{
		Owner:       chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Priority != "" {
		p, ok := domain.ParsePriority(req.Priority)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("priority must be low, medium or high"))
			return
		}
		task.Priority = p
	}
	if req.DueDate != "" {
		due, err := h.parseTime(req.DueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("due_date: "+err.Error()))
			return
		}
		task.DueDate = &due
	}

	created, err := h.cfg.Store.CreateTask(r.Context(), task)
	if err != nil {
		h.writeError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *apiHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "id")
	q := r.URL.Query()

	now := h.cfg.Now().In(h.cfg.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.cfg.Location)
	end := start.Add(defaultEventWindow)
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = h.parseTime(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("start: "+err.Error()))
			return
		}
		end = start.Add(defaultEventWindow)
	}
	if v := q.Get("end"); v != "" {
		if end, err = h.parseTime(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("end: "+err.Error()))
			return
		}
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, errorBody("end must be after start"))
		return
	}

	events, err := h.cfg.Calendar.Events(r.Context(), owner, start, end)
	if err != nil {
		h.writeError(w, "list events", err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

func (h *apiHandler) freeTime(w http.ResponseWriter, r *http.Request) {
	minutes := schedule.DefaultMinDuration
	if v := r.URL.Query().Get("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("duration must be a positive number of minutes"))
			return
		}
		minutes = n
	}
	slots := h.cfg.Calendar.FreeSlots(r.Context(), chi.URLParam(r, "id"), minutes)
	if slots == nil {
		slots = []domain.FreeSlot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"free_slots": slots, "duration_minutes": minutes})
}

func (h *apiHandler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "id")
	if r.URL.Query().Get("refresh") == "true" && h.cfg.Suggester != nil {
		if _, err := h.cfg.Suggester.Suggest(r.Context(), owner); err != nil {
			h.logger.Warn("suggestion refresh failed", "owner", owner, "error", err)
		}
	}
	suggestions, err := h.cfg.Store.ListPendingSuggestions(r.Context(), owner, h.cfg.Now())
	if err != nil {
		h.writeError(w, "list suggestions", err)
		return
	}
	if suggestions == nil {
		suggestions = []domain.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions, "total": len(suggestions)})
}

func (h *apiHandler) updateSuggestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	status, ok := domain.ParseSuggestionStatus(req.Status)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("status must be pending, accepted or dismissed"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.cfg.Store.UpdateSuggestionStatus(r.Context(), id, status); err != nil {
		h.writeError(w, "update suggestion", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

type activityEvent struct {
	Type      string         `json:"type"`
	Source    string         `json:"source,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (h *apiHandler) activity(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []activityEvent{}})
		return
	}
	q := r.URL.Query()
	kind := q.Get("type")
	if kind == "" {
		kind = "*"
	}
	var since time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be RFC 3339"))
			return
		}
		since = t
	}

	replayed := h.cfg.Events.Replay(kind, since)
	out := make([]activityEvent, 0, len(replayed))
	for _, e := range replayed {
		out = append(out, activityEvent{Type: e.Type, Source: e.Source, Payload: e.Payload, Timestamp: e.Timestamp})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// parseTime accepts RFC 3339 timestamps or plain dates in the configured zone.
func (h *apiHandler) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, h.cfg.Location); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", v)
}
