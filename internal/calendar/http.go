// Package calendar provides remote calendar backends for the calendar specialist.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flowmind/internal/domain"
	"flowmind/internal/provider"
)

// HTTPCalendar talks to a calendar service over a small JSON API:
//
//	GET  {base}/users/{owner}/events?start=&end=
//	POST {base}/users/{owner}/events
//	GET  {base}/users/{owner}/free-slots?minDuration=
//
// Timestamps travel as RFC 3339.
type HTTPCalendar struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
	retry   provider.RetryPolicy
	logger  *slog.Logger
}

type HTTPConfig struct {
	Name    string
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
	Retry   *provider.RetryPolicy
	Logger  *slog.Logger
}

var _ domain.CalendarProvider = (*HTTPCalendar)(nil)

func NewHTTPCalendar(cfg HTTPConfig) *HTTPCalendar {
	if cfg.Name == "" {
		cfg.Name = "remote"
	}
	if cfg.Client == nil {
		cfg.Client = provider.SharedHTTPClient(cfg.Timeout)
	}
	retry := provider.DefaultRetry
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTTPCalendar{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  cfg.Client,
		retry:   retry,
		logger:  cfg.Logger.With("component", "calendar", "calendar", cfg.Name),
	}
}

func (c *HTTPCalendar) Name() string { return c.name }

type wireEvent struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
}

type eventsResponse struct {
	Events []wireEvent `json:"events"`
}

type createResponse struct {
	ID string `json:"id"`
}

type slotsResponse struct {
	Slots []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"slots"`
}

func (c *HTTPCalendar) ListEvents(ctx context.Context, owner string, start, end time.Time) ([]domain.Event, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.Format(time.RFC3339))
	}

	var out eventsResponse
	if err := c.do(ctx, http.MethodGet, c.userURL(owner, "events", q), nil, &out); err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(out.Events))
	for _, we := range out.Events {
		events = append(events, domain.Event{
			ID:          we.ID,
			Title:       we.Title,
			Description: we.Description,
			Start:       we.Start,
			End:         we.End,
			Location:    we.Location,
			Owner:       owner,
			ExternalID:  we.ID,
		})
	}
	return events, nil
}

func (c *HTTPCalendar) CreateEvent(ctx context.Context, owner string, event domain.Event) (string, error) {
	body, err := json.Marshal(wireEvent{
		Title:       event.Title,
		Description: event.Description,
		Start:       event.Start,
		End:         event.End,
		Location:    event.Location,
	})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	var out createResponse
	if err := c.do(ctx, http.MethodPost, c.userURL(owner, "events", nil), body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar %s: create returned no id", c.name)
	}
	c.logger.Debug("remote event created", "owner", owner, "id", out.ID)
	return out.ID, nil
}

func (c *HTTPCalendar) FreeSlots(ctx context.Context, owner string, minDurationMinutes int) ([]domain.FreeSlot, error) {
	q := url.Values{}
	if minDurationMinutes > 0 {
		q.Set("minDuration", strconv.Itoa(minDurationMinutes))
	}
	var out slotsResponse
	if err := c.do(ctx, http.MethodGet, c.userURL(owner, "free-slots", q), nil, &out); err != nil {
		return nil, err
	}
	slots := make([]domain.FreeSlot, 0, len(out.Slots))
	for _, s := range out.Slots {
		slot := domain.NewFreeSlot(s.Start, s.End)
		if slot.DurationMinutes < minDurationMinutes {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (c *HTTPCalendar) userURL(owner, resource string, q url.Values) string {
	u := c.baseURL + "/users/" + url.PathEscape(owner) + "/" + resource
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends one request with retries and decodes a 2xx JSON body into out.
func (c *HTTPCalendar) do(ctx context.Context, method, target string, body []byte, out any) error {
	resp, err := provider.DoWithRetry(ctx, c.client, c.retry, func() (*http.Request, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	}, c.logger)
	if err != nil {
		return fmt.Errorf("calendar %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("calendar %s: HTTP %d: %w", c.name, resp.StatusCode, domain.ErrNotConnected)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calendar %s: HTTP %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("calendar %s: decode response: %w", c.name, err)
	}
	return nil
}
