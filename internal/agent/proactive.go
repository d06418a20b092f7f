package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flowmind/internal/bus"
	"flowmind/internal/domain"
	"flowmind/internal/metrics"
)

const (
	defaultScanInterval  = 30 * time.Minute
	defaultRetryInterval = 5 * time.Minute
)

// Suggester produces and persists suggestions for one user.
type Suggester interface {
	Suggest(ctx context.Context, owner string) ([]domain.Suggestion, error)
}

type ProactiveConfig struct {
	Enabled       bool
	Interval      time.Duration
	RetryInterval time.Duration
	Store         domain.Store
	Suggester     Suggester
	Bus           domain.MessageBus // optional: announce new suggestions
	Events        *bus.EventBus     // optional
	Channel       string
	ChatID        string
	Now           func() time.Time
	Logger        *slog.Logger
}

// ProactiveScanner precomputes suggestions for every user on a fixed interval.
// A failed cycle is retried after the shorter retry interval.
type ProactiveScanner struct {
	enabled   bool
	interval  time.Duration
	retry     time.Duration
	store     domain.Store
	suggester Suggester
	bus       domain.MessageBus
	events    *bus.EventBus
	channel   string
	chatID    string
	now       func() time.Time
	logger    *slog.Logger
}

func NewProactiveScanner(cfg ProactiveConfig) *ProactiveScanner {
	if cfg.Interval < time.Minute {
		cfg.Interval = defaultScanInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ProactiveScanner{
		enabled:   cfg.Enabled,
		interval:  cfg.Interval,
		retry:     cfg.RetryInterval,
		store:     cfg.Store,
		suggester: cfg.Suggester,
		bus:       cfg.Bus,
		events:    cfg.Events,
		channel:   cfg.Channel,
		chatID:    cfg.ChatID,
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "proactive"),
	}
}

// ScanStats summarizes one scan cycle.
type ScanStats struct {
	Users       int
	Failed      int
	Suggestions int
	Expired     int64
}

// ScanOnce runs one cycle over all users. Per-user failures are logged and
// skipped; only a failure to list users or expire suggestions fails the cycle.
func (p *ProactiveScanner) ScanOnce(ctx context.Context) (ScanStats, error) {
	var stats ScanStats
	metrics.ProactiveScans.Inc()

	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return stats, fmt.Errorf("list users: %w", err)
	}
	stats.Users = len(users)

	for _, u := range users {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		suggestions, err := p.suggester.Suggest(ctx, u.ID)
		if err != nil {
			stats.Failed++
			p.logger.Warn("suggestions failed", "user", u.ID, "error", err)
			continue
		}
		stats.Suggestions += len(suggestions)
		if len(suggestions) > 0 {
			p.events.Emit(bus.Event{
				Type:    bus.EventSuggestionsGenerated,
				Source:  "proactive",
				Payload: map[string]any{"owner": u.ID, "count": len(suggestions)},
			})
		}
		p.announce(u, suggestions)
	}

	expired, err := p.store.ExpireSuggestions(ctx, p.now())
	if err != nil {
		return stats, fmt.Errorf("expire suggestions: %w", err)
	}
	stats.Expired = expired
	metrics.SuggestionsExpired.Add(expired)

	p.events.Emit(bus.Event{
		Type:   bus.EventScanCompleted,
		Source: "proactive",
		Payload: map[string]any{
			"users":       stats.Users,
			"failed":      stats.Failed,
			"suggestions": stats.Suggestions,
			"expired":     stats.Expired,
		},
	})
	p.logger.Info("proactive scan done",
		"users", stats.Users,
		"failed", stats.Failed,
		"suggestions", stats.Suggestions,
		"expired", stats.Expired,
	)
	return stats, nil
}

func (p *ProactiveScanner) announce(u domain.User, suggestions []domain.Suggestion) {
	if p.bus == nil || p.channel == "" || len(suggestions) == 0 {
		return
	}
	p.bus.SendOutbound(domain.OutboundMessage{
		Channel: p.channel,
		ChatID:  p.chatID,
		Content: fmt.Sprintf("💡 %d new suggestions for %s. Ask \"what should I do\" to see them.", len(suggestions), displayName(u)),
		Agent:   AgentMindFlow,
		Format:  "markdown",
	})
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Run blocks until ctx is cancelled, scanning immediately and then on every tick.
func (p *ProactiveScanner) Run(ctx context.Context) {
	if !p.enabled {
		return
	}
	p.logger.Info("proactive scanner started", "interval", p.interval, "retry", p.retry)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("proactive scanner stopped")
			return
		case <-timer.C:
		}

		next := p.interval
		if _, err := p.ScanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Error("proactive scan failed", "error", err, "retry_in", p.retry)
			next = p.retry
		}
		timer.Reset(next)
	}
}
