package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flowmind/internal/domain"
	"flowmind/internal/metrics"
)

// Source resolves the provider to use for one completion.
type Source interface {
	Default() (domain.Provider, error)
}

type CompleterConfig struct {
	Source      Source
	Model       string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Completer adapts a provider Source to domain.Completer. The provider is
// resolved on every call so a registry reload takes effect immediately.
type Completer struct {
	source      Source
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

func NewCompleter(cfg CompleterConfig) *Completer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Completer{
		source:      cfg.Source,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger.With("component", "completer"),
	}
}

// Complete sends systemPrompt followed by messages and returns the trimmed reply.
func (c *Completer) Complete(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error) {
	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	defer metrics.LLMLatency.ObserveSince(start)

	p, err := c.source.Default()
	if err != nil {
		metrics.LLMErrorsTotal.Inc()
		return "", fmt.Errorf("resolve provider: %w", err)
	}

	msgs := make([]domain.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, domain.Message{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, messages...)

	resp, err := p.Chat(ctx, domain.ChatRequest{
		Messages:    msgs,
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		metrics.LLMErrorsTotal.Inc()
		c.logger.Warn("completion failed", "provider", p.Name(), "error", err)
		return "", err
	}
	c.logger.Debug("completion done",
		"provider", p.Name(),
		"latency_ms", resp.LatencyMs,
		"tokens", resp.Usage.TotalTokens,
	)
	return strings.TrimSpace(resp.Content), nil
}
