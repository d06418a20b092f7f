package calendar

import (
	"log/slog"
	"time"

	"flowmind/internal/config"
	"flowmind/internal/domain"
)

// FromConfig returns the HTTP calendar when enabled, otherwise nil so the
// calendar specialist works from the local store alone.
func FromConfig(cfg config.CalendarConfig, logger *slog.Logger) domain.CalendarProvider {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}
	return NewHTTPCalendar(HTTPConfig{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  logger,
	})
}
