package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"flowmind/internal/domain"
)

// Validate checks every section and the cross-section references, collecting
// all problems into one error.
func Validate(cfg *Config) error {
	var errs []string

	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"general", &cfg.General},
		{"calendar", &cfg.Calendar},
		{"database", &cfg.Database},
		{"schedule", &cfg.Schedule},
		{"suggestions", &cfg.Suggestions},
		{"proactive", &cfg.Proactive},
		{"routing", &cfg.Routing},
		{"channels.telegram", &cfg.Channels.Telegram},
		{"channels.api", &cfg.Channels.API},
		{"metrics", &cfg.Metrics},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.name, err))
		}
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pc := cfg.Providers[name]
		if err := pc.validate(name); err != nil {
			errs = append(errs, fmt.Sprintf("providers.%s: %v", name, err))
		}
	}

	if p := cfg.General.DefaultProvider; p != "" {
		if _, ok := cfg.Providers[p]; !ok {
			errs = append(errs, fmt.Sprintf("general.defaultProvider references unknown provider: %s", p))
		}
	}
	for _, provName := range cfg.General.FailoverChain {
		if _, ok := cfg.Providers[provName]; !ok {
			errs = append(errs, fmt.Sprintf("general.failoverChain references unknown provider: %s", provName))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

var validTimezone = validation.By(func(value any) error {
	tz, _ := value.(string)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q", tz)
	}
	return nil
})

func (c *GeneralConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Timezone, validTimezone),
		validation.Field(&c.DefaultUser, validation.Required),
		validation.Field(&c.MaxConcurrentMessages, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

func (p *ProviderConfig) validate(name string) error {
	if !p.Enabled {
		return nil
	}
	kind := p.ResolvedKind(name)
	return validation.ValidateStruct(p,
		validation.Field(&p.Kind, validation.In(KindOpenAI, KindClaude, KindOllama)),
		validation.Field(&p.APIKey, validation.When(kind != KindOllama, validation.Required)),
		validation.Field(&p.MaxTokens, validation.Min(0)),
		validation.Field(&p.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&p.TimeoutSeconds, validation.Min(0)),
		validation.Field(&p.RateLimitPerMin, validation.Min(0)),
	)
}

func (c *CalendarConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
	)
}

func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

func (c *ScheduleConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BusinessStartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.BusinessEndHour, validation.Min(1), validation.Max(24)),
		validation.Field(&c.HorizonDays, validation.Required, validation.Min(1), validation.Max(60)),
	); err != nil {
		return err
	}
	if c.BusinessEndHour <= c.BusinessStartHour {
		return fmt.Errorf("businessEndHour (%d) must be after businessStartHour (%d)", c.BusinessEndHour, c.BusinessStartHour)
	}
	return nil
}

func (c *SuggestionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTLHours, validation.Required, validation.Min(1)),
	)
}

func (c *ProactiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IntervalMinutes, validation.When(c.Enabled, validation.Required, validation.Min(1))),
		validation.Field(&c.RetryIntervalMinutes, validation.When(c.Enabled, validation.Required, validation.Min(1))),
		validation.Field(&c.ChatID, validation.When(c.Channel != "", validation.Required)),
	)
}

func (c *RoutingConfig) Validate() error {
	for i, r := range c.Routes {
		switch r.Domain {
		case domain.DomainTask, domain.DomainCalendar, domain.DomainInfo:
		default:
			return fmt.Errorf("routes[%d]: domain must be one of task, calendar, info", i)
		}
		if len(r.Keywords) == 0 {
			return fmt.Errorf("routes[%d]: at least one keyword is required", i)
		}
	}
	return nil
}

func (c *TelegramConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.ParseMode, validation.In("Markdown", "MarkdownV2", "HTML")),
	)
}

func (c *APIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required), validation.Min(0), validation.Max(65535)),
	)
}

func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled, validation.Required)),
	)
}
