package main

import (
	"fmt"
	"log/slog"

	"flowmind/internal/agent"
	"flowmind/internal/bus"
	"flowmind/internal/calendar"
	"flowmind/internal/config"
	"flowmind/internal/domain"
	"flowmind/internal/intent"
	"flowmind/internal/provider"
	"flowmind/internal/schedule"
	"flowmind/internal/store"
	"flowmind/internal/suggest"
	"flowmind/internal/timeparse"
)

// app holds everything a command needs to answer messages. Channels and the
// background scanner are attached by the commands that run them.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	calendar domain.CalendarProvider
	registry *provider.Registry
	events   *bus.EventBus
	messages *bus.InMemoryBus

	mindflow     *agent.MindFlow
	calendarFlow *agent.CalendarFlow
	orchestrator *agent.Orchestrator
	loop         *agent.Loop
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	loc := cfg.General.Location()

	st, err := store.NewSQLiteStore(config.ExpandPath(cfg.Database.Path), loc, logger)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	registry := provider.NewRegistry(cfg, logger)
	completer := agent.Throttle(newCompleter(cfg, registry, logger), rateLimiter(cfg))
	remote := calendar.FromConfig(cfg.Calendar, logger)
	events := bus.NewEventBus(logger)
	parser := timeparse.New(loc)
	classifier := intent.NewClassifier()
	slots := schedule.SlotOptions{
		HorizonDays:       cfg.Schedule.HorizonDays,
		BusinessStartHour: cfg.Schedule.BusinessStartHour,
		BusinessEndHour:   cfg.Schedule.BusinessEndHour,
	}

	mindflow := agent.NewMindFlow(agent.MindFlowConfig{
		Store:     st,
		Calendar:  remote,
		Completer: completer,
		Engine: suggest.NewEngine(suggest.Config{
			Completer: completer,
			TTL:       cfg.Suggestions.TTL(),
			Now:       parser.Reference,
			Logger:    logger,
		}),
		Parser: parser,
		Slots:  slots,
		Logger: logger,
	})
	calendarFlow := agent.NewCalendarFlow(agent.CalendarFlowConfig{
		Store:      st,
		Calendar:   remote,
		Completer:  completer,
		Classifier: classifier,
		Parser:     parser,
		Slots:      slots,
		Logger:     logger,
	})

	orchestrator := agent.NewOrchestrator(agent.OrchestratorConfig{
		Classifier: classifier,
		Router:     intent.NewRouter(cfg.Routing.Routes, logger),
		MindFlow:   mindflow,
		Specialists: []agent.Specialist{
			agent.NewTaskFlow(agent.TaskFlowConfig{
				Store:      st,
				Completer:  completer,
				Classifier: classifier,
				Parser:     parser,
				Logger:     logger,
			}),
			calendarFlow,
			agent.NewInfoFlow(agent.InfoFlowConfig{
				Completer:  completer,
				Classifier: classifier,
				Logger:     logger,
			}),
		},
		Store:  st,
		Events: events,
		Logger: logger,
	})

	messages := bus.New(100, logger)
	loop := agent.NewLoop(agent.LoopConfig{
		Responder:   orchestrator,
		Commands:    agent.NewCommands(st, parser.Reference),
		Bus:         messages,
		Users:       st,
		Logger:      logger,
		Concurrency: cfg.General.MaxConcurrentMessages,
	})

	return &app{
		cfg:          cfg,
		store:        st,
		calendar:     remote,
		registry:     registry,
		events:       events,
		messages:     messages,
		mindflow:     mindflow,
		calendarFlow: calendarFlow,
		orchestrator: orchestrator,
		loop:         loop,
	}, nil
}

// newCompleter returns nil when no provider is enabled so the flows take
// their model-free paths instead of failing every call.
func newCompleter(cfg *config.Config, registry *provider.Registry, logger *slog.Logger) domain.Completer {
	if len(registry.Names()) == 0 {
		logger.Warn("no model provider enabled, running without model features")
		return nil
	}
	pc := cfg.Providers[cfg.General.DefaultProvider]
	return provider.NewCompleter(provider.CompleterConfig{
		Source:      registry,
		Model:       pc.DefaultModel,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		Logger:      logger,
	})
}

func rateLimiter(cfg *config.Config) *agent.RateLimiter {
	pc, ok := cfg.Providers[cfg.General.DefaultProvider]
	if !ok || pc.RateLimitPerMin <= 0 {
		return nil
	}
	return agent.NewRateLimiter(pc.RateLimitPerMin, float64(pc.RateLimitPerMin))
}

// reload applies a changed config file to the parts that can change live.
func (a *app) reload(cfg *config.Config, logger *slog.Logger) {
	a.registry.Reload(cfg)
	a.events.Emit(bus.Event{
		Type:    bus.EventConfigReloaded,
		Source:  "config",
		Payload: map[string]any{"defaultProvider": cfg.General.DefaultProvider},
	})
	logger.Info("config reloaded", "defaultProvider", cfg.General.DefaultProvider)
}

func (a *app) owner() string {
	if a.cfg.General.DefaultUser != "" {
		return a.cfg.General.DefaultUser
	}
	return "local"
}

func (a *app) Close() {
	a.messages.Close()
	a.store.Close()
}
