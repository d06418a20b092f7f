package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flowmind/internal/config"
	"flowmind/internal/domain"
)

// Constructor builds a provider from its config entry.
type Constructor func(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider

// defaultKey caches the resolved default provider (possibly a failover chain).
const defaultKey = "\x00default"

// Registry creates providers lazily from config and caches one instance per
// name. Concurrent first requests for the same name share one build.
// Reload swaps the config and drops every cached instance.
type Registry struct {
	mu           sync.RWMutex
	cfg          *config.Config
	constructors map[string]Constructor
	cache        map[string]domain.Provider
	generation   uint64
	group        singleflight.Group
	logger       *slog.Logger
}

// NewRegistry creates a registry with the built-in kinds registered.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		cfg:          cfg,
		constructors: make(map[string]Constructor),
		cache:        make(map[string]domain.Provider),
		logger:       logger.With("component", "providers"),
	}
	r.registerDefaults()
	return r
}

func clientFor(pc config.ProviderConfig) *http.Client {
	return SharedHTTPClient(time.Duration(pc.TimeoutSeconds) * time.Second)
}

func (r *Registry) registerDefaults() {
	r.constructors[config.KindOllama] = func(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOllama(OllamaConfig{
			Name: name, APIBase: pc.APIBase, APIKey: pc.APIKey, DefaultModel: pc.DefaultModel,
			Temperature: pc.Temperature, Client: clientFor(pc), Logger: logger,
		})
	}
	r.constructors[config.KindOpenAI] = func(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewOpenAI(OpenAIConfig{
			Name: name, APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature, Client: clientFor(pc), Logger: logger,
		})
	}
	r.constructors[config.KindClaude] = func(name string, pc config.ProviderConfig, logger *slog.Logger) domain.Provider {
		return NewClaude(ClaudeConfig{
			Name: name, APIKey: pc.APIKey, APIBase: pc.APIBase, Model: pc.DefaultModel,
			MaxTokens: pc.MaxTokens, Temperature: pc.Temperature, Client: clientFor(pc), Logger: logger,
		})
	}
}

// RegisterConstructor adds (or replaces) the constructor for a provider kind.
func (r *Registry) RegisterConstructor(kind string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy on write: in-flight builds hold the previous map.
	ctors := make(map[string]Constructor, len(r.constructors)+1)
	for k, v := range r.constructors {
		ctors[k] = v
	}
	ctors[kind] = ctor
	r.constructors = ctors
	r.invalidateLocked()
}

// Reload replaces the config and drops all cached providers.
func (r *Registry) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.invalidateLocked()
	r.logger.Info("provider registry reloaded", "default", cfg.General.DefaultProvider)
}

// Invalidate drops all cached providers; the next Get rebuilds them.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
}

func (r *Registry) invalidateLocked() {
	r.cache = make(map[string]domain.Provider)
	r.generation++
}

// Names lists the enabled providers in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, pc := range r.cfg.Providers {
		if pc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Get returns the provider with the given name, or the default if name is empty.
func (r *Registry) Get(name string) (domain.Provider, error) {
	if name == "" {
		return r.Default()
	}
	return r.cached(name, func(cfg *config.Config, ctors map[string]Constructor) (domain.Provider, error) {
		return r.build(cfg, ctors, name)
	})
}

// Default returns the configured default provider. With a failover chain
// configured it returns a FailoverProvider starting at the default and
// continuing through the chain; providers that fail to build are skipped.
func (r *Registry) Default() (domain.Provider, error) {
	return r.cached(defaultKey, func(cfg *config.Config, ctors map[string]Constructor) (domain.Provider, error) {
		chain := chainOrder(cfg.General.DefaultProvider, cfg.General.FailoverChain)
		if len(chain) == 1 {
			return r.build(cfg, ctors, chain[0])
		}
		var providers []domain.Provider
		for _, name := range chain {
			p, err := r.build(cfg, ctors, name)
			if err != nil {
				r.logger.Warn("skipping provider in failover chain", "provider", name, "error", err)
				continue
			}
			providers = append(providers, p)
		}
		switch len(providers) {
		case 0:
			return nil, fmt.Errorf("no usable provider in %v: %w", chain, domain.ErrProviderUnavailable)
		case 1:
			return providers[0], nil
		}
		return NewFailoverProvider(providers, r.logger), nil
	})
}

// chainOrder puts the default first and drops duplicates.
func chainOrder(def string, chain []string) []string {
	out := make([]string, 0, len(chain)+1)
	seen := make(map[string]bool)
	for _, name := range append([]string{def}, chain...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

type buildFunc func(cfg *config.Config, ctors map[string]Constructor) (domain.Provider, error)

func (r *Registry) cached(key string, build buildFunc) (domain.Provider, error) {
	r.mu.RLock()
	if p, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	cfg, ctors, gen := r.cfg, r.constructors, r.generation
	r.mu.RUnlock()

	v, err, _ := r.group.Do(fmt.Sprintf("%d/%s", gen, key), func() (any, error) {
		p, err := build(cfg, ctors)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		// A Reload during the build makes this instance stale; hand it out
		// once but do not cache it.
		if r.generation == gen {
			r.cache[key] = p
		}
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.Provider), nil
}

func (r *Registry) build(cfg *config.Config, ctors map[string]Constructor, name string) (domain.Provider, error) {
	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %s: %w", name, domain.ErrProviderUnavailable)
	}
	if !pc.Enabled {
		return nil, fmt.Errorf("provider %s is disabled: %w", name, domain.ErrProviderUnavailable)
	}
	kind := pc.ResolvedKind(name)
	ctor, found := ctors[kind]
	if !found {
		return nil, fmt.Errorf("provider %s: no constructor for kind %q", name, kind)
	}
	r.logger.Debug("building provider", "provider", name, "kind", kind)
	return ctor(name, pc, r.logger), nil
}

// HealthyProvider returns the first enabled provider that passes a health check.
func (r *Registry) HealthyProvider(ctx context.Context) (domain.Provider, error) {
	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		if p.Healthy(ctx) == nil {
			return p, nil
		}
	}
	return nil, domain.ErrProviderUnavailable
}
