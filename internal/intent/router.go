package intent

import (
	"log/slog"
	"strings"

	"flowmind/internal/domain"
)

// Route maps a specialist domain to the keywords that select it.
type Route struct {
	Domain   domain.IntentDomain `json:"domain" yaml:"domain"`
	Keywords []string            `json:"keywords" yaml:"keywords"`
}

// DefaultRoutes returns the built-in specialist routes in precedence order.
func DefaultRoutes() []Route {
	return []Route{
		{Domain: domain.DomainTask, Keywords: []string{"task", "todo", "deadline", "priority"}},
		{Domain: domain.DomainCalendar, Keywords: []string{"calendar", "event", "meeting", "schedule"}},
		{Domain: domain.DomainInfo, Keywords: []string{"explain", "summarize", "what is", "how to"}},
	}
}

// Router picks the specialist for a text by keyword scan. Routes are checked
// in order and the first one with any keyword present wins.
type Router struct {
	routes []Route
	logger *slog.Logger
}

// NewRouter builds a Router over routes, or DefaultRoutes when routes is empty.
func NewRouter(routes []Route, logger *slog.Logger) *Router {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}

	// Pre-compute lowercase keywords to avoid repeated ToLower on every message.
	lowered := make([]Route, 0, len(routes))
	for _, r := range routes {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		lowered = append(lowered, Route{Domain: r.Domain, Keywords: kws})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{routes: lowered, logger: logger}
}

// Route returns the specialist domain for text, or false when the turn should end.
func (r *Router) Route(text string) (domain.IntentDomain, bool) {
	lower := strings.ToLower(text)
	for _, route := range r.routes {
		for _, kw := range route.Keywords {
			if strings.Contains(lower, kw) {
				r.logger.Debug("router matched specialist", "domain", route.Domain, "keyword", kw)
				return route.Domain, true
			}
		}
	}
	return "", false
}
