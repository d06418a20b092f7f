// Package intent maps free text onto per-domain actions with ordered,
// first-match-wins rule tables, and picks the specialist that should
// handle a message.
package intent

import (
	"regexp"
	"strings"

	"flowmind/internal/domain"
)

// Rule is one entry of a rule table. Match receives the lower-cased message
// and the original text and reports whether the rule claims the message.
type Rule struct {
	Action string
	Match  func(lower, raw string) (domain.Intent, bool)
}

// Classifier evaluates the rule table of a domain top to bottom.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	tables map[domain.IntentDomain][]Rule
}

func NewClassifier() *Classifier {
	return &Classifier{
		tables: map[domain.IntentDomain][]Rule{
			domain.DomainTask:          TaskRules(),
			domain.DomainCalendar:      CalendarRules(),
			domain.DomainInfo:          InfoRules(),
			domain.DomainOrchestration: OrchestrationRules(),
		},
	}
}

// Classify returns the intent of the first matching rule, or the domain's
// fallback when nothing matches.
func (c *Classifier) Classify(text string, d domain.IntentDomain) domain.Intent {
	lower := strings.ToLower(text)
	for _, r := range c.tables[d] {
		if in, ok := r.Match(lower, text); ok {
			return in
		}
	}
	return fallback(text, d)
}

func fallback(text string, d domain.IntentDomain) domain.Intent {
	query := strings.TrimSpace(text)
	switch d {
	case domain.DomainTask:
		return domain.TaskIntent{Action: domain.TaskGeneral, Query: query}
	case domain.DomainCalendar:
		return domain.CalendarIntent{Action: domain.CalendarGeneral, Query: query}
	case domain.DomainInfo:
		return domain.InfoIntent{Action: domain.InfoGeneral, Query: query}
	default:
		return domain.OrchestrationIntent{Action: domain.OrchestrationRoute}
	}
}

// regexRule matches the first pattern that hits and hands its submatches to build.
func regexRule(action string, patterns []string, build func(m []string) domain.Intent) Rule {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return Rule{
		Action: action,
		Match: func(lower, _ string) (domain.Intent, bool) {
			for _, re := range compiled {
				if m := re.FindStringSubmatch(lower); m != nil {
					return build(m), true
				}
			}
			return nil, false
		},
	}
}

// phraseRule matches when any phrase occurs as a substring of the lower-cased text.
func phraseRule(action string, phrases []string, build func(lower, raw string) domain.Intent) Rule {
	return Rule{
		Action: action,
		Match: func(lower, raw string) (domain.Intent, bool) {
			if !containsAny(lower, phrases) {
				return nil, false
			}
			return build(lower, raw), true
		},
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func group(m []string, i int) string {
	if i >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[i])
}
