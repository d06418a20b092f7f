package intent

import "flowmind/internal/domain"

// OrchestrationRules returns the orchestrator persona's rule table. "summary"
// belongs to the status check, so only "daily report" phrasing reaches the
// daily summary rule.
func OrchestrationRules() []Rule {
	rule := func(action domain.OrchestrationAction, phrases ...string) Rule {
		return phraseRule(string(action), phrases, func(_, _ string) domain.Intent {
			return domain.OrchestrationIntent{Action: action}
		})
	}
	return []Rule{
		rule(domain.OrchestrationProactive, "what should i do", "suggestions", "proactive", "help me focus"),
		rule(domain.OrchestrationStatus, "status", "overview", "what's up", "summary"),
		rule(domain.OrchestrationDaily, "daily summary", "today's summary", "daily report"),
		rule(domain.OrchestrationWorkflow, "optimize", "improve workflow", "better productivity"),
	}
}
