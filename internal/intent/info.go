package intent

import (
	"strings"

	"flowmind/internal/domain"
)

// InfoRules returns the info rule table in evaluation order.
func InfoRules() []Rule {
	rule := func(action domain.InfoAction, phrases ...string) Rule {
		return phraseRule(string(action), phrases, func(_, raw string) domain.Intent {
			return domain.InfoIntent{Action: action, Query: strings.TrimSpace(raw)}
		})
	}
	return []Rule{
		rule(domain.InfoExplanation, "explain", "what is", "what are", "tell me about", "describe"),
		rule(domain.InfoSummarization, "summarize", "summary of", "sum up", "brief overview", "key points"),
		rule(domain.InfoDefinition, "define", "definition of", "meaning of", "what does", "means"),
		rule(domain.InfoHowTo, "how to", "how do i", "how can i", "steps to", "guide to"),
		rule(domain.InfoComparison, "compare", "difference between", "vs", "versus", "better than"),
		rule(domain.InfoAnalysis, "analyze", "analysis of", "pros and cons", "advantages", "disadvantages"),
	}
}
