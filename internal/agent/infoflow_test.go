package agent

import (
	"context"
	"strings"
	"testing"

	"flowmind/internal/domain"
)

func TestInfoFlow_PromptPerAction(t *testing.T) {
	cases := []struct {
		text   string
		action domain.InfoAction
		label  string
	}{
		{"explain recursion", domain.InfoExplanation, "💡 **InfoFlow Explanation:**"},
		{"summarize this article", domain.InfoSummarization, "📋 **InfoFlow Summary:**"},
		{"define entropy", domain.InfoDefinition, "📖 **InfoFlow Definition:**"},
		{"how to bake bread", domain.InfoHowTo, "🛠️ **InfoFlow Guide:**"},
		{"compare go and rust", domain.InfoComparison, "⚖️ **InfoFlow Comparison:**"},
		{"analyze the market", domain.InfoAnalysis, "🔍 **InfoFlow Analysis:**"},
		{"hello there", domain.InfoGeneral, "🧠 **InfoFlow:**"},
	}
	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			fc := &fakeCompleter{reply: "  the answer  "}
			f := NewInfoFlow(InfoFlowConfig{Completer: fc, Logger: testLogger()})

			res, err := f.Handle(context.Background(), "ada", tc.text)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			in, ok := res.Intent.(domain.InfoIntent)
			if !ok || in.Action != tc.action {
				t.Fatalf("intent = %#v, want action %s", res.Intent, tc.action)
			}
			if fc.calls != 1 {
				t.Fatalf("calls = %d", fc.calls)
			}
			if fc.systems[0] != infoStyles[tc.action].prompt {
				t.Errorf("system prompt = %q", fc.systems[0])
			}
			if fc.prompts[0] != tc.text {
				t.Errorf("user prompt = %q", fc.prompts[0])
			}
			if res.Text != tc.label+"\n\nthe answer" {
				t.Errorf("text = %q", res.Text)
			}
		})
	}
}

func TestInfoFlow_CompleterFailure(t *testing.T) {
	fc := &fakeCompleter{err: errBoom}
	f := NewInfoFlow(InfoFlowConfig{Completer: fc, Logger: testLogger()})

	res, err := f.Handle(context.Background(), "ada", "define entropy")
	if err != nil {
		t.Fatalf("failure should degrade to text, got error %v", err)
	}
	if !strings.HasPrefix(res.Text, "📖 I'd be happy to define that for you") || !strings.Contains(res.Text, "Error: boom") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestInfoFlow_NoCompleter(t *testing.T) {
	f := NewInfoFlow(InfoFlowConfig{Logger: testLogger()})

	res, err := f.Handle(context.Background(), "ada", "hello there")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.HasPrefix(res.Text, "🧠 I'd be happy to help with that") {
		t.Errorf("text = %q", res.Text)
	}
	if !strings.Contains(res.Text, domain.ErrProviderUnavailable.Error()) {
		t.Errorf("text should carry the unavailable error, got %q", res.Text)
	}
	if f.Name() != AgentInfoFlow || f.Domain() != domain.DomainInfo {
		t.Errorf("identity = %s/%s", f.Name(), f.Domain())
	}
}
