package intent

import (
	"testing"

	"flowmind/internal/domain"
)

func TestRouter_DefaultRoutes(t *testing.T) {
	r := NewRouter(nil, testLogger())
	tests := []struct {
		text   string
		want   domain.IntentDomain
		routed bool
	}{
		{"Add a TODO for tomorrow", domain.DomainTask, true},
		{"team meeting on friday", domain.DomainCalendar, true},
		{"explain monads", domain.DomainInfo, true},
		{"What is love", domain.DomainInfo, true},
		// Task keywords outrank calendar keywords.
		{"schedule this task", domain.DomainTask, true},
		{"hello there", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Route(tt.text)
		if ok != tt.routed || got != tt.want {
			t.Errorf("%q: got (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.routed)
		}
	}
}

func TestRouter_CustomRoutes(t *testing.T) {
	r := NewRouter([]Route{
		{Domain: domain.DomainCalendar, Keywords: []string{"Agenda", " "}},
		{Domain: domain.DomainTask, Keywords: []string{"chore"}},
	}, testLogger())

	if d, ok := r.Route("check my agenda"); !ok || d != domain.DomainCalendar {
		t.Errorf("expected calendar, got (%q, %v)", d, ok)
	}
	if d, ok := r.Route("another chore"); !ok || d != domain.DomainTask {
		t.Errorf("expected task, got (%q, %v)", d, ok)
	}
	// Blank keywords are dropped rather than matching every message.
	if _, ok := r.Route("explain something"); ok {
		t.Error("expected no route for unknown keywords")
	}
}
