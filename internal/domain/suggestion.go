package domain

import "time"

type SuggestionKind string

const (
	KindScheduleTask   SuggestionKind = "schedule_task"
	KindBreakReminder  SuggestionKind = "break_reminder"
	KindPriorityReview SuggestionKind = "priority_review"
	KindModelGenerated SuggestionKind = "model_generated"
)

// Heuristic reports whether the kind comes from a deterministic rule.
func (k SuggestionKind) Heuristic() bool {
	return k != KindModelGenerated
}

type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

// ParseSuggestionStatus accepts only the three known statuses.
func ParseSuggestionStatus(s string) (SuggestionStatus, bool) {
	switch SuggestionStatus(s) {
	case SuggestionPending, SuggestionAccepted, SuggestionDismissed:
		return SuggestionStatus(s), true
	}
	return "", false
}

type Suggestion struct {
	ID          string           `json:"id"`
	Owner       string           `json:"owner"`
	Kind        SuggestionKind   `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Payload     map[string]any   `json:"action_payload,omitempty"`
	Status      SuggestionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

// Expired reports whether the suggestion is no longer displayable at now.
func (s Suggestion) Expired(now time.Time) bool {
	if s.Status != SuggestionPending {
		return true
	}
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
