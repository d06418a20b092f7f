package domain

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Owner       string    `json:"owner"`
	ExternalID  string    `json:"external_id,omitempty"` // id of the mirrored copy in the remote calendar
	CreatedAt   time.Time `json:"created_at"`
}

// Validate enforces a non-empty title and End > Start.
func (e Event) Validate() error {
	if err := validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.Owner, validation.Required),
		validation.Field(&e.Start, validation.Required),
		validation.Field(&e.End, validation.Required),
	); err != nil {
		return err
	}
	if !e.End.After(e.Start) {
		return errors.New("end: must be after start")
	}
	return nil
}

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// FreeSlot is a transient, computed window of availability.
type FreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// NewFreeSlot builds a slot whose duration is the whole minutes between start and end.
func NewFreeSlot(start, end time.Time) FreeSlot {
	return FreeSlot{Start: start, End: end, DurationMinutes: int(end.Sub(start) / time.Minute)}
}
