// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Series represents a recurring or single event definition. It is the
// template from which concrete occurrences are derived: the anchor start is
// both the first occurrence and the base the recurrence rule is evaluated
// against.
type Series struct {
	ID              string     `json:"id"`
	CalendarID      string     `json:"calendar_id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	AnchorStart     time.Time  `json:"anchor_start"`
	DurationMinutes int        `json:"duration_minutes"`
	Timezone        string     `json:"timezone"`
	RRule           *string    `json:"rrule,omitempty"`
	RecurrenceEnd   *time.Time `json:"recurrence_end,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsRecurring reports whether the series has a recurrence rule. A series
// without one has exactly one occurrence, at AnchorStart.
func (s *Series) IsRecurring() bool {
	return s.RRule != nil && *s.RRule != ""
}

// Duration returns the default occurrence length.
func (s *Series) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Canonical normalizes an instant to the precision used for occurrence keys
// and time comparisons: UTC, truncated to the second. Every instant must pass
// through this before being stored, keyed, or compared, so that subsecond
// drift can never cause a missed exception or override match.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
