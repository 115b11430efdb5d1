package models

import (
	"time"
)

// Exception cancels a single occurrence of a series. It is keyed by the
// original start instant the recurrence rule produced, never by any
// overridden time.
type Exception struct {
	SeriesID      string    `json:"series_id"`
	OriginalStart time.Time `json:"original_start"`
	CreatedAt     time.Time `json:"created_at"`
}

// Override changes the content and/or timing of a single occurrence. Like
// Exception it is keyed by the original start. All non-key fields are
// optional; absent fields fall back to the series defaults.
type Override struct {
	SeriesID      string    `json:"series_id"`
	OriginalStart time.Time `json:"original_start"`

	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	StartOverride   *time.Time `json:"start_override,omitempty"`
	EndOverride     *time.Time `json:"end_override,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	AllDay          bool       `json:"all_day"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditConflict identifies an occurrence key present in both the exception and
// override tables. The expansion engine resolves this deterministically (the
// exception wins), but the condition indicates a data-quality problem worth
// surfacing.
type EditConflict struct {
	SeriesID      string    `json:"series_id"`
	OriginalStart time.Time `json:"original_start"`
}
