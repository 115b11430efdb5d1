// Package occurrence expands event series into the concrete occurrences that
// intersect a query range, applying per-occurrence cancellations and
// overrides along the way.
package occurrence

import (
	"time"

	"github.com/calview/backend/internal/storage/models"
)

// DefaultMaxOverrideShift bounds how far an override may relocate an
// occurrence from its original start. The loader pads its exception/override
// window by this amount on each side, and the authoring API rejects overrides
// beyond it, so the pad is sufficient by construction rather than by
// heuristic.
const DefaultMaxOverrideShift = 7 * 24 * time.Hour

// Occurrence is one concrete event instance derived from a series. It is
// ephemeral: computed fresh per query, never persisted.
type Occurrence struct {
	ID          string    `json:"id"`
	SeriesID    string    `json:"seriesId"`
	CalendarID  string    `json:"calendarId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
}

// ID derives the stable identity of an occurrence. It is built from the
// series and the original, unmoved start instant, so it survives any number
// of override edits that relocate the occurrence.
func ID(seriesID string, originalStart time.Time) string {
	return seriesID + ":" + models.Canonical(originalStart).Format(time.RFC3339)
}
