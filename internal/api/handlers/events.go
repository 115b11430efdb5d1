// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/calview/backend/internal/api/middleware"
	"github.com/calview/backend/internal/occurrence"
)

// RangeResponse is the payload of the range query: the occurrences that
// intersect the requested window, globally sorted, plus the ids of any series
// whose expansion failed. A corrupt series degrades the result, it never
// blanks it.
type RangeResponse struct {
	Events       []occurrence.Occurrence `json:"events"`
	FailedSeries []string                `json:"failedSeries,omitempty"`
}

// parseRange extracts and validates the query window. Both bounds are
// required RFC3339 instants with end >= start; calendarId is optional.
func parseRange(r *http.Request) (start, end time.Time, calendarID string, ok bool, errMsg string) {
	q := r.URL.Query()

	rawStart := q.Get("start")
	rawEnd := q.Get("end")
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, "", false, "start and end are required"
	}

	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, "", false, "start must be an RFC3339 timestamp"
	}
	end, err = time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, "", false, "end must be an RFC3339 timestamp"
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, "", false, "end must not be before start"
	}

	return start, end, q.Get("calendarId"), true, ""
}

// GetEventsRange returns a handler that expands all series intersecting the
// requested range into concrete occurrences. Invalid range parameters are
// rejected before the engine is touched; a storage failure fails the whole
// query with a storage_unavailable signal.
func GetEventsRange(loader *occurrence.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, calendarID, ok, errMsg := parseRange(r)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		series, exceptions, overrides, err := loader.Load(r.Context(), start, end, calendarID)
		if err != nil {
			log.Printf("Range query load failed: %v", err)
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrStorageUnavailable, "Event storage is unavailable")
			return
		}

		result := occurrence.Expand(series, exceptions, overrides, start, end)

		response := RangeResponse{Events: result.Occurrences}
		if response.Events == nil {
			response.Events = []occurrence.Occurrence{}
		}
		for _, f := range result.Failures {
			response.FailedSeries = append(response.FailedSeries, f.SeriesID)
		}

		w.Header().Set("Content-Type", "application/json")
		if len(result.Failures) > 0 {
			w.Header().Set("X-Partial-Result", "true")
		}
		json.NewEncoder(w).Encode(response)
	}
}

// ExportEventsICS returns a handler that renders the same expansion as an
// iCalendar document, one VEVENT per occurrence. Occurrence ids become UIDs,
// so re-exports of overlapping ranges stay stable for consumers.
func ExportEventsICS(loader *occurrence.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, calendarID, ok, errMsg := parseRange(r)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		series, exceptions, overrides, err := loader.Load(r.Context(), start, end, calendarID)
		if err != nil {
			log.Printf("ICS export load failed: %v", err)
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrStorageUnavailable, "Event storage is unavailable")
			return
		}

		result := occurrence.Expand(series, exceptions, overrides, start, end)

		cal := ics.NewCalendar()
		cal.SetMethod(ics.MethodPublish)
		now := time.Now().UTC()

		for _, occ := range result.Occurrences {
			ev := cal.AddEvent(occ.ID)
			ev.SetDtStampTime(now)
			ev.SetSummary(occ.Title)
			if occ.Description != nil {
				ev.SetDescription(*occ.Description)
			}
			if occ.AllDay {
				ev.SetAllDayStartAt(occ.Start)
				ev.SetAllDayEndAt(occ.End)
			} else {
				ev.SetStartAt(occ.Start)
				ev.SetEndAt(occ.End)
			}
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
		if len(result.Failures) > 0 {
			w.Header().Set("X-Partial-Result", "true")
		}
		if _, err := w.Write([]byte(cal.Serialize())); err != nil {
			log.Printf("Writing ICS export: %v", err)
		}
	}
}
