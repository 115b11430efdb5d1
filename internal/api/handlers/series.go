package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/calview/backend/internal/api/middleware"
	"github.com/calview/backend/internal/recurrence"
	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/storage/models"
	"github.com/calview/backend/internal/websocket"
)

// SeriesRequest is the payload for creating or updating a series.
type SeriesRequest struct {
	CalendarID      string  `json:"calendar_id"`
	Title           string  `json:"title"`
	Description     *string `json:"description,omitempty"`
	AnchorStart     string  `json:"anchor_start"`
	DurationMinutes int     `json:"duration_minutes"`
	Timezone        string  `json:"timezone"`
	RRule           *string `json:"rrule,omitempty"`
	RecurrenceEnd   *string `json:"recurrence_end,omitempty"`
}

// validate checks the request and converts it into a Series. The timezone is
// an opaque display attribute and is carried through unvalidated.
func (req *SeriesRequest) validate() (*models.Series, string) {
	if req.CalendarID == "" {
		return nil, "calendar_id is required"
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, "title is required"
	}
	if req.DurationMinutes < 0 {
		return nil, "duration_minutes must not be negative"
	}

	anchor, err := time.Parse(time.RFC3339, req.AnchorStart)
	if err != nil {
		return nil, "anchor_start must be an RFC3339 timestamp"
	}

	s := &models.Series{
		CalendarID:      req.CalendarID,
		Title:           req.Title,
		Description:     req.Description,
		AnchorStart:     anchor,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
		RRule:           req.RRule,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}

	if req.RecurrenceEnd != nil {
		end, err := time.Parse(time.RFC3339, *req.RecurrenceEnd)
		if err != nil {
			return nil, "recurrence_end must be an RFC3339 timestamp"
		}
		if end.Before(anchor) {
			return nil, "recurrence_end must not be before anchor_start"
		}
		s.RecurrenceEnd = &end
	}

	if s.IsRecurring() {
		if err := recurrence.Validate(*s.RRule); err != nil {
			return nil, "rrule is invalid: " + err.Error()
		}
	}

	return s, ""
}

// CreateSeries adds a new event series.
func CreateSeries(repo *storage.SeriesRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		s, errMsg := req.validate()
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		if err := repo.Create(r.Context(), s); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create series")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastSeriesChanged(websocket.TypeSeriesCreated, s.ID, s.CalendarID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(s)
	}
}

// ListSeries returns all series, optionally filtered by calendar.
func ListSeries(repo *storage.SeriesRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := repo.List(r.Context(), r.URL.Query().Get("calendarId"))
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query series")
			return
		}

		if series == nil {
			series = []models.Series{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(series)
	}
}

// GetSeries returns one series by id.
func GetSeries(repo *storage.SeriesRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := repo.GetByID(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query series")
			return
		}
		if s == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	}
}

// UpdateSeries replaces a series definition.
func UpdateSeries(repo *storage.SeriesRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req SeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		s, errMsg := req.validate()
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}
		s.ID = id

		existing, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query series")
			return
		}
		if existing == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		// calendar_id is immutable once created.
		if s.CalendarID != existing.CalendarID {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendar_id cannot be changed")
			return
		}
		s.CreatedAt = existing.CreatedAt

		if err := repo.Update(r.Context(), s); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update series")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastSeriesChanged(websocket.TypeSeriesUpdated, s.ID, s.CalendarID)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	}
}

// DeleteSeries removes a series and, via cascade, its exceptions and overrides.
func DeleteSeries(repo *storage.SeriesRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		s, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query series")
			return
		}
		if s == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}

		if err := repo.Delete(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete series")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastSeriesChanged(websocket.TypeSeriesDeleted, s.ID, s.CalendarID)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
