package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/calview/backend/internal/api/middleware"
	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/storage/models"
	"github.com/calview/backend/internal/websocket"
)

// OverrideRequest is the payload for upserting an occurrence override. All
// fields are optional; the occurrence key comes from the URL.
type OverrideRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	StartOverride   *string `json:"start_override,omitempty"`
	EndOverride     *string `json:"end_override,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	AllDay          bool    `json:"all_day"`
}

// occurrenceKey extracts the (seriesID, originalStart) key from the request
// path, verifying the series exists. The original start is the instant the
// recurrence rule produced, so it is the caller's job to pass the unmoved
// time even when editing an already-moved occurrence.
func occurrenceKey(r *http.Request, seriesRepo *storage.SeriesRepository) (*models.Series, time.Time, string) {
	vars := mux.Vars(r)

	originalStart, err := time.Parse(time.RFC3339, vars["originalStart"])
	if err != nil {
		return nil, time.Time{}, "originalStart must be an RFC3339 timestamp"
	}

	s, err := seriesRepo.GetByID(r.Context(), vars["id"])
	if err != nil {
		return nil, time.Time{}, "failed to query series"
	}
	if s == nil {
		return nil, time.Time{}, "series not found"
	}

	return s, models.Canonical(originalStart), ""
}

// PutException cancels one occurrence of a series.
func PutException(seriesRepo *storage.SeriesRepository, repo *storage.ExceptionRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, originalStart, errMsg := occurrenceKey(r, seriesRepo)
		if errMsg == "series not found" {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		ex := &models.Exception{SeriesID: s.ID, OriginalStart: originalStart}
		if err := repo.Put(r.Context(), ex); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to record cancellation")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastOccurrenceEdited(websocket.TypeOccurrenceCancelled, s.ID, originalStart)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(ex)
	}
}

// DeleteException restores a cancelled occurrence.
func DeleteException(seriesRepo *storage.SeriesRepository, repo *storage.ExceptionRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, originalStart, errMsg := occurrenceKey(r, seriesRepo)
		if errMsg == "series not found" {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		if err := repo.Delete(r.Context(), s.ID, originalStart); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Exception not found")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastOccurrenceEdited(websocket.TypeOccurrenceRestored, s.ID, originalStart)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ListExceptions returns all cancellations for a series.
func ListExceptions(seriesRepo *storage.SeriesRepository, repo *storage.ExceptionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		s, err := seriesRepo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query series")
			return
		}
		if s == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}

		exceptions, err := repo.ListBySeries(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query exceptions")
			return
		}
		if exceptions == nil {
			exceptions = []models.Exception{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(exceptions)
	}
}

// PutOverride upserts the override for one occurrence. The override's time
// shift is bounded: the loader pads its fetch window by the same bound, so an
// override accepted here can never relocate an occurrence past what a range
// query will see.
func PutOverride(seriesRepo *storage.SeriesRepository, repo *storage.OverrideRepository, exceptions *storage.ExceptionRepository, maxShift time.Duration, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, originalStart, errMsg := occurrenceKey(r, seriesRepo)
		if errMsg == "series not found" {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		var req OverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		ov := &models.Override{
			SeriesID:        s.ID,
			OriginalStart:   originalStart,
			Title:           req.Title,
			Description:     req.Description,
			DurationMinutes: req.DurationMinutes,
			AllDay:          req.AllDay,
		}

		if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "duration_minutes must not be negative")
			return
		}

		if req.StartOverride != nil {
			t, err := time.Parse(time.RFC3339, *req.StartOverride)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_override must be an RFC3339 timestamp")
				return
			}
			t = models.Canonical(t)

			shift := t.Sub(originalStart)
			if shift < 0 {
				shift = -shift
			}
			if shift > maxShift {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation,
					fmt.Sprintf("start_override may move an occurrence at most %s from its original start", maxShift))
				return
			}
			ov.StartOverride = &t
		}

		if req.EndOverride != nil {
			t, err := time.Parse(time.RFC3339, *req.EndOverride)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_override must be an RFC3339 timestamp")
				return
			}
			t = models.Canonical(t)

			finalStart := originalStart
			if ov.StartOverride != nil {
				finalStart = *ov.StartOverride
			}
			if t.Before(finalStart) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_override must not be before the occurrence start")
				return
			}
			ov.EndOverride = &t
		}

		// An occurrence key carries an exception or an override, never both.
		cancelled, err := exceptions.Exists(r.Context(), s.ID, originalStart)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query exceptions")
			return
		}
		if cancelled {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Occurrence is cancelled; remove the exception first")
			return
		}

		if err := repo.Put(r.Context(), ov); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save override")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastOccurrenceEdited(websocket.TypeOccurrenceOverridden, s.ID, originalStart)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ov)
	}
}

// GetOverride returns the override for one occurrence key.
func GetOverride(seriesRepo *storage.SeriesRepository, repo *storage.OverrideRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, originalStart, errMsg := occurrenceKey(r, seriesRepo)
		if errMsg == "series not found" {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		ov, err := repo.GetByKey(r.Context(), s.ID, originalStart)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query override")
			return
		}
		if ov == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Override not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ov)
	}
}

// DeleteOverride removes an override, restoring the series defaults for the
// occurrence.
func DeleteOverride(seriesRepo *storage.SeriesRepository, repo *storage.OverrideRepository, broadcaster *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, originalStart, errMsg := occurrenceKey(r, seriesRepo)
		if errMsg == "series not found" {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Series not found")
			return
		}
		if errMsg != "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, errMsg)
			return
		}

		if err := repo.Delete(r.Context(), s.ID, originalStart); err != nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Override not found")
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastOccurrenceEdited(websocket.TypeOccurrenceReset, s.ID, originalStart)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
