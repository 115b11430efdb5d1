// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/calview/backend/internal/api/handlers"
	"github.com/calview/backend/internal/api/middleware"
	"github.com/calview/backend/internal/occurrence"
	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/websocket"
)

// Deps bundles everything the router hands to the handlers.
type Deps struct {
	DB         *storage.DB
	Series     *storage.SeriesRepository
	Exceptions *storage.ExceptionRepository
	Overrides  *storage.OverrideRepository
	Loader     *occurrence.Loader
	Hub        *websocket.Hub
	MaxShift   time.Duration
	StaticDir  string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	var broadcaster *websocket.EventBroadcaster
	if deps.Hub != nil {
		broadcaster = websocket.NewEventBroadcaster(deps.Hub)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(deps.DB, deps.Hub)).Methods("GET")

	// WebSocket endpoint
	if deps.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")
	}

	// Occurrence query endpoints
	api.HandleFunc("/events/range", handlers.GetEventsRange(deps.Loader)).Methods("GET")
	api.HandleFunc("/events/export.ics", handlers.ExportEventsICS(deps.Loader)).Methods("GET")

	// Series authoring endpoints
	api.HandleFunc("/series", handlers.ListSeries(deps.Series)).Methods("GET")
	api.HandleFunc("/series", handlers.CreateSeries(deps.Series, broadcaster)).Methods("POST")
	api.HandleFunc("/series/{id}", handlers.GetSeries(deps.Series)).Methods("GET")
	api.HandleFunc("/series/{id}", handlers.UpdateSeries(deps.Series, broadcaster)).Methods("PUT")
	api.HandleFunc("/series/{id}", handlers.DeleteSeries(deps.Series, broadcaster)).Methods("DELETE")

	// Per-occurrence cancellation endpoints
	api.HandleFunc("/series/{id}/exceptions", handlers.ListExceptions(deps.Series, deps.Exceptions)).Methods("GET")
	api.HandleFunc("/series/{id}/exceptions/{originalStart}", handlers.PutException(deps.Series, deps.Exceptions, broadcaster)).Methods("PUT")
	api.HandleFunc("/series/{id}/exceptions/{originalStart}", handlers.DeleteException(deps.Series, deps.Exceptions, broadcaster)).Methods("DELETE")

	// Per-occurrence override endpoints
	api.HandleFunc("/series/{id}/overrides/{originalStart}", handlers.GetOverride(deps.Series, deps.Overrides)).Methods("GET")
	api.HandleFunc("/series/{id}/overrides/{originalStart}", handlers.PutOverride(deps.Series, deps.Overrides, deps.Exceptions, deps.MaxShift, broadcaster)).Methods("PUT")
	api.HandleFunc("/series/{id}/overrides/{originalStart}", handlers.DeleteOverride(deps.Series, deps.Overrides, broadcaster)).Methods("DELETE")

	// Serve static frontend files
	if deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
