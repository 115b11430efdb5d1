package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/calview/backend/internal/storage"
	"github.com/calview/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	DBConnected      bool `json:"db_connected"`
	SeriesCount      int  `json:"series_count"`
	ExceptionCount   int  `json:"exception_count"`
	OverrideCount    int  `json:"override_count"`
	ConnectedClients int  `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		response := StatusResponse{
			DBConnected: db.Ping() == nil,
		}

		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_series").Scan(&response.SeriesCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_exceptions").Scan(&response.ExceptionCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_overrides").Scan(&response.OverrideCount)

		if hub != nil {
			response.ConnectedClients = hub.ClientCount()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
