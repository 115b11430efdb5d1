package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSeriesCreated        MessageType = "series.created"
	TypeSeriesUpdated        MessageType = "series.updated"
	TypeSeriesDeleted        MessageType = "series.deleted"
	TypeOccurrenceCancelled  MessageType = "occurrence.cancelled"
	TypeOccurrenceRestored   MessageType = "occurrence.restored"
	TypeOccurrenceOverridden MessageType = "occurrence.overridden"
	TypeOccurrenceReset      MessageType = "occurrence.reset"
	TypeEditConflictDetected MessageType = "data.conflict_detected"
	TypeNotification         MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SeriesPayload is the payload for series.* events. Clients re-query any
// visible range covering the series after receiving one.
type SeriesPayload struct {
	SeriesID   string `json:"series_id"`
	CalendarID string `json:"calendar_id"`
}

// OccurrencePayload is the payload for occurrence.* events. OriginalStart is
// the occurrence's key, not its displayed time.
type OccurrencePayload struct {
	SeriesID      string    `json:"series_id"`
	OriginalStart time.Time `json:"original_start"`
}

// EditConflictPayload is the payload for data.conflict_detected events: an
// occurrence key carrying both a cancellation and an override.
type EditConflictPayload struct {
	SeriesID      string    `json:"series_id"`
	OriginalStart time.Time `json:"original_start"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
