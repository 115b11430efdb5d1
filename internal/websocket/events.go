package websocket

import (
	"log"
	"time"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastSeriesChanged sends a series.created/updated/deleted event.
func (b *EventBroadcaster) BroadcastSeriesChanged(msgType MessageType, seriesID, calendarID string) {
	b.broadcast(NewMessage(msgType, SeriesPayload{
		SeriesID:   seriesID,
		CalendarID: calendarID,
	}))
}

// BroadcastOccurrenceEdited sends an occurrence.* event for the given key.
func (b *EventBroadcaster) BroadcastOccurrenceEdited(msgType MessageType, seriesID string, originalStart time.Time) {
	b.broadcast(NewMessage(msgType, OccurrencePayload{
		SeriesID:      seriesID,
		OriginalStart: originalStart,
	}))
}

// BroadcastEditConflict reports an occurrence key that carries both an
// exception and an override.
func (b *EventBroadcaster) BroadcastEditConflict(seriesID string, originalStart time.Time) {
	b.broadcast(NewMessage(TypeEditConflictDetected, EditConflictPayload{
		SeriesID:      seriesID,
		OriginalStart: originalStart,
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:   level,
		Title:   title,
		Message: message,
	}))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(data)
}
