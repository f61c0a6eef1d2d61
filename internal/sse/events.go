// Package sse implements Server-Sent Events for real-time rock updates.
package sse

import (
	"time"

	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventRockCreated is sent after a rock is persisted.
	EventRockCreated EventType = "rock.created"
	// EventRockDeleted is sent after a rock is destroyed by its owner.
	EventRockDeleted EventType = "rock.deleted"

	// EventHeartbeat keeps idle connections open through proxies.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// RockEventData is the payload of rock.created. It carries the same shape
// as the REST API so clients can render it directly.
type RockEventData struct {
	Rock dto.Rock `json:"rock"`
}

// RockDeletedEventData is the payload of rock.deleted.
type RockDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	RockID    int64     `json:"rock_id"`
	OwnerID   string    `json:"owner_id"`
}

// HeartbeatEventData is the payload of heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// ConnectedEventData is the payload of the connected event.
type ConnectedEventData struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// NewRockCreatedEvent creates a rock.created event.
func NewRockCreatedEvent(rock dto.Rock) Event {
	return Event{
		Type:      EventRockCreated,
		Data:      RockEventData{Rock: rock},
		Timestamp: time.Now(),
	}
}

// NewRockDeletedEvent creates a rock.deleted event.
func NewRockDeletedEvent(rockID int64, ownerID string) Event {
	now := time.Now()
	return Event{
		Type: EventRockDeleted,
		Data: RockDeletedEventData{
			DeletedAt: now,
			RockID:    rockID,
			OwnerID:   ownerID,
		},
		Timestamp: now,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}

func newConnectedEvent(clientID string) Event {
	return Event{
		Type: EventConnected,
		Data: ConnectedEventData{
			ClientID: clientID,
			Message:  "SSE connection established",
		},
		Timestamp: time.Now(),
	}
}
