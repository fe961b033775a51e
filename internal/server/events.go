// Package server defines the event protocol spoken over each WebSocket
// connection: a symmetric JSON envelope carrying a tagged event name and an
// event-specific payload.
package server

import (
	"encoding/json"
	"time"
)

// Client → server event names.
const (
	EventJoin        = "join"
	EventChatMessage = "chat-message"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
)

// Server → client event names. EventChatMessage is shared by both directions.
const (
	EventPresenceUpdate = "presence-update"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventTypingUpdate   = "typing-update"
	EventError          = "error"
)

// Envelope is the wire frame exchanged in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatSubmission is the client payload of a chat-message event. Recipient is
// only set for private messages.
type ChatSubmission struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Recipient string `json:"recipient,omitempty"`
}

// ChatDelivery is the server payload of a delivered chat-message event.
type ChatDelivery struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Recipient string    `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorNotice is the payload of an error event.
type ErrorNotice struct {
	Message string `json:"message"`
}

// encodeEvent renders a complete outbound frame. The payload types above and
// string/[]string lists are the only inputs, so encoding cannot realistically
// fail; errors are still returned for the callers to log.
func encodeEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}
