// Package protocol defines the webchat WebSocket wire format: typed frames
// exchanged between the gateway and browser clients.
package protocol

import "encoding/json"

// Server-to-client event types.
const (
	EventChatMessage = "chat.message"
	EventChatTyping  = "chat.typing"
	EventHealth      = "health"
	EventError       = "error"
	EventShutdown    = "shutdown"
)

// Frame is the envelope for every webchat message in either direction.
// Type selects which payload fields are meaningful.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChatMessage is the payload of an EventChatMessage frame.
type ChatMessage struct {
	Content string   `json:"content"`
	Media   []string `json:"media,omitempty"`
}

// Typing is the payload of an EventChatTyping frame.
type Typing struct {
	Active bool `json:"active"`
}

// Error is the payload of an EventError frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame marshals a payload into a frame of the given type.
func NewFrame(frameType, id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: frameType, ID: id, Payload: raw}, nil
}
