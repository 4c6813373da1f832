// Package bus moves messages between chat surfaces and the reply engine.
// Channels publish inbound messages; the gateway consumer runs the engine
// and publishes outbound replies; the channel manager dispatches them.
package bus

import "time"

// InboundMessage is a message received from a chat surface.
type InboundMessage struct {
	Surface   string    `json:"surface"`
	SenderID  string    `json:"sender_id"`
	ChatID    string    `json:"chat_id"`
	ChatType  string    `json:"chat_type"` // "direct" or "group"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	SenderName string `json:"sender_name,omitempty"`
	IsOwner    bool   `json:"is_owner,omitempty"`

	// Group metadata.
	GroupID      string   `json:"group_id,omitempty"`
	GroupSubject string   `json:"group_subject,omitempty"`
	GroupMembers []string `json:"group_members,omitempty"`
	WasMentioned bool     `json:"was_mentioned,omitempty"`

	// Attachment downloaded by the channel, if any.
	MediaPath string `json:"media_path,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`

	// Transcript of an inbound voice note, when transcription ran.
	Transcript string `json:"transcript,omitempty"`

	// MessageID is the surface-native id, used for dedupe.
	MessageID string `json:"message_id,omitempty"`
}

// OutboundMessage is a reply to deliver to a chat surface.
type OutboundMessage struct {
	Surface string            `json:"surface"`
	ChatID  string            `json:"chat_id"`
	Content string            `json:"content"`
	Media   []MediaAttachment `json:"media,omitempty"`
}

// MediaAttachment is a file or URL sent with an outbound message.
type MediaAttachment struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Event is a gateway-side event broadcast to webchat clients.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast and subscription so the webchat
// server and the consumer loop stay decoupled from the concrete bus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
