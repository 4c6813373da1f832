package bus

import (
	"context"
	"log/slog"
	"sync"
)

const queueCapacity = 256

// MessageBus is the in-process broker between channels, the consumer loop
// and webchat event subscribers.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	subMu sync.RWMutex
	subs  map[string]EventHandler
}

// New creates a message bus with bounded queues.
func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, queueCapacity),
		outbound: make(chan OutboundMessage, queueCapacity),
		subs:     make(map[string]EventHandler),
	}
}

// PublishInbound hands a channel message to the consumer loop. A full queue
// drops the message rather than blocking the channel's receive loop.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound queue full, dropping message",
			"surface", msg.Surface, "chat_id", msg.ChatID)
	}
}

// ConsumeInbound blocks until a message arrives or the context ends.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

// PublishOutbound queues a reply for delivery.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound queue full, dropping reply",
			"surface", msg.Surface, "chat_id", msg.ChatID)
	}
}

// SubscribeOutbound blocks until a reply is queued or the context ends.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}

// Subscribe registers an event handler under an id, replacing any previous
// handler with the same id.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes an event handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subs, id)
}

// Broadcast delivers an event to every subscriber synchronously. Handlers
// must not block.
func (b *MessageBus) Broadcast(event Event) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, h := range b.subs {
		h(event)
	}
}
