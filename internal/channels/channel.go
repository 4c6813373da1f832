// Package channels connects chat surfaces (Telegram, Discord, Signal,
// WebChat) to the reply engine through the message bus. Each adapter turns
// platform events into bus.InboundMessage and delivers bus.OutboundMessage
// back to the platform.
package channels

import (
	"context"
	"strings"

	"github.com/clawrelay/clawrelay/internal/bus"
)

// Channel is implemented by every surface adapter.
type Channel interface {
	// Name returns the surface identifier ("telegram", "discord", ...).
	Name() string

	// Start begins receiving messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop shuts the adapter down.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the surface.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the adapter is receiving messages.
	IsRunning() bool

	// IsAllowed checks the sender against the surface's allowlist.
	IsAllowed(senderID string) bool
}

// TypingChannel is implemented by surfaces that can show a typing
// indicator. The consumer loop re-invokes StartTyping periodically while a
// run is in flight; indicators on most surfaces expire on their own.
type TypingChannel interface {
	Channel
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error
}

// BaseChannel carries the state every adapter shares. Adapters embed it.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	dedupe    *bus.Dedupe
	running   bool
	allowList []string
}

// NewBaseChannel builds the shared adapter state.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		dedupe:    bus.NewDedupe(),
		allowList: allowList,
	}
}

// Name returns the surface name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning reports the running state.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// Publish forwards an inbound message to the bus unless its surface-native
// id was already seen.
func (c *BaseChannel) Publish(msg bus.InboundMessage) {
	if msg.MessageID != "" && c.dedupe.Seen(c.name+":"+msg.MessageID) {
		return
	}
	msg.Surface = c.name
	c.bus.PublishInbound(msg)
}

// HasAllowList reports whether an allowlist is configured.
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks a sender against the allowlist. An empty allowlist
// allows everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	return AllowListMatch(c.allowList, senderID)
}

// AllowListMatch reports whether a sender id matches any allowlist entry.
// Compound ids of the form "123456|username" match on either part, entries
// may carry a leading "@", and phone-number entries are compared in
// normalized E.164 form.
func AllowListMatch(allowList []string, senderID string) bool {
	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		if senderID == allowed ||
			senderID == trimmed ||
			idPart == allowed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && (senderID == allowedUser || userPart == allowedUser)) ||
			(userPart != "" && (userPart == trimmed || userPart == allowedID)) {
			return true
		}

		if normalizePhone(allowedID) != "" && normalizePhone(allowedID) == normalizePhone(idPart) {
			return true
		}
	}
	return false
}

// normalizePhone reduces a phone-shaped id to +digits. Non-phone ids return
// the empty string.
func normalizePhone(id string) string {
	if id == "" || id[0] != '+' {
		return ""
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range id[1:] {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separators are dropped
		default:
			return ""
		}
	}
	if b.Len() < 2 {
		return ""
	}
	return b.String()
}
