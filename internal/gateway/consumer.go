// Package gateway binds the message bus to the reply engine: it consumes
// inbound messages, runs them through autoreply, and publishes the resulting
// payloads back for delivery.
package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clawrelay/clawrelay/internal/autoreply"
	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/tracing"
)

// maxConcurrentTurns bounds in-flight replies across all chats. Per-session
// ordering is enforced by the runtime's lanes, not here.
const maxConcurrentTurns = 16

// Consumer drains the inbound bus through the reply engine.
type Consumer struct {
	cfg     *config.Config
	bus     *bus.MessageBus
	engine  *autoreply.Engine
	manager *channels.Manager
}

// NewConsumer creates a gateway consumer.
func NewConsumer(cfg *config.Config, msgBus *bus.MessageBus, engine *autoreply.Engine, manager *channels.Manager) *Consumer {
	return &Consumer{cfg: cfg, bus: msgBus, engine: engine, manager: manager}
}

// Run consumes inbound messages until the context ends. Each message is
// handled on its own goroutine, bounded by a semaphore.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("gateway consumer started")

	sem := make(chan struct{}, maxConcurrentTurns)
	var wg sync.WaitGroup

	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			wg.Wait()
			slog.Info("gateway consumer stopped")
			return ctx.Err()
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(m bus.InboundMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			c.handle(ctx, m)
		}(msg)
	}
}

func (c *Consumer) handle(ctx context.Context, m bus.InboundMessage) {
	msgCtx := c.buildContext(m)

	if !c.engine.ShouldEngage(msgCtx) {
		slog.Debug("message not engaged",
			"surface", m.Surface, "chat_id", m.ChatID, "mentioned", m.WasMentioned)
		return
	}

	ctx, span := tracing.StartTurn(ctx, m.Surface, m.ChatID, m.SenderID)
	opts := c.buildOptions(ctx, m)

	payloads, err := c.engine.GetReply(ctx, msgCtx, opts)
	tracing.EndTurn(span, err)
	if err != nil {
		slog.Error("reply failed",
			"surface", m.Surface, "chat_id", m.ChatID, "error", err)
		return
	}

	for _, p := range payloads {
		if p.IsEmpty() {
			continue
		}
		out := bus.OutboundMessage{
			Surface: m.Surface,
			ChatID:  m.ChatID,
			Content: p.Text,
		}
		for _, url := range p.MediaURLs {
			out.Media = append(out.Media, bus.MediaAttachment{URL: url})
		}
		c.bus.PublishOutbound(out)
	}
}

// buildContext maps a bus message onto the engine's view of a turn.
func (c *Consumer) buildContext(m bus.InboundMessage) autoreply.MsgContext {
	return autoreply.MsgContext{
		Body:         m.Content,
		From:         m.SenderID,
		To:           m.ChatID,
		Surface:      m.Surface,
		ChatType:     m.ChatType,
		Timestamp:    m.Timestamp,
		SenderName:   m.SenderName,
		IsOwner:      c.isOwner(m),
		GroupID:      m.GroupID,
		GroupSubject: m.GroupSubject,
		GroupMembers: m.GroupMembers,
		WasMentioned: m.WasMentioned,
		MediaPath:    m.MediaPath,
		MediaType:    m.MediaType,
		MediaURL:     m.MediaURL,
		Transcript:   m.Transcript,
	}
}

// isOwner checks the sender against the surface's allowFrom list. With no
// list configured, direct-chat senders are treated as the owner; group
// senders are not.
func (c *Consumer) isOwner(m bus.InboundMessage) bool {
	allowFrom := c.cfg.AllowFromFor(m.Surface)
	if len(allowFrom) == 0 {
		return m.ChatType != "group"
	}
	return channels.AllowListMatch(allowFrom, m.SenderID)
}

// buildOptions wires the surface's typing indicator into the engine hooks.
func (c *Consumer) buildOptions(ctx context.Context, m bus.InboundMessage) autoreply.Options {
	var opts autoreply.Options

	ch, ok := c.manager.Get(m.Surface)
	if !ok {
		return opts
	}
	typing, ok := ch.(channels.TypingChannel)
	if !ok {
		return opts
	}

	chatID := m.ChatID
	opts.StartTyping = func() error { return typing.StartTyping(ctx, chatID) }
	opts.StopTyping = func() error { return typing.StopTyping(ctx, chatID) }
	return opts
}
