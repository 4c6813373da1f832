// Package whatsapp connects the gateway to a WhatsApp web bridge over
// WebSocket. The bridge (whatsapp-web.js or similar) handles the WhatsApp
// protocol; this channel exchanges JSON messages with it.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
)

// Channel connects to a WhatsApp bridge via WebSocket.
type Channel struct {
	*channels.BaseChannel
	config    config.WhatsAppConfig
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// bridgeMessage is the JSON shape exchanged with the bridge in both
// directions.
type bridgeMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	From     string `json:"from,omitempty"`
	FromName string `json:"from_name,omitempty"`
	Chat     string `json:"chat,omitempty"`
	To       string `json:"to,omitempty"`
	Content  string `json:"content,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Media    string `json:"media,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Mentioned bool  `json:"mentioned,omitempty"`
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom),
		config:      cfg,
	}, nil
}

// Start connects to the bridge and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop shuts the channel down.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to the bridge. Media URLs ride along so
// the bridge can attach them natively.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	out := bridgeMessage{
		Type:    "message",
		To:      msg.ChatID,
		Content: msg.Content,
	}
	if len(msg.Media) > 0 {
		out.Media = msg.Media[0].URL
	}
	return c.writeJSON(out)
}

// StartTyping asks the bridge to show the composing state.
func (c *Channel) StartTyping(_ context.Context, chatID string) error {
	return c.writeJSON(bridgeMessage{Type: "typing", To: chatID})
}

// StopTyping clears the composing state.
func (c *Channel) StopTyping(_ context.Context, chatID string) error {
	return c.writeJSON(bridgeMessage{Type: "typing_stop", To: chatID})
}

func (c *Channel) writeJSON(msg bridgeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads bridge messages with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}
			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()
			continue
		}

		var msg bridgeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("invalid whatsapp bridge JSON", "error", err)
			continue
		}
		if msg.Type == "message" {
			c.handleIncoming(msg)
		}
	}
}

// handleIncoming publishes a bridge message on the bus. Group chats carry a
// chat id ending in "@g.us".
func (c *Channel) handleIncoming(m bridgeMessage) {
	if m.From == "" {
		return
	}

	chatID := m.Chat
	if chatID == "" {
		chatID = m.From
	}
	isGroup := strings.HasSuffix(chatID, "@g.us")

	if !isGroup && c.HasAllowList() && !c.IsAllowed(m.From) {
		slog.Debug("whatsapp message rejected by allowlist", "sender_id", m.From)
		return
	}

	msg := bus.InboundMessage{
		SenderID:   m.From,
		ChatID:     chatID,
		ChatType:   "direct",
		Content:    m.Content,
		Timestamp:  time.Now(),
		SenderName: m.FromName,
		MessageID:  m.ID,
	}

	if isGroup {
		msg.ChatType = "group"
		msg.GroupID = chatID
		msg.GroupSubject = m.Subject
		msg.WasMentioned = m.Mentioned
	}

	if m.Media != "" {
		msg.MediaPath = m.Media
		msg.MediaType = mediaKind(m.MimeType)
	}

	if msg.Content == "" && msg.MediaPath == "" {
		return
	}

	slog.Debug("whatsapp message received",
		"sender_id", m.From,
		"chat_type", msg.ChatType,
		"chat_id", chatID,
	)

	c.Publish(msg)
}

func mediaKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}
