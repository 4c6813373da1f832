// Package signal connects the gateway to a signal-cli daemon over its
// JSON-RPC WebSocket. The daemon owns the Signal protocol; this channel
// exchanges JSON-RPC frames: "receive" notifications for inbound envelopes,
// "send" and "sendTyping" requests for outbound traffic.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
)

// groupChatPrefix marks group conversations in the surface-local chat id so
// outbound sends can route to groupId instead of recipient.
const groupChatPrefix = "group."

// Channel connects to a signal-cli JSON-RPC WebSocket endpoint.
type Channel struct {
	*channels.BaseChannel
	config    config.SignalConfig
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	nextID    atomic.Int64
}

// New creates a Signal channel from config.
func New(cfg config.SignalConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("signal url is required")
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("signal account is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("signal", msgBus, cfg.AllowFrom),
		config:      cfg,
	}, nil
}

// Start connects to the signal-cli socket and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting signal channel", "url", c.config.URL, "account", c.config.Account)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// The reconnect loop keeps trying; the daemon may come up later.
		slog.Warn("initial signal-cli connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop shuts down the Signal channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping signal channel")

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

// Send delivers an outbound message via the signal-cli "send" method.
// Media URLs are appended to the text; signal-cli attachments require local
// files, which outbound media links are not.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	text := msg.Content
	for _, att := range msg.Media {
		if text != "" {
			text += "\n"
		}
		text += att.URL
	}

	params := map[string]any{
		"account": c.config.Account,
		"message": text,
	}
	addRecipient(params, msg.ChatID)

	return c.writeRequest("send", params)
}

// StartTyping sends a typing indicator for the chat.
func (c *Channel) StartTyping(_ context.Context, chatID string) error {
	return c.sendTyping(chatID, false)
}

// StopTyping clears the typing indicator.
func (c *Channel) StopTyping(_ context.Context, chatID string) error {
	return c.sendTyping(chatID, true)
}

func (c *Channel) sendTyping(chatID string, stop bool) error {
	params := map[string]any{
		"account": c.config.Account,
		"stop":    stop,
	}
	addRecipient(params, chatID)
	return c.writeRequest("sendTyping", params)
}

// addRecipient routes to groupId or recipient based on the chat id shape.
func addRecipient(params map[string]any, chatID string) {
	if gid, ok := strings.CutPrefix(chatID, groupChatPrefix); ok {
		params["groupId"] = gid
		return
	}
	params["recipient"] = []string{chatID}
}

func (c *Channel) writeRequest(method string, params map[string]any) error {
	frame := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      fmt.Sprintf("clawrelay-%d", c.nextID.Add(1)),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal signal %s: %w", method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("signal-cli not connected")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signal %s: %w", method, err)
	}
	return nil
}

func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial signal-cli %s: %w", c.config.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	slog.Info("signal-cli connected", "url", c.config.URL)
	return nil
}

// listenLoop reads JSON-RPC frames with automatic reconnection.
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
			slog.Info("attempting signal-cli reconnect", "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.connect(); err != nil {
				slog.Warn("signal-cli reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}
			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("signal read error, will reconnect", "error", err)
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connected = false
			c.mu.Unlock()
			continue
		}

		var frame rpcFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid signal JSON-RPC frame", "error", err)
			continue
		}

		switch {
		case frame.Method == "receive":
			c.handleReceive(frame.Params)
		case frame.Error != nil:
			slog.Warn("signal-cli request failed",
				"id", string(frame.ID), "code", frame.Error.Code, "message", frame.Error.Message)
		}
	}
}

// handleReceive turns a receive notification into an inbound bus message.
func (c *Channel) handleReceive(params json.RawMessage) {
	var p receiveParams
	if err := json.Unmarshal(params, &p); err != nil {
		slog.Warn("invalid signal receive params", "error", err)
		return
	}
	env := p.Envelope
	if env == nil || env.DataMessage == nil {
		// Receipts, typing events and sync messages are not conversation input.
		return
	}

	senderID := env.SourceNumber
	if senderID == "" {
		senderID = env.Source
	}
	if senderID == "" {
		return
	}

	dm := env.DataMessage

	msg := bus.InboundMessage{
		SenderID:   senderID,
		ChatID:     senderID,
		ChatType:   "direct",
		Content:    dm.Message,
		Timestamp:  time.UnixMilli(env.Timestamp),
		SenderName: env.SourceName,
		MessageID:  fmt.Sprintf("%d", env.Timestamp),
	}

	if dm.GroupInfo != nil && dm.GroupInfo.GroupID != "" {
		msg.ChatType = "group"
		msg.GroupID = dm.GroupInfo.GroupID
		msg.GroupSubject = dm.GroupInfo.GroupName
		msg.ChatID = groupChatPrefix + dm.GroupInfo.GroupID
		msg.WasMentioned = mentionsAccount(dm.Mentions, c.config.Account)
	} else if c.HasAllowList() && !c.IsAllowed(senderID) {
		slog.Debug("signal message rejected by allowlist", "sender_id", senderID)
		return
	}

	if len(dm.Attachments) > 0 {
		att := dm.Attachments[0]
		// signal-cli stores attachments on disk by id.
		msg.MediaPath = att.StoredFilename
		msg.MediaType = mediaKind(att.ContentType)
	}

	if msg.Content == "" && msg.MediaPath == "" {
		return
	}

	slog.Debug("signal message received",
		"sender_id", senderID,
		"chat_type", msg.ChatType,
		"chat_id", msg.ChatID,
		"mentioned", msg.WasMentioned,
	)

	c.Publish(msg)
}

func mentionsAccount(mentions []mention, account string) bool {
	for _, m := range mentions {
		if m.Number == account || (m.UUID != "" && m.UUID == account) {
			return true
		}
	}
	return false
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
