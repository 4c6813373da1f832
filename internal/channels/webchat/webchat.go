// Package webchat hosts the gateway's own WebSocket chat endpoint. Each
// connection is one direct conversation; the connection id doubles as the
// chat id so replies route back to the socket that asked.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/pkg/protocol"
)

const writeTimeout = 10 * time.Second

// Channel serves webchat clients over WebSocket.
type Channel struct {
	*channels.BaseChannel
	config     config.WebChatConfig
	httpServer *http.Server
	limiter    *channels.InboundRateLimiter

	mu      sync.RWMutex
	clients map[string]*client // chatID → connection
}

type client struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(ctx context.Context, frame protocol.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

// New creates a webchat channel from config.
func New(cfg config.WebChatConfig, msgBus *bus.MessageBus) *Channel {
	return &Channel{
		BaseChannel: channels.NewBaseChannel("webchat", msgBus, nil),
		config:      cfg,
		limiter:     channels.NewInboundRateLimiter(),
		clients:     make(map[string]*client),
	}
}

// Start listens on the configured host/port and accepts WebSocket upgrades
// at /ws.
func (c *Channel) Start(ctx context.Context) error {
	host := c.config.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.config.Port
	if port == 0 {
		port = 18789
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webchat listen on %s: %w", addr, err)
	}

	go func() {
		if err := c.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webchat server error", "error", err)
		}
	}()

	c.SetRunning(true)
	slog.Info("webchat listening", "addr", addr)
	return nil
}

// Stop shuts the server down and closes active connections.
func (c *Channel) Stop(ctx context.Context) error {
	slog.Info("stopping webchat")
	c.SetRunning(false)

	c.mu.Lock()
	for _, cl := range c.clients {
		_ = cl.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
	c.clients = make(map[string]*client)
	c.mu.Unlock()

	if c.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return c.httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// Send delivers an outbound message to the connection matching the chat id.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	cl := c.clientFor(msg.ChatID)
	if cl == nil {
		return fmt.Errorf("webchat client %s not connected", msg.ChatID)
	}

	payload := protocol.ChatMessage{Content: msg.Content}
	for _, att := range msg.Media {
		payload.Media = append(payload.Media, att.URL)
	}
	frame, err := protocol.NewFrame(protocol.EventChatMessage, uuid.NewString(), payload)
	if err != nil {
		return err
	}
	return cl.write(ctx, frame)
}

// StartTyping pushes a typing-on frame to the client.
func (c *Channel) StartTyping(ctx context.Context, chatID string) error {
	return c.sendTyping(ctx, chatID, true)
}

// StopTyping pushes a typing-off frame to the client.
func (c *Channel) StopTyping(ctx context.Context, chatID string) error {
	return c.sendTyping(ctx, chatID, false)
}

func (c *Channel) sendTyping(ctx context.Context, chatID string, active bool) error {
	cl := c.clientFor(chatID)
	if cl == nil {
		return nil
	}
	frame, err := protocol.NewFrame(protocol.EventChatTyping, "", protocol.Typing{Active: active})
	if err != nil {
		return err
	}
	return cl.write(ctx, frame)
}

func (c *Channel) clientFor(chatID string) *client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clients[chatID]
}

// handleWS authenticates and upgrades a connection, then reads frames until
// the client goes away.
func (c *Channel) handleWS(w http.ResponseWriter, r *http.Request) {
	if !c.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	if remoteHost == "" {
		remoteHost = r.RemoteAddr
	}
	if !c.limiter.Allow(remoteHost) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The token is the auth boundary; webchat serves non-browser
		// clients and local UIs alike.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("webchat accept failed", "error", err)
		return
	}

	id := r.URL.Query().Get("chat")
	if id == "" {
		id = uuid.NewString()
	}

	cl := &client{id: id, conn: conn}
	c.mu.Lock()
	if prev, ok := c.clients[id]; ok {
		_ = prev.conn.Close(websocket.StatusPolicyViolation, "replaced by new connection")
	}
	c.clients[id] = cl
	c.mu.Unlock()

	slog.Info("webchat client connected", "chat_id", id, "remote", remoteHost)
	c.readLoop(r.Context(), cl, remoteHost)

	c.mu.Lock()
	if c.clients[id] == cl {
		delete(c.clients, id)
	}
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	slog.Info("webchat client disconnected", "chat_id", id)
}

func (c *Channel) authorized(r *http.Request) bool {
	if c.config.Token == "" {
		// No token configured: only loopback clients are accepted.
		host, _, _ := net.SplitHostPort(r.RemoteAddr)
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return token == c.config.Token
}

func (c *Channel) readLoop(ctx context.Context, cl *client, remoteHost string) {
	for {
		_, data, err := cl.conn.Read(ctx)
		if err != nil {
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.writeError(ctx, cl, "bad_frame", "invalid JSON frame")
			continue
		}

		switch frame.Type {
		case protocol.MethodPing:
			pong, err := protocol.NewFrame(protocol.EventHealth, frame.ID, map[string]string{"status": "ok"})
			if err == nil {
				_ = cl.write(ctx, pong)
			}

		case protocol.MethodChatSend:
			if !c.limiter.Allow(remoteHost) {
				c.writeError(ctx, cl, "rate_limited", "too many messages, slow down")
				continue
			}
			var send protocol.ChatSend
			if err := json.Unmarshal(frame.Payload, &send); err != nil || strings.TrimSpace(send.Content) == "" {
				c.writeError(ctx, cl, "bad_payload", "chat.send requires non-empty content")
				continue
			}
			messageID := frame.ID
			if messageID == "" {
				messageID = uuid.NewString()
			}
			c.Publish(bus.InboundMessage{
				SenderID:   cl.id,
				ChatID:     cl.id,
				ChatType:   "direct",
				Content:    send.Content,
				Timestamp:  time.Now(),
				SenderName: send.Sender,
				MessageID:  messageID,
			})

		default:
			c.writeError(ctx, cl, "unknown_type", fmt.Sprintf("unsupported frame type %q", frame.Type))
		}
	}
}

func (c *Channel) writeError(ctx context.Context, cl *client, code, message string) {
	frame, err := protocol.NewFrame(protocol.EventError, "", protocol.Error{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = cl.write(ctx, frame)
}
