// Package discord connects the gateway to Discord using discordgo gateway
// events. Guild channels are treated as group chats; DMs as direct chats.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
)

// messageLimit is Discord's per-message content cap.
const messageLimit = 2000

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string // populated on start
}

// New creates a Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message, chunked at Discord's length limit.
// Media attachments are appended as plain URLs; Discord unfurls them.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for discord send")
	}

	content := msg.Content
	for _, att := range msg.Media {
		if content != "" {
			content += "\n"
		}
		content += att.URL
	}

	for len(content) > 0 {
		chunk := content
		if len(chunk) > messageLimit {
			cutAt := messageLimit
			if idx := strings.LastIndexByte(content[:messageLimit], '\n'); idx > messageLimit/2 {
				cutAt = idx + 1
			}
			chunk = content[:cutAt]
			content = content[cutAt:]
		} else {
			content = ""
		}
		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// StartTyping triggers Discord's typing indicator; it expires after ~10s so
// callers refresh it while a reply is in flight.
func (c *Channel) StartTyping(_ context.Context, chatID string) error {
	return c.session.ChannelTyping(chatID)
}

// StopTyping is a no-op; Discord clears the indicator when a message lands.
func (c *Channel) StopTyping(_ context.Context, _ string) error { return nil }

// handleMessage annotates an incoming Discord message and publishes it.
func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}

	senderID := m.Author.ID
	isDM := m.GuildID == ""

	if isDM && c.HasAllowList() && !c.IsAllowed(senderID) {
		slog.Debug("discord message rejected by allowlist",
			"user_id", senderID, "username", m.Author.Username)
		return
	}

	content := m.Content

	msg := bus.InboundMessage{
		SenderID:   senderID,
		ChatID:     m.ChannelID,
		ChatType:   "direct",
		Content:    content,
		Timestamp:  m.Timestamp,
		SenderName: resolveDisplayName(m),
		MessageID:  m.ID,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if !isDM {
		msg.ChatType = "group"
		msg.GroupID = m.ChannelID
		msg.WasMentioned = c.wasMentioned(m)
	}

	// First attachment becomes the media reference; Discord serves files
	// over CDN URLs, so no local download is needed.
	if len(m.Attachments) > 0 {
		att := m.Attachments[0]
		msg.MediaURL = att.URL
		msg.MediaType = mediaKind(att.ContentType)
	}

	if msg.Content == "" && msg.MediaURL == "" {
		return
	}

	slog.Debug("discord message received",
		"sender_id", senderID,
		"chat_type", msg.ChatType,
		"channel_id", m.ChannelID,
		"mentioned", msg.WasMentioned,
	)

	c.Publish(msg)
}

func (c *Channel) wasMentioned(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == c.botUserID {
			return true
		}
	}
	return false
}

// resolveDisplayName returns the best available name for a message author:
// server nickname, then global display name, then username.
func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// mediaKind maps a MIME type to the coarse media categories the reply
// engine understands.
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
