package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/clawrelay/clawrelay/internal/bus"
)

// handleMessage annotates an incoming update and publishes it on the bus.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	user := message.From
	if user == nil {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}

	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"

	// DMs honor the allowlist at the edge; group messages always reach the
	// engine so activation and owner gating can apply.
	if !isGroup && c.HasAllowList() && !c.IsAllowed(senderID) {
		slog.Debug("telegram message rejected by allowlist",
			"user_id", userID, "username", user.Username)
		return
	}

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	senderName := user.FirstName
	if user.Username != "" {
		senderName = "@" + user.Username
	}

	msg := bus.InboundMessage{
		SenderID:   senderID,
		ChatID:     fmt.Sprintf("%d", message.Chat.ID),
		ChatType:   "direct",
		Content:    content,
		Timestamp:  time.Unix(int64(message.Date), 0),
		SenderName: senderName,
		MessageID:  fmt.Sprintf("%d", message.MessageID),
	}

	if isGroup {
		msg.ChatType = "group"
		msg.GroupID = fmt.Sprintf("%d", message.Chat.ID)
		msg.GroupSubject = message.Chat.Title
		msg.WasMentioned = c.detectMention(message)
	}

	c.resolveMedia(ctx, message, &msg)

	if msg.Content == "" && msg.MediaPath == "" && msg.Transcript == "" {
		slog.Debug("telegram message with no usable content skipped",
			"chat_id", message.Chat.ID)
		return
	}

	slog.Debug("telegram message received",
		"sender_id", senderID,
		"chat_type", msg.ChatType,
		"chat_id", msg.ChatID,
		"mentioned", msg.WasMentioned,
	)

	c.Publish(msg)
}

func (c *Channel) detectMention(msg *telego.Message) bool {
	return mentionsBot(msg, c.bot.Username())
}

// mentionsBot checks whether the message addresses the bot, either through
// an entity, a plain @mention in text or caption, or a reply to the bot.
func mentionsBot(msg *telego.Message, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	handle := "@" + strings.ToLower(botUsername)

	for _, pair := range []struct {
		entities []telego.MessageEntity
		text     string
	}{
		{msg.Entities, msg.Text},
		{msg.CaptionEntities, msg.Caption},
	} {
		if pair.text == "" {
			continue
		}
		for _, entity := range pair.entities {
			if entity.Type != "mention" && entity.Type != "bot_command" {
				continue
			}
			end := entity.Offset + entity.Length
			if entity.Offset < 0 || end > len(pair.text) {
				continue
			}
			if strings.Contains(strings.ToLower(pair.text[entity.Offset:end]), handle) {
				return true
			}
		}
		if strings.Contains(strings.ToLower(pair.text), handle) {
			return true
		}
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		if strings.EqualFold(msg.ReplyToMessage.From.Username, botUsername) {
			return true
		}
	}
	return false
}

// isServiceMessage reports whether the update is a join/leave/pin style
// system message with no user content.
func isServiceMessage(msg *telego.Message) bool {
	if msg.Text != "" || msg.Caption != "" {
		return false
	}
	if msg.Photo != nil || msg.Audio != nil || msg.Video != nil ||
		msg.Document != nil || msg.Voice != nil || msg.VideoNote != nil ||
		msg.Sticker != nil || msg.Animation != nil || msg.Contact != nil ||
		msg.Location != nil || msg.Poll != nil {
		return false
	}
	// No user content left: join/leave, title change, pin, and similar
	// chat service events.
	return true
}
