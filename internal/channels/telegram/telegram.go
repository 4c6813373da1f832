// Package telegram connects the gateway to the Telegram Bot API using long
// polling via telego. The adapter stays thin: it annotates inbound updates
// (sender, group subject, mention flag, media) and publishes them on the bus;
// engagement and reply policy live in the reply engine.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/transcribe"
)

// messageLimit is Telegram's hard cap per message; long replies are split.
const messageLimit = 4096

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot         *telego.Bot
	config      config.TelegramConfig
	transcriber *transcribe.Transcriber
	pollCancel  context.CancelFunc
	pollDone    chan struct{}
}

// New creates a Telegram channel from config. The transcriber is optional;
// when nil, voice notes are forwarded without a transcript.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus, transcriber *transcribe.Transcriber) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
		transcriber: transcriber,
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				} else {
					slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
				}
			}
		}
	}()

	return nil
}

// Stop shuts down the bot by cancelling the polling context and waiting for
// the polling goroutine to exit so Telegram releases the getUpdates lock.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// Send delivers an outbound message, splitting text over Telegram's length
// limit and attaching media by URL.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	chatIDObj := tu.ID(chatID)

	text := msg.Content
	for i, att := range msg.Media {
		photo := tu.Photo(chatIDObj, telego.InputFile{URL: att.URL})
		// First attachment carries the text as its caption when it fits.
		if i == 0 && text != "" && len(text) <= 1024 {
			photo.Caption = text
			text = ""
		} else if att.Caption != "" {
			photo.Caption = att.Caption
		}
		if _, err := c.bot.SendPhoto(ctx, photo); err != nil {
			slog.Warn("telegram photo send failed, falling back to link",
				"chat_id", msg.ChatID, "error", err)
			if text != "" {
				text += "\n"
			}
			text += att.URL
		}
	}

	for _, chunk := range splitMessage(text, messageLimit) {
		if _, err := c.bot.SendMessage(ctx, tu.Message(chatIDObj, chunk)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// StartTyping sends a typing chat action. Telegram expires the indicator
// after a few seconds, so callers refresh it periodically.
func (c *Channel) StartTyping(ctx context.Context, chatIDStr string) error {
	chatID, err := parseChatID(chatIDStr)
	if err != nil {
		return err
	}
	return c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping))
}

// StopTyping is a no-op; Telegram drops the indicator on its own.
func (c *Channel) StopTyping(_ context.Context, _ string) error { return nil }

func parseChatID(chatIDStr string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(chatIDStr), 10, 64)
}

// splitMessage chunks text at the given limit, preferring newline boundaries.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut < limit/2 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
