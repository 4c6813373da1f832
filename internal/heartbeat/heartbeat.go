// Package heartbeat runs unattended agent turns on a schedule. A heartbeat
// turn goes through the same reply engine as user messages; output that is
// just the all-clear token is swallowed, anything else is delivered to the
// configured surface.
package heartbeat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/clawrelay/clawrelay/internal/autoreply"
	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/config"
)

// defaultPrompt runs when no heartbeat prompt is configured.
const defaultPrompt = "Check for anything that needs the user's attention. " +
	"If there is nothing to report, reply with exactly HEARTBEAT_OK and nothing else."

// heartbeatSender keys the heartbeat's own session, separate from user chats.
const heartbeatSender = "heartbeat"

// tickInterval is the scheduler resolution.
const tickInterval = 30 * time.Second

// Runner evaluates the heartbeat schedule and fires agent turns.
type Runner struct {
	cfg     *config.Config
	engine  *autoreply.Engine
	manager *channels.Manager

	gron       *gronx.Gronx
	lastRun    time.Time
	lastMinute time.Time
	now        func() time.Time
}

// New creates a heartbeat runner.
func New(cfg *config.Config, engine *autoreply.Engine, manager *channels.Manager) *Runner {
	return &Runner{
		cfg:     cfg,
		engine:  engine,
		manager: manager,
		gron:    gronx.New(),
		now:     time.Now,
	}
}

// Run evaluates the schedule until the context ends. Enabled state and
// schedule are re-read each tick so config reloads take effect.
func (r *Runner) Run(ctx context.Context) error {
	hb := r.cfg.Snapshot().Agent.Heartbeat
	if !scheduleConfigured(hb) {
		slog.Info("heartbeat disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	slog.Info("heartbeat runner started", "every", hb.Every, "cron", hb.Cron)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Start the interval clock now so the first beat waits a full period.
	r.lastRun = r.now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.due() {
				r.beat(ctx)
			}
		}
	}
}

func scheduleConfigured(hb config.HeartbeatConfig) bool {
	if hb.Cron != "" {
		return true
	}
	d, err := time.ParseDuration(hb.Every)
	return err == nil && d > 0
}

// due reports whether a beat should fire at this tick.
func (r *Runner) due() bool {
	hb := r.cfg.Snapshot().Agent.Heartbeat
	now := r.now()

	if !withinActiveHours(hb.ActiveHours, now) {
		return false
	}

	if hb.Cron != "" {
		minute := now.Truncate(time.Minute)
		if minute.Equal(r.lastMinute) {
			return false
		}
		ok, err := r.gron.IsDue(hb.Cron, now)
		if err != nil {
			slog.Warn("invalid heartbeat cron expression", "cron", hb.Cron, "error", err)
			return false
		}
		if ok {
			r.lastMinute = minute
		}
		return ok
	}

	every, err := time.ParseDuration(hb.Every)
	if err != nil || every <= 0 {
		return false
	}
	if now.Sub(r.lastRun) < every {
		return false
	}
	r.lastRun = now
	return true
}

// beat runs one heartbeat turn and delivers any actionable output.
func (r *Runner) beat(ctx context.Context) {
	hb := r.cfg.Snapshot().Agent.Heartbeat

	prompt := hb.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	msg := autoreply.MsgContext{
		Body:      prompt,
		From:      heartbeatSender,
		To:        hb.To,
		Surface:   "heartbeat",
		ChatType:  "direct",
		Timestamp: r.now(),
		IsOwner:   true,
	}

	payloads, err := r.engine.GetReply(ctx, msg, autoreply.Options{
		IsHeartbeat:   true,
		ModelOverride: hb.Model,
	})
	if err != nil {
		slog.Error("heartbeat turn failed", "error", err)
		return
	}

	for _, p := range payloads {
		text, ok := ActionableText(p.Text)
		if !ok && len(p.MediaURLs) == 0 {
			slog.Debug("heartbeat ok, nothing to deliver")
			continue
		}
		r.deliver(ctx, hb, autoreply.ReplyPayload{Text: text, MediaURLs: p.MediaURLs})
	}
}

func (r *Runner) deliver(ctx context.Context, hb config.HeartbeatConfig, p autoreply.ReplyPayload) {
	if hb.Surface == "" || hb.To == "" {
		slog.Info("heartbeat produced output but no delivery target is configured",
			"chars", len(p.Text))
		return
	}

	out := bus.OutboundMessage{
		Surface: hb.Surface,
		ChatID:  hb.To,
		Content: p.Text,
	}
	for _, url := range p.MediaURLs {
		out.Media = append(out.Media, bus.MediaAttachment{URL: url})
	}

	if err := r.manager.Send(ctx, out); err != nil {
		slog.Error("heartbeat delivery failed",
			"surface", hb.Surface, "chat_id", hb.To, "error", err)
	}
}

// ActionableText strips the all-clear token and reports whether anything
// worth delivering remains.
func ActionableText(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == autoreply.HeartbeatOKToken {
		return "", false
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(trimmed, autoreply.HeartbeatOKToken, ""))
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// withinActiveHours checks the "HH:MM" window, treating end before start as
// an overnight window. A nil config means always active.
func withinActiveHours(ah *config.ActiveHoursConfig, now time.Time) bool {
	if ah == nil || (ah.Start == "" && ah.End == "") {
		return true
	}

	loc := now.Location()
	if ah.Timezone != "" {
		if l, err := time.LoadLocation(ah.Timezone); err == nil {
			loc = l
		} else {
			slog.Warn("invalid heartbeat timezone", "timezone", ah.Timezone, "error", err)
		}
	}
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	start, okStart := parseClock(ah.Start)
	end, okEnd := parseClock(ah.End)
	if !okStart || !okEnd {
		return true
	}

	if start == end {
		return true
	}
	if start < end {
		return minutes >= start && minutes < end
	}
	// Overnight window, e.g. 22:00 to 07:00.
	return minutes >= start || minutes < end
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
