package autoreply

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clawrelay/clawrelay/internal/directive"
	"github.com/clawrelay/clawrelay/internal/model"
	"github.com/clawrelay/clawrelay/internal/session"
)

// handleCommands intercepts gateway commands (/restart, /status,
// /activation) before directive extraction. The second return is true when
// the message was fully handled.
func (e *Engine) handleCommands(t *turn) ([]ReplyPayload, bool) {
	normalized := strings.ToLower(t.stripped)
	if normalized == "" {
		normalized = strings.ToLower(t.trimmedBody)
	}

	switch normalized {
	case "/restart", "restart":
		return e.handleRestart(t)
	case "/status", "status":
		return e.handleStatus(t)
	}

	if cmd := directive.ParseActivationCommand(normalized); cmd.HasCommand {
		return e.handleActivation(t, cmd)
	}
	return nil, false
}

func (e *Engine) handleRestart(t *turn) ([]ReplyPayload, bool) {
	if t.isGroup && !t.msg.IsOwner {
		return nil, true
	}
	slog.Info("restart requested", "session_key", t.sessionKey, "from", t.msg.From)
	if e.RequestRestart != nil {
		defer e.RequestRestart()
	}
	return []ReplyPayload{{Text: SystemMark +
		" Restarting clawrelay; give me a few seconds to come back online."}}, true
}

func (e *Engine) handleStatus(t *turn) ([]ReplyPayload, bool) {
	if t.isGroup && !t.msg.IsOwner {
		return nil, true
	}

	cat := model.NewCatalog(t.cfg.Agent.Models)
	defaultRef := cat.ResolveConfigured(t.cfg.Agent.Model)
	current := defaultRef
	if t.entry.ModelOverride != "" {
		current = model.Ref{
			Provider: t.entry.ProviderOverride,
			Model:    t.entry.ModelOverride,
		}
		if current.Provider == "" {
			current.Provider = defaultRef.Provider
		}
	}

	think := t.entry.ThinkingLevel
	if think == "" {
		think = t.cfg.Agent.ThinkingDefault
	}
	verbose := t.entry.VerboseLevel
	if verbose == "" {
		verbose = t.cfg.Agent.VerboseDefault
	}

	scope := session.ScopePerSender
	if t.cfg.Session.Scope != "" {
		scope = session.Scope(t.cfg.Session.Scope)
	}

	heartbeatSecs := 0
	if every := t.cfg.Agent.Heartbeat.Every; every != "" {
		if dur, err := time.ParseDuration(every); err == nil {
			heartbeatSecs = int(dur.Seconds())
		}
	}

	text := buildStatusMessage(statusInfo{
		Cfg:              t.cfg,
		Entry:            t.entry,
		SessionKey:       t.sessionKey,
		Scope:            scope,
		StorePath:        e.store.Path(),
		ModelLabel:       current.Key(),
		ContextTokens:    cat.ContextTokens(current.Model),
		ThinkingLevel:    think,
		VerboseLevel:     verbose,
		GroupActivation:  t.entry.GroupActivation,
		HeartbeatSeconds: heartbeatSecs,
	})
	return []ReplyPayload{{Text: text}}, true
}

func (e *Engine) handleActivation(t *turn, cmd directive.ActivationCommand) ([]ReplyPayload, bool) {
	if !t.isGroup {
		return []ReplyPayload{{Text: SystemMark +
			" Group activation only applies to group chats."}}, true
	}
	if !t.msg.IsOwner {
		return nil, true
	}
	if cmd.Mode == "" {
		return []ReplyPayload{{Text: SystemMark + " Usage: /activation mention|always"}}, true
	}

	t.entry.GroupActivation = string(cmd.Mode)
	t.entry.GroupActivationNeedsIntro = true
	e.saveEntry(t)
	slog.Info("group activation changed",
		"session_key", t.sessionKey, "mode", cmd.Mode)
	return []ReplyPayload{{Text: fmt.Sprintf(
		"%s Group activation set to %s.", SystemMark, cmd.Mode)}}, true
}
