package autoreply

import (
	"fmt"
	"strings"

	"github.com/clawrelay/clawrelay/internal/directive"
	"github.com/clawrelay/clawrelay/internal/model"
	"github.com/clawrelay/clawrelay/internal/session"
)

// modelLabel renders a resolved model for user-facing text: the alias with
// the full key in parentheses, or just the key.
func modelLabel(res model.Resolved) string {
	if res.Alias != "" {
		return fmt.Sprintf("%s (%s)", res.Alias, res.Ref.Key())
	}
	return res.Ref.Key()
}

// buildModelList renders the /model listing with the session's current and
// default selections.
func buildModelList(cat *model.Catalog, allowed model.AllowedSet, current, def model.Ref, resetNote bool) string {
	var b strings.Builder
	if current == def {
		fmt.Fprintf(&b, "Models (current: %s):", current.Key())
	} else {
		fmt.Fprintf(&b, "Models (current: %s, default: %s):", current.Key(), def.Key())
	}
	if resetNote {
		b.WriteString("\n(previous selection reset to default)")
	}
	entries := allowed.Catalog
	if len(entries) == 0 {
		b.WriteString("\nNo models available.")
		return b.String()
	}
	for _, d := range entries {
		fmt.Fprintf(&b, "\n- %s/%s", d.Provider, d.ID)
		if aliases := cat.AliasesFor(d.Ref().Key()); len(aliases) > 0 {
			fmt.Fprintf(&b, " (alias: %s)", strings.Join(aliases, ", "))
		}
		if d.Name != "" {
			fmt.Fprintf(&b, " — %s", d.Name)
		}
	}
	return b.String()
}

// directiveResult is what applying the extracted directives produced: the
// model to run with, any sticky changes already written to the entry, ack
// lines for a directive-only reply, or an immediate error reply.
type directiveResult struct {
	RunRef   model.Ref
	RunAlias string

	// PerMessageQueue is an inline queue mode that applies to this message
	// only; sticky persistence happens on directive-only turns.
	PerMessageQueue directive.QueueMode
	HasInlineQueue  bool

	InlineThink    directive.ThinkLevel
	HasInlineThink bool

	ModelSwitchEvent string // system event line, empty when no switch

	AckParts []string
	ErrReply string // non-empty aborts the turn with this reply
}

// applyDirectives validates the extracted directives against the catalog,
// persists sticky levels on the entry, and accumulates directive-only ack
// parts. directiveOnly controls whether unrecognized arguments produce an
// error reply or are dropped so the message still reaches the agent.
func applyDirectives(
	d directive.Directives,
	cat *model.Catalog,
	allowed model.AllowedSet,
	defaultRef model.Ref,
	entry *session.Entry,
	directiveOnly bool,
) directiveResult {
	res := directiveResult{RunRef: defaultRef}

	// Stored override survives unless the allowlist dropped it.
	if entry.ModelOverride != "" {
		stored := model.Ref{
			Provider: entry.ProviderOverride,
			Model:    entry.ModelOverride,
		}
		if stored.Provider == "" {
			stored.Provider = defaultRef.Provider
		}
		if allowed.Has(stored.Key()) {
			res.RunRef = stored
		}
	}

	if d.HasThink {
		if lvl, ok := directive.NormalizeThinkLevel(d.RawThink); ok {
			res.InlineThink = lvl
			res.HasInlineThink = true
			if lvl == directive.ThinkOff {
				entry.ThinkingLevel = ""
				res.AckParts = append(res.AckParts, "Thinking disabled.")
			} else {
				entry.ThinkingLevel = string(lvl)
				res.AckParts = append(res.AckParts,
					fmt.Sprintf("Thinking level set to %s.", lvl))
			}
		} else if directiveOnly {
			res.ErrReply = fmt.Sprintf(
				"Unrecognized thinking level %q. Valid levels: off, minimal, low, medium, high.",
				d.RawThink)
			return res
		}
	}

	if d.HasVerbose {
		if lvl, ok := directive.NormalizeVerboseLevel(d.RawVerbose); ok {
			if lvl == directive.VerboseOff {
				entry.VerboseLevel = ""
				res.AckParts = append(res.AckParts, SystemMark+" Verbose logging disabled.")
			} else {
				entry.VerboseLevel = string(lvl)
				res.AckParts = append(res.AckParts, SystemMark+" Verbose logging enabled.")
			}
		} else if directiveOnly {
			res.ErrReply = fmt.Sprintf(
				"Unrecognized verbose level %q. Valid levels: off, on.", d.RawVerbose)
			return res
		}
	}

	if d.HasModel && !d.ModelIsStatus() && strings.TrimSpace(d.RawModel) != "" {
		resolved, ok := cat.ResolveRef(d.RawModel, defaultRef.Provider)
		if !ok {
			if directiveOnly {
				res.ErrReply = fmt.Sprintf(
					"Unrecognized model %q. Use /model to list available models.", d.RawModel)
				return res
			}
		} else if !allowed.Has(resolved.Ref.Key()) {
			if directiveOnly {
				res.ErrReply = fmt.Sprintf(
					"Model %q is not allowed. Use /model to list available models.",
					resolved.Ref.Key())
				return res
			}
		} else if resolved.Ref == defaultRef {
			entry.ModelOverride = ""
			entry.ProviderOverride = ""
			res.RunRef = defaultRef
			res.RunAlias = resolved.Alias
			res.AckParts = append(res.AckParts,
				fmt.Sprintf("Model reset to default (%s).", modelLabel(resolved)))
		} else {
			entry.ModelOverride = resolved.Ref.Model
			entry.ProviderOverride = resolved.Ref.Provider
			res.RunRef = resolved.Ref
			res.RunAlias = resolved.Alias
			label := modelLabel(resolved)
			if resolved.Alias != "" {
				res.ModelSwitchEvent = fmt.Sprintf("Model switched to %s (%s).",
					resolved.Alias, resolved.Ref.Key())
			} else {
				res.ModelSwitchEvent = fmt.Sprintf("Model switched to %s.", resolved.Ref.Key())
			}
			res.AckParts = append(res.AckParts, fmt.Sprintf("Model set to %s.", label))
		}
	}

	if d.HasQueue {
		switch {
		case d.QueueReset:
			entry.QueueMode = ""
			res.AckParts = append(res.AckParts, SystemMark+" Queue mode reset to default.")
		case d.Queue != "":
			res.PerMessageQueue = d.Queue
			res.HasInlineQueue = true
			if directiveOnly {
				entry.QueueMode = string(d.Queue)
			}
			res.AckParts = append(res.AckParts,
				fmt.Sprintf("%s Queue mode set to %s.", SystemMark, d.Queue))
		case directiveOnly:
			res.ErrReply = fmt.Sprintf(
				"Unrecognized queue mode %q. Valid modes: queue, interrupt.", d.RawQueue)
			return res
		}
	}

	return res
}

// defaultQueueModeForSurface picks the queue default when neither directive
// nor config says otherwise. Chatty surfaces queue; phone-style ones
// interrupt so a correction replaces the stale run.
func defaultQueueModeForSurface(surface string) directive.QueueMode {
	switch strings.ToLower(strings.TrimSpace(surface)) {
	case "discord", "webchat":
		return directive.QueueModeQueue
	}
	return directive.QueueModeInterrupt
}

// resolveQueueMode applies the precedence chain: inline directive, sticky
// session mode, per-surface config, global config, surface default.
func resolveQueueMode(
	inline directive.QueueMode, hasInline bool,
	entry *session.Entry,
	bySurface map[string]string, cfgMode, surface string,
) directive.QueueMode {
	if hasInline && inline != "" {
		return inline
	}
	if entry != nil && entry.QueueMode != "" {
		if m, ok := directive.NormalizeQueueMode(entry.QueueMode); ok {
			return m
		}
	}
	if raw, ok := bySurface[strings.ToLower(strings.TrimSpace(surface))]; ok {
		if m, ok := directive.NormalizeQueueMode(raw); ok {
			return m
		}
	}
	if m, ok := directive.NormalizeQueueMode(cfgMode); ok {
		return m
	}
	return defaultQueueModeForSurface(surface)
}
