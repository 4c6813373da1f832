package autoreply

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawrelay/clawrelay/internal/agent"
	"github.com/clawrelay/clawrelay/internal/bootstrap"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/directive"
	"github.com/clawrelay/clawrelay/internal/model"
	"github.com/clawrelay/clawrelay/internal/providers"
	"github.com/clawrelay/clawrelay/internal/session"
	"github.com/clawrelay/clawrelay/internal/systemevent"
	"github.com/clawrelay/clawrelay/internal/tracing"
)

// Engine drives the inbound-message-to-reply pipeline.
type Engine struct {
	cfg       *config.Config
	store     *session.Store
	runtime   agent.Runtime
	providers *providers.Registry

	aborts *abortCache

	sysMu     sync.Mutex
	sysQueues map[string]*systemevent.Queue

	// RequestRestart, when set, is invoked after the /restart reply is
	// returned so the process supervisor can recycle the gateway.
	RequestRestart func()

	recorder TurnRecorder

	now func() time.Time
}

// New wires an Engine from its collaborators.
func New(cfg *config.Config, store *session.Store, rt agent.Runtime, reg *providers.Registry) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		runtime:   rt,
		providers: reg,
		aborts:    newAbortCache(),
		sysQueues: make(map[string]*systemevent.Queue),
		now:       time.Now,
	}
}

// EnqueueSystemEvent queues a system line for a session key's next main
// session turn. Events with the same context key replace each other.
func (e *Engine) EnqueueSystemEvent(sessionKey, line, contextKey string) {
	e.queueFor(sessionKey).Enqueue(line, contextKey)
}

func (e *Engine) queueFor(sessionKey string) *systemevent.Queue {
	e.sysMu.Lock()
	defer e.sysMu.Unlock()
	q, ok := e.sysQueues[sessionKey]
	if !ok {
		q = systemevent.NewQueue()
		e.sysQueues[sessionKey] = q
	}
	return q
}

// turn is the per-message working state threaded through the pipeline.
type turn struct {
	msg  MsgContext
	opts Options
	cfg  config.Config

	rawBody    string // body as received, before reset-trigger consumption
	surface    string
	isGroup    bool
	groupKey   *session.GroupKey
	sessionKey string
	mainKey    string

	entry        *session.Entry
	hadEntry     bool
	isNewSession bool

	trimmedBody string // raw body trimmed
	stripped    string // structural prefixes and, in groups, mentions removed

	catalog    *model.Catalog
	defaultRef model.Ref
	allowed    model.AllowedSet
	resetNote  bool // stored model override dropped by allowlist shrink
}

var contextOverflowRe = regexp.MustCompile(`(?i)context.*overflow|too large|context window`)

// GetReply processes one inbound message and returns the replies to send.
// A nil payload slice with nil error means the message was consumed without
// a user-visible reply (queued behind a run, silent command, NO_REPLY).
func (e *Engine) GetReply(ctx context.Context, msg MsgContext, opts Options) ([]ReplyPayload, error) {
	t := &turn{msg: msg, opts: opts, cfg: e.cfg.Snapshot()}
	t.rawBody = msg.Body
	t.surface = strings.ToLower(strings.TrimSpace(msg.Surface))
	t.trimmedBody = strings.TrimSpace(msg.Body)

	e.resolveSessionKey(t)

	if reply, done := e.handleAbortRequest(t); done {
		return reply, nil
	}

	e.loadSession(t)

	if reply, done := e.handleCommands(t); done {
		return reply, nil
	}

	d := directive.Extract(t.msg.Body)

	t.catalog = model.NewCatalog(t.cfg.Agent.Models)
	t.defaultRef = t.catalog.ResolveConfigured(t.cfg.Agent.Model)
	t.allowed = t.catalog.BuildAllowedSet(t.cfg.Agent.AllowedModels, t.defaultRef.Provider)
	e.shrinkStoredOverride(t)

	directiveOnly := d.HasAny() && e.residualAfterDirectives(t, d.Cleaned) == ""

	res := applyDirectives(d, t.catalog, t.allowed, t.defaultRef, t.entry, directiveOnly)
	if res.ErrReply != "" {
		e.saveEntry(t)
		return []ReplyPayload{{Text: res.ErrReply}}, nil
	}

	if t.opts.IsHeartbeat && t.opts.ModelOverride != "" {
		if resolved, ok := t.catalog.ResolveRef(t.opts.ModelOverride, t.defaultRef.Provider); ok {
			res.RunRef = resolved.Ref
			res.RunAlias = resolved.Alias
		} else {
			slog.Warn("heartbeat model not recognized, using default",
				"model", t.opts.ModelOverride, "default", t.defaultRef.Key())
		}
	}
	if res.ModelSwitchEvent != "" {
		e.EnqueueSystemEvent(t.sessionKey, res.ModelSwitchEvent,
			"model:"+res.RunRef.Key())
	}

	if directiveOnly {
		reply := e.directiveOnlyReply(t, d, res)
		e.saveEntry(t)
		return []ReplyPayload{{Text: reply}}, nil
	}

	return e.runAgentTurn(ctx, t, d, res)
}

// ShouldEngage decides whether a group message reaches the engine at all.
// Always-on sessions take every message; otherwise the group's mention
// requirement applies. Direct messages always engage.
func (e *Engine) ShouldEngage(msg MsgContext) bool {
	surface := strings.ToLower(strings.TrimSpace(msg.Surface))
	gk := session.ResolveGroupKey(surface, msg.From, msg.ChatType)
	if gk == nil && !msg.IsGroup() {
		return true
	}

	cfg := e.cfg.Snapshot()
	key := session.ResolveKey(session.Scope(cfg.Session.Scope), surface,
		msg.From, msg.ChatType, cfg.Session.MainKey)
	if entry := e.store.Get(key); entry != nil &&
		entry.GroupActivation == string(directive.ActivationAlways) {
		return true
	}

	groupID := msg.GroupID
	if groupID == "" && gk != nil {
		groupID = gk.ID
	}
	if cfg.RequireMentionFor(surface, groupID) {
		return msg.WasMentioned
	}
	return true
}

// resolveSessionKey derives the store key and group identity for the message.
func (e *Engine) resolveSessionKey(t *turn) {
	t.mainKey = t.cfg.Session.MainKey
	if t.mainKey == "" {
		t.mainKey = session.DefaultMainKey
	}
	scope := session.Scope(t.cfg.Session.Scope)
	if scope == "" {
		scope = session.ScopePerSender
	}
	t.groupKey = session.ResolveGroupKey(t.surface, t.msg.From, t.msg.ChatType)
	t.isGroup = t.groupKey != nil || t.msg.IsGroup()
	t.sessionKey = session.ResolveKey(scope, t.surface, t.msg.From, t.msg.ChatType, t.mainKey)

	t.stripped = directive.StripStructuralPrefixes(t.trimmedBody)
	if t.isGroup {
		t.stripped = directive.StripMentions(t.stripped, e.mentionStrip(t))
	}
}

func (e *Engine) mentionStrip(t *turn) directive.MentionStrip {
	return directive.MentionStrip{
		Self:     strings.TrimPrefix(t.msg.To, "whatsapp:"),
		Patterns: t.cfg.Routing.GroupChat.MentionPatterns,
	}
}

// handleAbortRequest intercepts bare abort triggers before session setup so
// the hint survives even for keys that have no entry yet.
func (e *Engine) handleAbortRequest(t *turn) ([]ReplyPayload, bool) {
	if !directive.IsAbortTrigger(t.trimmedBody) {
		return nil, false
	}
	lane := e.runtime.ResolveLane(t.sessionKey)
	cleared := e.runtime.ClearLane(lane)
	aborted := e.runtime.Abort(lane)
	slog.Info("abort requested",
		"session_key", t.sessionKey, "aborted_run", aborted, "cleared", cleared)

	entries := e.store.Load()
	if entry, ok := entries[t.sessionKey]; ok {
		entry.AbortedLastRun = true
		entry.Touch(e.now())
		if err := e.store.Save(entries); err != nil {
			slog.Warn("failed to persist abort flag", "error", err)
		}
	} else {
		e.aborts.Mark(t.sessionKey)
	}
	return []ReplyPayload{{Text: SystemMark + " Agent was aborted."}}, true
}

// loadSession loads or creates the session entry, applies idle expiry and
// reset triggers, and persists the refreshed entry immediately.
func (e *Engine) loadSession(t *turn) {
	now := e.now()
	idle := time.Duration((&t.cfg).IdleMinutes()) * time.Minute
	triggers := (&t.cfg).ResetTriggers()

	remainder, resetMatched := directive.MatchResetTrigger(t.trimmedBody, t.stripped, triggers)
	if resetMatched {
		t.msg.Body = remainder
		t.trimmedBody = strings.TrimSpace(remainder)
	}

	err := e.store.Update(func(m map[string]*session.Entry) {
		if session.MigrateLegacyGroupKey(m, t.groupKey) {
			slog.Info("migrated legacy group session key", "key", t.sessionKey)
		}
		entry := m[t.sessionKey]
		t.hadEntry = entry != nil

		fresh := entry.Fresh(now, idle)
		t.isNewSession = !fresh || resetMatched
		if entry == nil {
			entry = &session.Entry{}
			m[t.sessionKey] = entry
		}
		if t.isNewSession {
			entry.SessionID = uuid.NewString()
			entry.SystemSent = false
		}

		entry.Surface = t.surface
		entry.ChatType = t.msg.ChatType
		if t.groupKey != nil {
			entry.ChatType = t.groupKey.ChatType
			entry.Subject = t.msg.GroupSubject
			entry.DisplayName = session.GroupDisplayName(t.groupKey, t.msg.GroupSubject)
		} else if t.msg.SenderName != "" {
			entry.DisplayName = t.msg.SenderName
		}
		entry.Touch(now)

		// An abort that raced session creation lands here.
		if !t.hadEntry && e.aborts.Take(t.sessionKey) {
			entry.AbortedLastRun = true
		}

		t.entry = entry.Clone()
	})
	if err != nil {
		slog.Warn("failed to persist session entry", "key", t.sessionKey, "error", err)
	}
	if t.entry == nil {
		t.entry = &session.Entry{SessionID: uuid.NewString()}
		t.isNewSession = true
	}
	if t.isNewSession {
		slog.Info("session started",
			"key", t.sessionKey, "session_id", t.entry.SessionID, "surface", t.surface)
	}
}

// saveEntry writes the turn's (mutated) entry back to the store.
func (e *Engine) saveEntry(t *turn) {
	err := e.store.Update(func(m map[string]*session.Entry) {
		m[t.sessionKey] = t.entry.Clone()
	})
	if err != nil {
		slog.Warn("failed to save session entry", "key", t.sessionKey, "error", err)
	}
}

// shrinkStoredOverride drops a sticky model override that the current
// allowlist no longer permits.
func (e *Engine) shrinkStoredOverride(t *turn) {
	if t.entry.ModelOverride == "" {
		return
	}
	stored := model.Ref{Provider: t.entry.ProviderOverride, Model: t.entry.ModelOverride}
	if stored.Provider == "" {
		stored.Provider = t.defaultRef.Provider
	}
	if t.allowed.Has(stored.Key()) {
		return
	}
	t.entry.ModelOverride = ""
	t.entry.ProviderOverride = ""
	t.resetNote = true
	e.saveEntry(t)
	slog.Info("stored model override no longer allowed, reset to default",
		"key", t.sessionKey, "model", stored.Key())
}

// residualAfterDirectives tells whether anything addressed to the agent
// remains once directives, structural prefixes and mentions are removed.
func (e *Engine) residualAfterDirectives(t *turn, cleaned string) string {
	rest := directive.StripStructuralPrefixes(cleaned)
	if t.isGroup {
		rest = directive.StripMentions(rest, e.mentionStrip(t))
	}
	return rest
}

// directiveOnlyReply assembles the acknowledgment for a message that was
// nothing but directives.
func (e *Engine) directiveOnlyReply(t *turn, d directive.Directives, res directiveResult) string {
	if d.ModelIsStatus() || (d.HasModel && strings.TrimSpace(d.RawModel) == "") {
		current := res.RunRef
		return buildModelList(t.catalog, t.allowed, current, t.defaultRef, t.resetNote)
	}
	if len(res.AckParts) == 0 {
		return "OK."
	}
	return strings.Join(res.AckParts, " ")
}

// runAgentTurn is the with-content path: assemble the prompt, decide queue
// versus interrupt, run the agent and shape its output.
func (e *Engine) runAgentTurn(ctx context.Context, t *turn, d directive.Directives, res directiveResult) ([]ReplyPayload, error) {
	thinkLevel := e.resolveThinkLevel(t, res)
	verbose := e.resolveVerbose(t, res)

	commandBody, emptyReply := e.assembleBody(t, d, &thinkLevel)
	if emptyReply != "" {
		if t.opts.OnReplyStart != nil {
			t.opts.OnReplyStart()
		}
		e.saveEntry(t)
		return []ReplyPayload{{Text: emptyReply}}, nil
	}

	extraSystem := ""
	if t.isGroup && (!t.entry.SystemSent || t.entry.GroupActivationNeedsIntro) {
		alwaysOn := t.entry.GroupActivation == string(directive.ActivationAlways)
		extraSystem = buildGroupIntro(t.surface, t.msg.GroupSubject, t.msg.GroupMembers, alwaysOn)
	}

	// Skills are scanned once per session; later turns reuse the cache.
	if t.isNewSession || t.entry.SkillsSnapshot == "" {
		t.entry.SkillsSnapshot = bootstrap.SkillSnapshot((&t.cfg).WorkspacePath())
	}

	// Queue or interrupt against the session's command lane.
	lane := e.runtime.ResolveLane(t.sessionKey)
	mode := resolveQueueMode(res.PerMessageQueue, res.HasInlineQueue, t.entry,
		t.cfg.Routing.Queue.BySurface, t.cfg.Routing.Queue.Mode, t.surface)
	if mode == directive.QueueModeInterrupt {
		if n := e.runtime.ClearLane(lane); n > 0 {
			slog.Debug("cleared command lane", "lane", lane, "dropped", n)
		}
		e.runtime.Abort(lane)
	} else if e.runtime.Enqueue(lane, commandBody) {
		t.entry.Touch(e.now())
		e.saveEntry(t)
		return nil, nil
	}

	stopTyping := e.startTyping(ctx, t, commandBody)
	defer stopTyping()

	if t.opts.OnReplyStart != nil {
		t.opts.OnReplyStart()
	}

	prov, err := e.providers.Get(res.RunRef.Provider)
	if err != nil {
		slog.Error("no provider for model",
			"provider", res.RunRef.Provider, "model", res.RunRef.Model, "error", err)
		e.saveEntry(t)
		return []ReplyPayload{{Text: "⚠️ Agent failed. Check gateway logs."}}, nil
	}

	runCtx := ctx
	if secs := t.cfg.Agent.TimeoutSeconds; secs > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	result, err := e.runtime.Run(runCtx, agent.RunRequest{
		SessionID:         t.entry.SessionID,
		SessionKey:        t.sessionKey,
		Message:           commandBody,
		ExtraSystemPrompt: extraSystem,
		SkillsSnapshot:    t.entry.SkillsSnapshot,
		Provider:          prov,
		Model:             res.RunRef.Model,
		ThinkingLevel:     thinkLevel,
		MaxTokens:         t.cfg.Agent.MaxTokens,
		Temperature:       t.cfg.Agent.Temperature,
		TranscriptPath:    e.transcriptPath(t.entry.SessionID),
		OnPartial:         e.partialHook(t),
	})
	if err != nil {
		slog.Error("agent run failed",
			"session_key", t.sessionKey, "model", res.RunRef.Key(), "error", err)
		e.saveEntry(t)
		if contextOverflowRe.MatchString(err.Error()) {
			return []ReplyPayload{{Text: "⚠️ Context overflow - conversation too long. Starting fresh might help!"}}, nil
		}
		return []ReplyPayload{{Text: "⚠️ Agent failed. Check gateway logs."}}, nil
	}

	e.recordUsage(t, result)
	tracing.AnnotateTurn(ctx, result.Model, t.entry.InputTokens, t.entry.OutputTokens)
	t.entry.SystemSent = true
	t.entry.GroupActivationNeedsIntro = false
	t.entry.Touch(e.now())
	e.saveEntry(t)

	if e.recorder != nil {
		replyChars := 0
		for _, p := range result.Payloads {
			replyChars += len(p.Text)
		}
		e.recorder.RecordTurn(TurnRecord{
			At:           e.now(),
			Surface:      t.surface,
			SessionKey:   t.sessionKey,
			SessionID:    t.entry.SessionID,
			Model:        result.Model,
			InputTokens:  t.entry.InputTokens,
			OutputTokens: t.entry.OutputTokens,
			UserChars:    len(commandBody),
			ReplyChars:   replyChars,
			Aborted:      result.Aborted,
		})
	}

	if result.Aborted {
		return nil, nil
	}

	payloads := e.shapePayloads(t, result, verbose)
	return payloads, nil
}

// resolveThinkLevel applies inline directive, sticky session level, then the
// configured default.
func (e *Engine) resolveThinkLevel(t *turn, res directiveResult) string {
	if res.HasInlineThink {
		if res.InlineThink == directive.ThinkOff {
			return ""
		}
		return string(res.InlineThink)
	}
	if t.entry.ThinkingLevel != "" {
		return t.entry.ThinkingLevel
	}
	if lvl, ok := directive.NormalizeThinkLevel(t.cfg.Agent.ThinkingDefault); ok && lvl != directive.ThinkOff {
		return string(lvl)
	}
	return ""
}

func (e *Engine) resolveVerbose(t *turn, res directiveResult) bool {
	if t.entry.VerboseLevel != "" {
		return t.entry.VerboseLevel == string(directive.VerboseOn)
	}
	if lvl, ok := directive.NormalizeVerboseLevel(t.cfg.Agent.VerboseDefault); ok {
		return lvl == directive.VerboseOn
	}
	return false
}

// assembleBody builds the prompt body: directive-cleaned text, the stray
// think-level fallback, reset greeting, aborted-run hint, main-session
// system block, transcript and media notes. A non-empty second return is an
// immediate reply for messages with no usable text.
func (e *Engine) assembleBody(t *turn, d directive.Directives, thinkLevel *string) (string, string) {
	body := d.Cleaned

	// A message like "high, please review" right after /think was offered
	// reads as a think level; consume a leading level token when no level
	// is otherwise resolved.
	if *thinkLevel == "" && body != "" {
		fields := strings.Fields(body)
		if len(fields) > 0 {
			if lvl, ok := directive.NormalizeThinkLevel(fields[0]); ok {
				if lvl == directive.ThinkOff {
					*thinkLevel = ""
				} else {
					*thinkLevel = string(lvl)
				}
				body = strings.TrimSpace(strings.TrimPrefix(body, fields[0]))
			}
		}
	}

	if t.isNewSession && body == "" && strings.TrimSpace(t.rawBody) != "" &&
		t.msg.MediaPath == "" && t.msg.Transcript == "" {
		// Reset trigger with nothing after it: have the agent greet.
		return bareSessionResetPrompt, ""
	}

	if t.msg.Transcript != "" {
		if body != "" {
			body += "\n\n"
		}
		body += "Transcript:\n" + t.msg.Transcript
	}

	if t.msg.MediaPath != "" || t.msg.MediaURL != "" {
		note := fmt.Sprintf("[media attached: %s (%s)", t.msg.MediaPath, t.msg.MediaType)
		if t.msg.MediaURL != "" {
			note += " | " + t.msg.MediaURL
		}
		note += "]"
		if body != "" {
			body += "\n"
		}
		body += note
		body += "\nTo send an image back, add a line like: MEDIA:https://example.com/image.jpg (no spaces). Keep caption in the text body."
	}

	if body == "" {
		return "", "I didn't receive any text in your message. Please resend or add a caption."
	}

	if t.entry.AbortedLastRun {
		body = abortedRunHint + "\n\n" + body
		t.entry.AbortedLastRun = false
	}

	if !t.isGroup && t.sessionKey == t.mainKey {
		lines := compactSystemLines(e.queueFor(t.sessionKey).Drain())
		if t.isNewSession {
			lines = append(e.providerSummary(t), lines...)
		}
		if block := renderSystemBlock(lines); block != "" {
			body = block + "\n\n" + body
		}
	}

	return body, ""
}

// transcriptPath locates the JSONL transcript next to the session store.
func (e *Engine) transcriptPath(sessionID string) string {
	return session.TranscriptPath(filepath.Dir(e.store.Path()), sessionID)
}

// startTyping begins the typing indicator loop when the surface wants it.
// The returned func stops the loop; it is safe to call when nothing started.
func (e *Engine) startTyping(ctx context.Context, t *turn, body string) func() {
	if t.opts.StartTyping == nil {
		return func() {}
	}
	eager := !t.isGroup || t.msg.WasMentioned
	if !eager {
		return func() {}
	}
	if strings.TrimSpace(body) == "" || agent.IsSilentReply(body) {
		return func() {}
	}
	if err := t.opts.StartTyping(); err != nil {
		slog.Debug("typing start failed", "error", err)
	}

	interval := time.Duration((&t.cfg).TypingIntervalSeconds()) * time.Second
	done := make(chan struct{})
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := t.opts.StartTyping(); err != nil {
						slog.Debug("typing refresh failed", "error", err)
					}
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if t.opts.StopTyping != nil {
				if err := t.opts.StopTyping(); err != nil {
					slog.Debug("typing stop failed", "error", err)
				}
			}
		})
	}
}

// partialHook adapts streamed agent blocks for the caller, applying the same
// heartbeat and silent-reply filtering as final payloads.
func (e *Engine) partialHook(t *turn) func(agent.Payload) {
	if t.opts.OnPartialReply == nil {
		return nil
	}
	return func(p agent.Payload) {
		rp, ok := e.filterPayload(t, ReplyPayload{Text: p.Text, MediaURLs: p.MediaURLs})
		if ok {
			t.opts.OnPartialReply(rp)
		}
	}
}

// recordUsage persists the run's token accounting onto the session entry.
func (e *Engine) recordUsage(t *turn, result *agent.RunResult) {
	if result.Model != "" {
		t.entry.Model = result.Model
	}
	promptTokens := result.Usage.PromptTotal()
	t.entry.InputTokens = int64(promptTokens)
	t.entry.OutputTokens = int64(result.Usage.CompletionTokens)
	if promptTokens > 0 {
		t.entry.TotalTokens = int64(promptTokens)
	} else {
		t.entry.TotalTokens = int64(result.Usage.TotalTokens)
	}
	if ct := t.catalog.ContextTokens(result.Model); ct > 0 {
		t.entry.ContextTokens = ct
	} else if t.cfg.Agent.ContextTokens > 0 {
		t.entry.ContextTokens = t.cfg.Agent.ContextTokens
	} else {
		t.entry.ContextTokens = model.DefaultContextTokens
	}
}

// shapePayloads filters and decorates the run's payloads for delivery.
func (e *Engine) shapePayloads(t *turn, result *agent.RunResult, verbose bool) []ReplyPayload {
	var out []ReplyPayload
	for _, p := range result.Payloads {
		rp, ok := e.filterPayload(t, ReplyPayload{Text: p.Text, MediaURLs: p.MediaURLs})
		if ok {
			out = append(out, rp)
		}
	}
	if verbose && t.isNewSession && len(out) > 0 {
		out = append([]ReplyPayload{
			{Text: "🧭 New session: " + t.entry.SessionID},
		}, out...)
	}
	return out
}

// filterPayload strips the heartbeat token on user-facing turns and drops
// silent or emptied payloads.
func (e *Engine) filterPayload(t *turn, p ReplyPayload) (ReplyPayload, bool) {
	if agent.IsSilentReply(p.Text) {
		return ReplyPayload{}, false
	}
	if !t.opts.IsHeartbeat && strings.Contains(p.Text, HeartbeatOKToken) {
		stripped := strings.TrimSpace(strings.ReplaceAll(p.Text, HeartbeatOKToken, ""))
		if stripped == "" && len(p.MediaURLs) == 0 {
			slog.Debug("dropped heartbeat-only payload", "session_key", t.sessionKey)
			return ReplyPayload{}, false
		}
		p.Text = stripped
	}
	if p.IsEmpty() {
		return ReplyPayload{}, false
	}
	return p, true
}
