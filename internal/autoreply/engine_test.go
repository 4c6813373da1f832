package autoreply

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/clawrelay/clawrelay/internal/agent"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/model"
	"github.com/clawrelay/clawrelay/internal/providers"
	"github.com/clawrelay/clawrelay/internal/session"
)

// fakeRuntime records run requests and plays back canned results.
type fakeRuntime struct {
	mu       sync.Mutex
	requests []agent.RunRequest
	result   *agent.RunResult
	runErr   error

	enqueueOK bool
	enqueued  []string
	aborted   []string
	cleared   []string
	laneSize  int
}

func (f *fakeRuntime) Run(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &agent.RunResult{
		Payloads: []agent.Payload{{Text: "default reply"}},
		Model:    req.Model,
	}, nil
}

func (f *fakeRuntime) Enqueue(lane, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enqueueOK {
		return false
	}
	f.enqueued = append(f.enqueued, body)
	return true
}

func (f *fakeRuntime) Abort(lane string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, lane)
	return true
}

func (f *fakeRuntime) ResolveLane(sessionKey string) string { return sessionKey }

func (f *fakeRuntime) LaneSize(lane string) int { return f.laneSize }

func (f *fakeRuntime) ClearLane(lane string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, lane)
	return f.laneSize
}

func (f *fakeRuntime) lastRequest(t *testing.T) agent.RunRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no run requests recorded")
	}
	return f.requests[len(f.requests)-1]
}

type testEnv struct {
	engine  *Engine
	runtime *fakeRuntime
	store   *session.Store
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Agent.Model = "sonnet"
	cfg.Session.Store = filepath.Join(t.TempDir(), "sessions.json")

	store := session.NewStore(cfg.Session.Store)
	rt := &fakeRuntime{}
	reg := providers.NewRegistry()
	reg.Register(&stubProvider{name: "anthropic"})
	reg.Register(&stubProvider{name: "openai"})

	return &testEnv{
		engine:  New(cfg, store, rt, reg),
		runtime: rt,
		store:   store,
		cfg:     cfg,
	}
}

type stubProvider struct{ name string }

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return "stub" }
func (s *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: "stub"}, nil
}
func (s *stubProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return &providers.ChatResponse{Content: "stub"}, nil
}

func dm(body string) MsgContext {
	return MsgContext{Body: body, From: "+15551234567", Surface: "telegram", ChatType: "direct"}
}

func (env *testEnv) reply(t *testing.T, msg MsgContext) []ReplyPayload {
	t.Helper()
	payloads, err := env.engine.GetReply(context.Background(), msg, Options{})
	if err != nil {
		t.Fatalf("GetReply: %v", err)
	}
	return payloads
}

func singleText(t *testing.T, payloads []ReplyPayload) string {
	t.Helper()
	if len(payloads) != 1 {
		t.Fatalf("payloads = %+v, want exactly one", payloads)
	}
	return payloads[0].Text
}

func TestDirectiveOnlyThinkAck(t *testing.T) {
	env := newTestEnv(t)

	got := singleText(t, env.reply(t, dm("/think:high")))
	if got != "Thinking level set to high." {
		t.Errorf("ack = %q", got)
	}
	entry := env.store.Get("+15551234567")
	if entry == nil || entry.ThinkingLevel != "high" {
		t.Errorf("sticky level not persisted: %+v", entry)
	}

	// The sticky level feeds the next run.
	env.reply(t, dm("real question"))
	if req := env.runtime.lastRequest(t); req.ThinkingLevel != "high" {
		t.Errorf("run thinking = %q, want high", req.ThinkingLevel)
	}
}

func TestDirectiveOnlyThinkOff(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("/think:low"))

	got := singleText(t, env.reply(t, dm("/think:off")))
	if got != "Thinking disabled." {
		t.Errorf("ack = %q", got)
	}
	if entry := env.store.Get("+15551234567"); entry.ThinkingLevel != "" {
		t.Errorf("sticky level should be cleared, got %q", entry.ThinkingLevel)
	}
}

func TestDirectiveOnlyInvalidThink(t *testing.T) {
	env := newTestEnv(t)
	got := singleText(t, env.reply(t, dm("/think:banana")))
	want := `Unrecognized thinking level "banana". Valid levels: off, minimal, low, medium, high.`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDirectiveOnlyVerboseAck(t *testing.T) {
	env := newTestEnv(t)
	got := singleText(t, env.reply(t, dm("/verbose on")))
	if got != SystemMark+" Verbose logging enabled." {
		t.Errorf("ack = %q", got)
	}
	if entry := env.store.Get("+15551234567"); entry.VerboseLevel != "on" {
		t.Errorf("verbose not persisted: %+v", entry)
	}
}

func TestDirectiveOnlyCombinedAcks(t *testing.T) {
	env := newTestEnv(t)
	got := singleText(t, env.reply(t, dm("/think:medium /verbose:off")))
	want := "Thinking level set to medium. " + SystemMark + " Verbose logging disabled."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestModelListShowsCurrentAndDefault(t *testing.T) {
	env := newTestEnv(t)

	got := singleText(t, env.reply(t, dm("/model")))
	if !strings.HasPrefix(got, "Models (current: anthropic/claude-sonnet-4-5):") {
		t.Errorf("list header = %q", got)
	}
	if !strings.Contains(got, "- anthropic/claude-opus-4-1 (alias: opus)") {
		t.Errorf("list missing opus entry:\n%s", got)
	}

	// After switching, the header distinguishes current from default.
	env.reply(t, dm("/model opus"))
	got = singleText(t, env.reply(t, dm("/model status")))
	if !strings.HasPrefix(got,
		"Models (current: anthropic/claude-opus-4-1, default: anthropic/claude-sonnet-4-5):") {
		t.Errorf("post-switch header = %q", got)
	}
}

func TestModelSwitchAndReset(t *testing.T) {
	env := newTestEnv(t)

	got := singleText(t, env.reply(t, dm("/model opus")))
	if got != "Model set to opus (anthropic/claude-opus-4-1)." {
		t.Errorf("switch ack = %q", got)
	}
	entry := env.store.Get("+15551234567")
	if entry.ModelOverride != "claude-opus-4-1" || entry.ProviderOverride != "anthropic" {
		t.Errorf("override not persisted: %+v", entry)
	}

	// The override drives the next run.
	env.reply(t, dm("question"))
	if req := env.runtime.lastRequest(t); req.Model != "claude-opus-4-1" {
		t.Errorf("run model = %q", req.Model)
	}

	got = singleText(t, env.reply(t, dm("/model sonnet")))
	if got != "Model reset to default (sonnet (anthropic/claude-sonnet-4-5))." {
		t.Errorf("reset ack = %q", got)
	}
	if entry := env.store.Get("+15551234567"); entry.ModelOverride != "" {
		t.Errorf("override should be cleared: %+v", entry)
	}
}

func TestModelUnrecognized(t *testing.T) {
	env := newTestEnv(t)
	got := singleText(t, env.reply(t, dm("/model nonsense-9000")))
	want := `Unrecognized model "nonsense-9000". Use /model to list available models.`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestModelNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Agent.AllowedModels = config.FlexibleStringSlice{"sonnet"}

	got := singleText(t, env.reply(t, dm("/model opus")))
	want := `Model "anthropic/claude-opus-4-1" is not allowed. Use /model to list available models.`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAllowlistShrinkResetsStoredOverride(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("/model opus"))

	// Allowlist changes out from under the stored override.
	env.cfg.Agent.AllowedModels = config.FlexibleStringSlice{"sonnet"}
	got := singleText(t, env.reply(t, dm("/model")))
	if !strings.Contains(got, "(previous selection reset to default)") {
		t.Errorf("missing reset note:\n%s", got)
	}
	if entry := env.store.Get("+15551234567"); entry.ModelOverride != "" {
		t.Errorf("override should be gone: %+v", entry)
	}
}

func TestQueueModeAckAndReset(t *testing.T) {
	env := newTestEnv(t)

	got := singleText(t, env.reply(t, dm("/queue interrupt")))
	if got != SystemMark+" Queue mode set to interrupt." {
		t.Errorf("ack = %q", got)
	}
	if entry := env.store.Get("+15551234567"); entry.QueueMode != "interrupt" {
		t.Errorf("queue mode not persisted: %+v", entry)
	}

	got = singleText(t, env.reply(t, dm("/queue default")))
	if got != SystemMark+" Queue mode reset to default." {
		t.Errorf("reset ack = %q", got)
	}
	if entry := env.store.Get("+15551234567"); entry.QueueMode != "" {
		t.Errorf("queue mode should be cleared: %+v", entry)
	}
}

func TestAbortTrigger(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("warm up the session"))

	got := singleText(t, env.reply(t, dm("stop")))
	if got != SystemMark+" Agent was aborted." {
		t.Errorf("abort reply = %q", got)
	}
	if len(env.runtime.aborted) == 0 {
		t.Error("runtime abort was not invoked")
	}
	if entry := env.store.Get("+15551234567"); !entry.AbortedLastRun {
		t.Error("abortedLastRun flag not persisted")
	}

	// The next turn consumes the hint.
	env.reply(t, dm("continue please"))
	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "previous agent run was aborted") {
		t.Errorf("aborted hint missing from body: %q", req.Message)
	}
	if entry := env.store.Get("+15551234567"); entry.AbortedLastRun {
		t.Error("abort flag should be consumed")
	}
}

func TestAbortWithoutEntryUsesCache(t *testing.T) {
	env := newTestEnv(t)

	got := singleText(t, env.reply(t, dm("abort")))
	if got != SystemMark+" Agent was aborted." {
		t.Errorf("abort reply = %q", got)
	}
	// First real message creates the entry and picks up the cached abort.
	env.reply(t, dm("hello"))
	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "previous agent run was aborted") {
		t.Errorf("cached abort hint missing: %q", req.Message)
	}
}

func TestResetTriggerStartsNewSession(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("first message"))
	before := env.store.Get("+15551234567").SessionID

	env.reply(t, dm("/new and here is my question"))
	after := env.store.Get("+15551234567").SessionID
	if before == after {
		t.Error("reset trigger should rotate the session id")
	}
	req := env.runtime.lastRequest(t)
	if req.Message != "and here is my question" {
		t.Errorf("remainder body = %q", req.Message)
	}
}

func TestBareResetSendsGreeterPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("/reset"))
	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "A new session was started via /new or /reset.") {
		t.Errorf("greet prompt missing: %q", req.Message)
	}
}

func TestEmptyBodyGetsCaptionHint(t *testing.T) {
	env := newTestEnv(t)
	got := singleText(t, env.reply(t, dm("")))
	if got != "I didn't receive any text in your message. Please resend or add a caption." {
		t.Errorf("empty body reply = %q", got)
	}
}

func TestMediaNoteAppended(t *testing.T) {
	env := newTestEnv(t)
	msg := dm("look at this")
	msg.MediaPath = "/tmp/in/photo.jpg"
	msg.MediaType = "image/jpeg"
	env.reply(t, msg)

	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "[media attached: /tmp/in/photo.jpg (image/jpeg)]") {
		t.Errorf("media note missing: %q", req.Message)
	}
	if !strings.Contains(req.Message, "MEDIA:https://example.com/image.jpg") {
		t.Errorf("media reply hint missing: %q", req.Message)
	}
}

func TestTranscriptAppended(t *testing.T) {
	env := newTestEnv(t)
	msg := dm("")
	msg.Transcript = "hello from a voice note"
	env.reply(t, msg)

	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "Transcript:\nhello from a voice note") {
		t.Errorf("transcript missing: %q", req.Message)
	}
}

func TestQueueModeEnqueuesBehindActiveRun(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Routing.Queue.Mode = "queue"
	env.runtime.enqueueOK = true

	payloads := env.reply(t, dm("while busy"))
	if payloads != nil {
		t.Errorf("queued message should produce no reply, got %+v", payloads)
	}
	if len(env.runtime.enqueued) != 1 || env.runtime.enqueued[0] != "while busy" {
		t.Errorf("enqueued = %v", env.runtime.enqueued)
	}
}

func TestInterruptModeClearsLane(t *testing.T) {
	env := newTestEnv(t)
	// telegram defaults to interrupt
	env.runtime.laneSize = 2
	env.reply(t, dm("urgent correction"))

	if len(env.runtime.cleared) == 0 {
		t.Error("interrupt mode should clear the lane")
	}
	if len(env.runtime.aborted) == 0 {
		t.Error("interrupt mode should abort the active run")
	}
}

func TestSurfaceQueueDefaults(t *testing.T) {
	tests := []struct {
		surface string
		want    string
	}{
		{"discord", "queue"},
		{"webchat", "queue"},
		{"telegram", "interrupt"},
		{"whatsapp", "interrupt"},
	}
	for _, tt := range tests {
		if got := string(defaultQueueModeForSurface(tt.surface)); got != tt.want {
			t.Errorf("defaultQueueModeForSurface(%q) = %q, want %q", tt.surface, got, tt.want)
		}
	}
}

func TestHeartbeatTokenStripped(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.result = &agent.RunResult{Payloads: []agent.Payload{
		{Text: "HEARTBEAT_OK"},
		{Text: "All systems nominal. HEARTBEAT_OK"},
	}}

	payloads := env.reply(t, dm("anything new?"))
	if len(payloads) != 1 {
		t.Fatalf("payloads = %+v, want token-only payload dropped", payloads)
	}
	if payloads[0].Text != "All systems nominal." {
		t.Errorf("stripped text = %q", payloads[0].Text)
	}
}

func TestHeartbeatTurnKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.result = &agent.RunResult{Payloads: []agent.Payload{{Text: "HEARTBEAT_OK"}}}

	payloads, err := env.engine.GetReply(context.Background(), dm("heartbeat prompt"),
		Options{IsHeartbeat: true})
	if err != nil {
		t.Fatalf("GetReply: %v", err)
	}
	if len(payloads) != 1 || payloads[0].Text != "HEARTBEAT_OK" {
		t.Errorf("heartbeat payloads = %+v", payloads)
	}
}

func TestSilentReplyDropped(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.result = &agent.RunResult{Payloads: []agent.Payload{{Text: "NO_REPLY"}}}

	payloads := env.reply(t, dm("group chatter"))
	if payloads != nil {
		t.Errorf("silent reply should be dropped, got %+v", payloads)
	}
}

func TestRunErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.runErr = context.DeadlineExceeded

	got := singleText(t, env.reply(t, dm("hello")))
	if got != "⚠️ Agent failed. Check gateway logs." {
		t.Errorf("generic error reply = %q", got)
	}

	env.runtime.runErr = &overflowErr{}
	got = singleText(t, env.reply(t, dm("hello again")))
	if got != "⚠️ Context overflow - conversation too long. Starting fresh might help!" {
		t.Errorf("overflow reply = %q", got)
	}
}

type overflowErr struct{}

func (*overflowErr) Error() string { return "request exceeds context window limit" }

func TestUsagePersisted(t *testing.T) {
	env := newTestEnv(t)
	env.runtime.result = &agent.RunResult{
		Payloads: []agent.Payload{{Text: "answer"}},
		Model:    "claude-sonnet-4-5",
		Usage: providers.Usage{
			PromptTokens:     1000,
			CompletionTokens: 200,
			TotalTokens:      1200,
			CacheReadTokens:  500,
		},
	}
	env.reply(t, dm("question"))

	entry := env.store.Get("+15551234567")
	if entry.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", entry.Model)
	}
	if entry.TotalTokens != 1500 { // prompt + cache read
		t.Errorf("total tokens = %d, want 1500", entry.TotalTokens)
	}
	if entry.ContextTokens != model.DefaultContextTokens {
		t.Errorf("context tokens = %d", entry.ContextTokens)
	}
}

func TestVerboseNewSessionMarker(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Agent.VerboseDefault = "on"

	payloads := env.reply(t, dm("hello"))
	if len(payloads) != 2 {
		t.Fatalf("payloads = %+v, want marker plus reply", payloads)
	}
	if !strings.HasPrefix(payloads[0].Text, "🧭 New session: ") {
		t.Errorf("marker = %q", payloads[0].Text)
	}
}

func TestModelSwitchQueuesSystemEventForMainSession(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Session.Scope = "global" // sessions collapse onto the main key

	env.reply(t, dm("/model opus"))
	env.reply(t, dm("what model are you?"))

	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "System: Model switched to opus (anthropic/claude-opus-4-1).") {
		t.Errorf("system block missing model switch: %q", req.Message)
	}
}

func TestNewMainSessionGetsProviderSummary(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Session.Scope = "global" // collapse onto the main session

	env.reply(t, dm("hello there"))
	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.Message, "System: Providers configured: anthropic, openai") {
		t.Errorf("provider summary missing on new session: %q", req.Message)
	}
	if !strings.Contains(req.Message, "System: Default model: anthropic/claude-sonnet-4-5") {
		t.Errorf("default model line missing: %q", req.Message)
	}

	// Later turns in the same session skip the summary.
	env.reply(t, dm("second message"))
	req = env.runtime.lastRequest(t)
	if strings.Contains(req.Message, "Providers configured") {
		t.Errorf("summary should not repeat mid-session: %q", req.Message)
	}
}

func TestProviderSummarySkipsNonMainSessions(t *testing.T) {
	env := newTestEnv(t) // per-sender scope

	env.reply(t, dm("hello"))
	req := env.runtime.lastRequest(t)
	if strings.Contains(req.Message, "Providers configured") {
		t.Errorf("per-sender session should not get the summary: %q", req.Message)
	}
}

func TestSkillsSnapshotComputedOnceAndReused(t *testing.T) {
	env := newTestEnv(t)
	ws := t.TempDir()
	env.cfg.Agent.Workspace = ws

	skillDir := filepath.Join(ws, "skills", "weather")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSkill := func(desc string) {
		t.Helper()
		err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(desc+"\n"), 0o644)
		if err != nil {
			t.Fatal(err)
		}
	}
	writeSkill("Fetch the local forecast.")

	env.reply(t, dm("hello"))
	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.SkillsSnapshot, "- weather: Fetch the local forecast.") {
		t.Errorf("skills snapshot missing from run: %q", req.SkillsSnapshot)
	}
	entry := env.store.Get("+15551234567")
	if entry.SkillsSnapshot != req.SkillsSnapshot {
		t.Errorf("snapshot not cached on entry: %q", entry.SkillsSnapshot)
	}

	// Mid-session turns reuse the cache even after the files change.
	writeSkill("Changed on disk.")
	env.reply(t, dm("second message"))
	req = env.runtime.lastRequest(t)
	if !strings.Contains(req.SkillsSnapshot, "Fetch the local forecast.") {
		t.Errorf("cached snapshot should survive file edits: %q", req.SkillsSnapshot)
	}

	// A session reset rescans the workspace.
	env.reply(t, dm("/new fresh question"))
	req = env.runtime.lastRequest(t)
	if !strings.Contains(req.SkillsSnapshot, "Changed on disk.") {
		t.Errorf("new session should recompute the snapshot: %q", req.SkillsSnapshot)
	}
}

func TestHeartbeatModelOverrideBypassesAllowlist(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Agent.AllowedModels = config.FlexibleStringSlice{"sonnet"}

	_, err := env.engine.GetReply(context.Background(), dm("anything to report?"),
		Options{IsHeartbeat: true, ModelOverride: "opus"})
	if err != nil {
		t.Fatalf("GetReply: %v", err)
	}
	if req := env.runtime.lastRequest(t); req.Model != "claude-opus-4-1" {
		t.Errorf("run model = %q, want the configured heartbeat model", req.Model)
	}

	// Unresolvable refs fall back to the default model.
	_, err = env.engine.GetReply(context.Background(), dm("still there?"),
		Options{IsHeartbeat: true, ModelOverride: "warp-drive"})
	if err != nil {
		t.Fatalf("GetReply: %v", err)
	}
	if req := env.runtime.lastRequest(t); req.Model != "claude-sonnet-4-5" {
		t.Errorf("run model = %q, want the default", req.Model)
	}
}

func TestStatusCommand(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, dm("warm up"))

	got := singleText(t, env.reply(t, dm("/status")))
	if !strings.HasPrefix(got, SystemMark+" Status") {
		t.Errorf("status = %q", got)
	}
	if !strings.Contains(got, "Model: anthropic/claude-sonnet-4-5") {
		t.Errorf("status missing model:\n%s", got)
	}
	if !strings.Contains(got, "Session: +15551234567 (scope: per-sender)") {
		t.Errorf("status missing session line:\n%s", got)
	}
}

func TestRestartCommand(t *testing.T) {
	env := newTestEnv(t)
	restarted := false
	env.engine.RequestRestart = func() { restarted = true }

	got := singleText(t, env.reply(t, dm("/restart")))
	if !strings.Contains(got, "Restarting clawrelay") {
		t.Errorf("restart reply = %q", got)
	}
	if !restarted {
		t.Error("RequestRestart hook not invoked")
	}
}

func groupMsg(body string) MsgContext {
	return MsgContext{
		Body:         body,
		From:         "group:tg-42",
		Surface:      "telegram",
		ChatType:     "group",
		GroupID:      "tg-42",
		GroupSubject: "Test Group",
		WasMentioned: true,
	}
}

func TestActivationCommandFlow(t *testing.T) {
	env := newTestEnv(t)

	// Not a group chat.
	got := singleText(t, env.reply(t, dm("/activation always")))
	if got != SystemMark+" Group activation only applies to group chats." {
		t.Errorf("dm reply = %q", got)
	}

	// Group, non-owner: silent.
	msg := groupMsg("/activation always")
	if payloads := env.reply(t, msg); payloads != nil {
		t.Errorf("non-owner should get silence, got %+v", payloads)
	}

	// Owner without a mode.
	msg.IsOwner = true
	msg.Body = "/activation"
	got = singleText(t, env.reply(t, msg))
	if got != SystemMark+" Usage: /activation mention|always" {
		t.Errorf("usage reply = %q", got)
	}

	// Owner sets a mode.
	msg.Body = "/activation always"
	got = singleText(t, env.reply(t, msg))
	if got != SystemMark+" Group activation set to always." {
		t.Errorf("set reply = %q", got)
	}
	entry := env.store.Get("group:telegram:tg-42")
	if entry == nil || entry.GroupActivation != "always" || !entry.GroupActivationNeedsIntro {
		t.Errorf("activation not persisted: %+v", entry)
	}
}

func TestGroupIntroSentOnFirstTurn(t *testing.T) {
	env := newTestEnv(t)
	env.reply(t, groupMsg("hello bot"))

	req := env.runtime.lastRequest(t)
	if !strings.Contains(req.ExtraSystemPrompt, "Telegram group chat") {
		t.Errorf("group intro missing: %q", req.ExtraSystemPrompt)
	}
	if !strings.Contains(req.ExtraSystemPrompt, "Group subject: Test Group.") {
		t.Errorf("subject missing: %q", req.ExtraSystemPrompt)
	}
	if !strings.Contains(req.ExtraSystemPrompt, "trigger-only") {
		t.Errorf("activation line missing: %q", req.ExtraSystemPrompt)
	}
	if entry := env.store.Get("group:telegram:tg-42"); entry.DisplayName != "Test Group (telegram)" {
		t.Errorf("group display name = %q", entry.DisplayName)
	}

	// Second turn in the same session skips the intro.
	env.reply(t, groupMsg("second message"))
	req = env.runtime.lastRequest(t)
	if req.ExtraSystemPrompt != "" {
		t.Errorf("intro should not repeat: %q", req.ExtraSystemPrompt)
	}
}

func TestShouldEngage(t *testing.T) {
	env := newTestEnv(t)

	if !env.engine.ShouldEngage(dm("hi")) {
		t.Error("direct messages always engage")
	}

	msg := groupMsg("hi everyone")
	msg.WasMentioned = false
	if env.engine.ShouldEngage(msg) {
		t.Error("unmentioned group message should not engage by default")
	}
	msg.WasMentioned = true
	if !env.engine.ShouldEngage(msg) {
		t.Error("mentioned group message should engage")
	}

	// Always-on activation takes every message.
	owner := groupMsg("/activation always")
	owner.IsOwner = true
	env.reply(t, owner)
	msg.WasMentioned = false
	if !env.engine.ShouldEngage(msg) {
		t.Error("always-on group should engage without a mention")
	}
}
