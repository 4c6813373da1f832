package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/clawrelay/clawrelay/internal/providers"
)

// Embedded is the in-process Runtime. One lane per session key: an active
// run holds the lane, later messages either queue behind it or abort it.
type Embedded struct {
	systemPrompt string

	mu    sync.Mutex
	lanes map[string]*laneState
}

type laneState struct {
	runMu   sync.Mutex // serializes runs on the lane
	active  bool
	cancel  context.CancelFunc
	backlog []string
}

// NewEmbedded builds the in-process runtime. systemPrompt is the base system
// prompt shared by all sessions; per-run additions come via RunRequest.
func NewEmbedded(systemPrompt string) *Embedded {
	return &Embedded{
		systemPrompt: systemPrompt,
		lanes:        make(map[string]*laneState),
	}
}

// ResolveLane maps a session key to its lane identifier. Lane identifiers
// double as file-name segments, so unsafe characters are replaced.
func (e *Embedded) ResolveLane(sessionKey string) string {
	if sessionKey == "" {
		return "main"
	}
	var b strings.Builder
	b.Grow(len(sessionKey))
	for _, r := range sessionKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (e *Embedded) laneFor(lane string) *laneState {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.lanes[lane]
	if !ok {
		ls = &laneState{}
		e.lanes[lane] = ls
	}
	return ls
}

// Enqueue queues a message behind the lane's active run. Returns false when
// the lane is idle; the caller then runs the message itself.
func (e *Embedded) Enqueue(lane, body string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.lanes[lane]
	if !ok || !ls.active {
		return false
	}
	ls.backlog = append(ls.backlog, body)
	slog.Debug("queued message behind active run", "lane", lane, "backlog", len(ls.backlog))
	return true
}

// Abort cancels the lane's active run, if any.
func (e *Embedded) Abort(lane string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.lanes[lane]
	if !ok || !ls.active || ls.cancel == nil {
		return false
	}
	ls.cancel()
	slog.Info("aborted active run", "lane", lane)
	return true
}

// LaneSize reports the lane's backlog length.
func (e *Embedded) LaneSize(lane string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ls, ok := e.lanes[lane]; ok {
		return len(ls.backlog)
	}
	return 0
}

// ClearLane drops the lane's backlog.
func (e *Embedded) ClearLane(lane string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls, ok := e.lanes[lane]
	if !ok {
		return 0
	}
	n := len(ls.backlog)
	ls.backlog = nil
	return n
}

// Run executes the requested turn and then drains the lane's backlog,
// one queued message per turn, appending each turn's payloads.
func (e *Embedded) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Provider == nil {
		return nil, errors.New("agent: no provider for run")
	}

	lane := e.ResolveLane(req.SessionKey)
	ls := e.laneFor(lane)
	ls.runMu.Lock()
	defer ls.runMu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	ls.active = true
	ls.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		ls.active = false
		ls.cancel = nil
		e.mu.Unlock()
	}()

	result := &RunResult{Model: req.Model}
	body := req.Message

	for {
		aborted, err := e.runTurn(runCtx, req, body, result)
		if aborted {
			result.Aborted = true
			return result, nil
		}
		if err != nil {
			return result, err
		}

		// Drain one queued message per iteration.
		e.mu.Lock()
		if len(ls.backlog) == 0 {
			e.mu.Unlock()
			return result, nil
		}
		body = ls.backlog[0]
		ls.backlog = ls.backlog[1:]
		e.mu.Unlock()
		slog.Debug("draining queued message", "lane", lane, "remaining", e.LaneSize(lane))
	}
}

// runTurn executes one provider call and appends its payload to result.
// The aborted return is true when the run context was canceled mid-turn.
func (e *Embedded) runTurn(ctx context.Context, req RunRequest, body string, result *RunResult) (bool, error) {
	history := loadTranscript(req.TranscriptPath)
	messages := append(history, providers.Message{Role: "user", Content: body})

	system := e.systemPrompt
	if req.ExtraSystemPrompt != "" {
		if system != "" {
			system += "\n\n"
		}
		system += req.ExtraSystemPrompt
	}
	if req.SkillsSnapshot != "" {
		if system != "" {
			system += "\n\n"
		}
		system += req.SkillsSnapshot
	}

	chatReq := providers.ChatRequest{
		Model:         req.Model,
		System:        system,
		Messages:      messages,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		ThinkingLevel: req.ThinkingLevel,
	}

	var text strings.Builder
	emitted := 0 // bytes of text already flushed to OnPartial

	resp, err := req.Provider.ChatStream(ctx, chatReq, func(chunk providers.StreamChunk) {
		if chunk.Content != "" {
			text.WriteString(chunk.Content)
		}
		if req.OnPartial == nil {
			return
		}
		// Flush completed paragraphs as they stream in.
		buf := text.String()
		for {
			idx := strings.Index(buf[emitted:], "\n\n")
			if idx < 0 {
				break
			}
			block := buf[emitted : emitted+idx]
			emitted += idx + 2
			e.emitPartial(req, block)
		}
	})

	if err != nil {
		if ctx.Err() != nil {
			// Keep the user line so the aborted turn stays in context.
			e.persistTurn(req, body, text.String())
			return true, nil
		}
		return false, err
	}
	if resp != nil {
		result.Usage.Add(resp.Usage)
	}

	final := SanitizeAssistantContent(text.String())
	cleaned, mediaURLs := ExtractMediaLines(final)

	payload := Payload{Text: cleaned, MediaURLs: mediaURLs}
	if !payload.IsEmpty() {
		result.Payloads = append(result.Payloads, payload)
	}

	e.persistTurn(req, body, text.String())
	return false, nil
}

func (e *Embedded) emitPartial(req RunRequest, block string) {
	sanitized := SanitizeAssistantContent(block)
	cleaned, mediaURLs := ExtractMediaLines(sanitized)
	p := Payload{Text: cleaned, MediaURLs: mediaURLs}
	if !p.IsEmpty() {
		req.OnPartial(p)
	}
}

func (e *Embedded) persistTurn(req RunRequest, userBody, assistantText string) {
	lines := []transcriptLine{{Role: "user", Content: userBody}}
	if s := strings.TrimSpace(assistantText); s != "" {
		lines = append(lines, transcriptLine{Role: "assistant", Content: s})
	}
	if err := appendTranscript(req.TranscriptPath, lines...); err != nil {
		slog.Warn("failed to persist transcript turn",
			"session_id", req.SessionID, "error", err)
	}
}
