// Package agent runs conversational model turns for the reply engine.
//
// The engine talks to the runtime through a narrow interface: start a run,
// queue a message behind an active run, abort a run, and inspect or clear
// the per-session command lane. The embedded implementation in this package
// owns lane state, transcripts, and provider calls.
package agent

import (
	"context"

	"github.com/clawrelay/clawrelay/internal/providers"
)

// SilentReplyToken is emitted by the model when no user-visible reply should
// be sent. Delivery layers drop payloads carrying it.
const SilentReplyToken = "NO_REPLY"

// Payload is one deliverable unit of assistant output.
type Payload struct {
	Text      string
	MediaURLs []string
}

// IsEmpty reports whether the payload carries neither text nor media.
func (p Payload) IsEmpty() bool {
	return p.Text == "" && len(p.MediaURLs) == 0
}

// RunRequest describes a single agent turn.
type RunRequest struct {
	SessionID  string
	SessionKey string

	// Message is the fully assembled prompt body (system block, transcript,
	// media notes and hints already included by the caller).
	Message string

	// ExtraSystemPrompt augments the configured system prompt for this run
	// (group introductions and similar per-chat context).
	ExtraSystemPrompt string

	// SkillsSnapshot lists the workspace skills for this session; appended
	// to the system prompt when non-empty.
	SkillsSnapshot string

	Provider      providers.Provider
	Model         string
	ThinkingLevel string
	MaxTokens     int
	Temperature   float64

	// TranscriptPath is the JSONL conversation log backing this session.
	// Empty disables history and persistence.
	TranscriptPath string

	// OnPartial, when set, receives completed blocks as they stream in.
	OnPartial func(Payload)
}

// RunResult is the outcome of a run plus any backlog turns drained after it.
type RunResult struct {
	Payloads []Payload
	Usage    providers.Usage
	Model    string
	Aborted  bool
}

// Runtime is the engine-facing surface of the agent.
type Runtime interface {
	// Run executes one turn, then drains any messages queued on the same
	// lane while it ran. Queued turns append their payloads to the result.
	Run(ctx context.Context, req RunRequest) (*RunResult, error)

	// Enqueue adds a message behind the lane's active run. It returns false
	// when no run is active, in which case the caller runs the message
	// directly.
	Enqueue(lane, body string) bool

	// Abort cancels the lane's active run. Returns false when idle.
	Abort(lane string) bool

	// ResolveLane maps a session key to its command lane identifier.
	ResolveLane(sessionKey string) string

	// LaneSize reports how many messages are queued on the lane.
	LaneSize(lane string) int

	// ClearLane drops the lane's backlog and returns how many were dropped.
	ClearLane(lane string) int
}
