// Package autoreply turns inbound chat messages into agent replies. It owns
// the full per-message pipeline: directive parsing, session load and reset,
// model resolution, queue-versus-interrupt decisions, the agent run, and
// reply shaping.
package autoreply

import "time"

// SystemMark prefixes system-style notices sent back to the user.
const SystemMark = "⚙️"

// HeartbeatOKToken is emitted by heartbeat prompts when nothing needs
// attention. It is stripped from user-facing output.
const HeartbeatOKToken = "HEARTBEAT_OK"

// bareSessionResetPrompt is sent to the agent when a reset trigger arrives
// with no accompanying text.
const bareSessionResetPrompt = "A new session was started via /new or /reset. " +
	"Say hi briefly (1-2 sentences) and ask what the user wants to do next. " +
	"Do not mention internal steps, files, tools, or reasoning."

// abortedRunHint is prepended to the next turn after a user abort.
const abortedRunHint = "Note: The previous agent run was aborted by the user. " +
	"Resume carefully or ask for clarification."

// MsgContext is one inbound message with its chat metadata.
type MsgContext struct {
	Body      string
	From      string
	To        string
	Surface   string // "telegram", "discord", "signal", "webchat", "whatsapp"
	ChatType  string // "direct" or "group"
	Timestamp time.Time

	// Sender identity.
	SenderName string
	IsOwner    bool

	// Group metadata, set when ChatType is "group".
	GroupID      string
	GroupSubject string
	GroupMembers []string
	WasMentioned bool

	// Inbound attachment, if any.
	MediaPath string
	MediaType string
	MediaURL  string

	// Transcript holds transcribed audio text when the channel ran the
	// transcriber on a voice note.
	Transcript string
}

// IsGroup reports whether the message came from a group chat.
func (m MsgContext) IsGroup() bool {
	return m.ChatType == "group" || m.ChatType == "room"
}

// ReplyPayload is one outbound reply unit.
type ReplyPayload struct {
	Text      string
	MediaURLs []string
}

// IsEmpty reports whether the payload carries nothing deliverable.
func (p ReplyPayload) IsEmpty() bool {
	return p.Text == "" && len(p.MediaURLs) == 0
}

// Options carries per-call hooks and flags for GetReply.
type Options struct {
	// OnReplyStart fires once when a run is about to begin (after queue
	// and directive handling). Channels use it to mark the chat as busy.
	OnReplyStart func()

	// OnPartialReply receives streamed blocks during the run. Delivery of
	// the final payloads is unaffected; this is for progress surfaces.
	OnPartialReply func(ReplyPayload)

	// StartTyping and StopTyping bracket the typing indicator. StartTyping
	// is re-invoked periodically while the run is in flight.
	StartTyping func() error
	StopTyping  func() error

	// IsHeartbeat marks agent-initiated heartbeat turns. Heartbeat output
	// keeps its HEARTBEAT_OK token; user-facing turns have it stripped.
	IsHeartbeat bool

	// ModelOverride pins a heartbeat turn to a specific model ref,
	// resolved against the catalog without the session allowlist.
	ModelOverride string
}
