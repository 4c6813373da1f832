// Package session persists per-conversation state for the reply engine: the
// active session id, idle expiry, sticky directive overrides and token usage.
// The whole store is one JSON file mapping session key to entry; writers do
// read-modify-write of the full map and the last write wins.
package session

import "time"

// Entry is the persisted state for one session key.
type Entry struct {
	SessionID string `json:"sessionId"`
	UpdatedAt int64  `json:"updatedAt"` // unix ms

	SystemSent     bool `json:"systemSent,omitempty"`
	AbortedLastRun bool `json:"abortedLastRun,omitempty"`

	// Sticky per-session overrides, set by inline directives.
	ThinkingLevel    string `json:"thinkingLevel,omitempty"`
	VerboseLevel     string `json:"verboseLevel,omitempty"`
	ModelOverride    string `json:"modelOverride,omitempty"`
	ProviderOverride string `json:"providerOverride,omitempty"`
	QueueMode        string `json:"queueMode,omitempty"`

	// Group chat state.
	GroupActivation           string `json:"groupActivation,omitempty"`
	GroupActivationNeedsIntro bool   `json:"groupActivationNeedsSystemIntro,omitempty"`

	// SkillsSnapshot caches the workspace skill listing, computed on the
	// first turn of a session and reused until the session rotates.
	SkillsSnapshot string `json:"skillsSnapshot,omitempty"`

	// Presentation metadata.
	DisplayName string `json:"displayName,omitempty"`
	ChatType    string `json:"chatType,omitempty"`
	Surface     string `json:"surface,omitempty"`
	Subject     string `json:"subject,omitempty"`

	// Usage from the last completed run.
	Model         string `json:"model,omitempty"`
	ContextTokens int    `json:"contextTokens,omitempty"`
	InputTokens   int64  `json:"inputTokens,omitempty"`
	OutputTokens  int64  `json:"outputTokens,omitempty"`
	TotalTokens   int64  `json:"totalTokens,omitempty"`
}

// Fresh reports whether the entry is still inside the idle window. The
// boundary is inclusive: an entry exactly idle-many milliseconds old is
// still fresh.
func (e *Entry) Fresh(now time.Time, idle time.Duration) bool {
	if e == nil {
		return false
	}
	return now.UnixMilli()-e.UpdatedAt <= idle.Milliseconds()
}

// Touch bumps the entry's update timestamp.
func (e *Entry) Touch(now time.Time) {
	e.UpdatedAt = now.UnixMilli()
}

// Clone returns a copy so callers can mutate without sharing.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// IsGroup reports whether the entry belongs to a group or room conversation.
func (e *Entry) IsGroup() bool {
	return e != nil && (e.ChatType == "group" || e.ChatType == "room")
}
