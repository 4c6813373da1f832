package session

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultMainKey is the shared key used when session scope is global.
	DefaultMainKey = "main"
	// DefaultIdleMinutes bounds how long a session survives without traffic.
	DefaultIdleMinutes = 60
)

// DefaultResetTriggers start a new session when they lead a message.
var DefaultResetTriggers = []string{"/new", "/reset"}

// Scope picks how DM session keys are derived.
type Scope string

const (
	ScopePerSender Scope = "per-sender"
	ScopeGlobal    Scope = "global"
)

// GroupKey is the resolution of a group conversation to its session key.
// LegacyKey is the pre-surface key format some stores still carry.
type GroupKey struct {
	Surface   string
	ID        string
	Key       string
	LegacyKey string
	ChatType  string
}

// ResolveGroupKey detects a group conversation and builds its session key.
// Group senders arrive as "group:{id}"; the surface disambiguates the same
// numeric id across platforms. Older stores used keys without the surface,
// so the legacy key is reported for one-time migration.
func ResolveGroupKey(surface, from, chatType string) *GroupKey {
	id := ""
	if strings.HasPrefix(from, "group:") {
		id = strings.TrimPrefix(from, "group:")
	} else if strings.EqualFold(strings.TrimSpace(chatType), "group") {
		id = from
	}
	if id == "" {
		return nil
	}
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		surface = "chat"
	}
	return &GroupKey{
		Surface:   surface,
		ID:        id,
		Key:       fmt.Sprintf("group:%s:%s", surface, id),
		LegacyKey: "group:" + id,
		ChatType:  "group",
	}
}

// ResolveKey maps an inbound message to its session store key.
//
//	group chats     -> group:{surface}:{id}
//	global scope    -> mainKey
//	per-sender (default) -> the sender address
func ResolveKey(scope Scope, surface, from, chatType, mainKey string) string {
	if mainKey == "" {
		mainKey = DefaultMainKey
	}
	if gk := ResolveGroupKey(surface, from, chatType); gk != nil {
		return gk.Key
	}
	if scope == ScopeGlobal {
		return mainKey
	}
	sender := strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")
	if sender == "" {
		return mainKey
	}
	return sender
}

// MigrateLegacyGroupKey moves a legacy-keyed entry to the canonical key when
// the canonical key has no entry yet. Returns true when a migration happened.
func MigrateLegacyGroupKey(m map[string]*Entry, gk *GroupKey) bool {
	if gk == nil || gk.LegacyKey == gk.Key {
		return false
	}
	legacy, ok := m[gk.LegacyKey]
	if !ok || m[gk.Key] != nil {
		return false
	}
	m[gk.Key] = legacy
	delete(m, gk.LegacyKey)
	return true
}

// GroupDisplayName builds a human label for session listings: the group
// subject, falling back to the raw group id, tagged with its surface.
func GroupDisplayName(gk *GroupKey, subject string) string {
	if gk == nil {
		return ""
	}
	label := subject
	if label == "" {
		label = gk.ID
	}
	return fmt.Sprintf("%s (%s)", label, gk.Surface)
}

// TranscriptPath locates the JSONL transcript for a session id.
func TranscriptPath(stateDir, sessionID string) string {
	return filepath.Join(stateDir, "transcripts", sessionID+".jsonl")
}
