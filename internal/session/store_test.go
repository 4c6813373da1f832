package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFreshnessBoundary(t *testing.T) {
	idle := 30 * time.Minute
	now := time.Now()
	entry := &Entry{SessionID: "s1", UpdatedAt: now.Add(-idle).UnixMilli()}

	// Exactly at the idle limit the session is still fresh.
	if !entry.Fresh(now, idle) {
		t.Fatal("entry at exactly idleMs must be fresh")
	}
	// One millisecond past the limit it is expired.
	if entry.Fresh(now.Add(time.Millisecond), idle) {
		t.Fatal("entry past idleMs must be expired")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewStore(path)

	if m := store.Load(); len(m) != 0 {
		t.Fatalf("missing file should load empty, got %d entries", len(m))
	}

	if err := store.Update(func(m map[string]*Entry) {
		m["alice"] = &Entry{SessionID: "id-1", UpdatedAt: 42, ThinkingLevel: "high"}
	}); err != nil {
		t.Fatal(err)
	}

	got := store.Get("alice")
	if got == nil || got.SessionID != "id-1" || got.ThinkingLevel != "high" {
		t.Fatalf("got %+v", got)
	}

	// Mutating the copy must not leak back into the store.
	got.ThinkingLevel = "low"
	if again := store.Get("alice"); again.ThinkingLevel != "high" {
		t.Fatalf("store entry mutated through copy: %+v", again)
	}
}

func TestStoreCorruptFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if m := NewStore(path).Load(); len(m) != 0 {
		t.Fatalf("corrupt file should load empty, got %d entries", len(m))
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewStore(path)
	for _, level := range []string{"low", "medium", "high"} {
		level := level
		if err := store.Update(func(m map[string]*Entry) {
			m["k"] = &Entry{SessionID: "s", ThinkingLevel: level}
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := store.Get("k"); got.ThinkingLevel != "high" {
		t.Fatalf("got %q, want high", got.ThinkingLevel)
	}
}

func TestResolveKey(t *testing.T) {
	tests := []struct {
		name     string
		scope    Scope
		surface  string
		from     string
		chatType string
		want     string
	}{
		{"per sender dm", ScopePerSender, "telegram", "12345", "direct", "12345"},
		{"whatsapp prefix stripped", ScopePerSender, "whatsapp", "whatsapp:+15550001111", "direct", "+15550001111"},
		{"global scope", ScopeGlobal, "telegram", "12345", "direct", "main"},
		{"group via prefix", ScopePerSender, "discord", "group:987", "", "group:discord:987"},
		{"group via chat type", ScopePerSender, "telegram", "-100555", "group", "group:telegram:-100555"},
		{"empty sender falls back", ScopePerSender, "webchat", "", "direct", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveKey(tt.scope, tt.surface, tt.from, tt.chatType, "main")
			if got != tt.want {
				t.Errorf("ResolveKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrateLegacyGroupKey(t *testing.T) {
	gk := ResolveGroupKey("telegram", "group:-42", "")
	if gk == nil || gk.Key != "group:telegram:-42" || gk.LegacyKey != "group:-42" {
		t.Fatalf("got %+v", gk)
	}

	m := map[string]*Entry{"group:-42": {SessionID: "legacy"}}
	if !MigrateLegacyGroupKey(m, gk) {
		t.Fatal("expected migration")
	}
	if m[gk.Key] == nil || m[gk.Key].SessionID != "legacy" || m[gk.LegacyKey] != nil {
		t.Fatalf("bad migration result: %+v", m)
	}

	// Canonical entry present: legacy is left alone.
	m2 := map[string]*Entry{
		"group:-42":          {SessionID: "legacy"},
		"group:telegram:-42": {SessionID: "current"},
	}
	if MigrateLegacyGroupKey(m2, gk) {
		t.Fatal("must not overwrite canonical entry")
	}
	if m2[gk.Key].SessionID != "current" {
		t.Fatalf("canonical entry clobbered: %+v", m2[gk.Key])
	}
}

func TestGroupDisplayName(t *testing.T) {
	gk := ResolveGroupKey("telegram", "group:tg-42", "")
	if gk == nil {
		t.Fatal("group key not resolved")
	}
	if got := GroupDisplayName(gk, "Family"); got != "Family (telegram)" {
		t.Errorf("with subject = %q", got)
	}
	if got := GroupDisplayName(gk, ""); got != "tg-42 (telegram)" {
		t.Errorf("subject fallback = %q", got)
	}
	if got := GroupDisplayName(nil, "Family"); got != "" {
		t.Errorf("nil key = %q, want empty", got)
	}
}
