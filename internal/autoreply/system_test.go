package autoreply

import (
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCompactSystemLines(t *testing.T) {
	in := []string{
		"Model switched to opus (anthropic/claude-opus-4-1).",
		"Heartbeat delivered to owner",
		"wake triggered, reason periodic",
		"Queue cleared · last input 2m ago · 3 dropped",
	}
	want := []string{
		"Model switched to opus (anthropic/claude-opus-4-1).",
		"Queue cleared · 3 dropped",
	}
	if got := compactSystemLines(in); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRenderSystemBlock(t *testing.T) {
	if got := renderSystemBlock(nil); got != "" {
		t.Errorf("empty input should render nothing, got %q", got)
	}
	got := renderSystemBlock([]string{"a", "b"})
	if got != "System: a\nSystem: b" {
		t.Errorf("got %q", got)
	}
}

func TestAbortCacheTTLAndBound(t *testing.T) {
	c := newAbortCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Mark("k1")
	if !c.Take("k1") {
		t.Error("fresh mark should be taken")
	}
	if c.Take("k1") {
		t.Error("take consumes the mark")
	}

	c.Mark("k2")
	now = now.Add(6 * time.Minute)
	if c.Take("k2") {
		t.Error("expired mark should not be taken")
	}

	// Filling past capacity evicts the oldest entry.
	base := now
	for i := 0; i < c.max; i++ {
		now = base.Add(time.Duration(i) * time.Second)
		c.Mark("key-" + strconv.Itoa(i))
	}
	now = base.Add(time.Duration(c.max) * time.Second)
	c.Mark("newest")
	if len(c.entries) > c.max {
		t.Errorf("cache grew past max: %d", len(c.entries))
	}
	if !c.Take("newest") {
		t.Error("newest mark should survive eviction")
	}
}

func TestBuildGroupIntroAlwaysOn(t *testing.T) {
	intro := buildGroupIntro("discord", "Ops", []string{"alice", "bob"}, true)
	for _, want := range []string{
		"Discord group chat",
		"Group subject: Ops.",
		"Members: alice, bob.",
		"always-on",
		"NO_REPLY",
		"Address the specific sender",
	} {
		if !strings.Contains(intro, want) {
			t.Errorf("intro missing %q:\n%s", want, intro)
		}
	}
}
