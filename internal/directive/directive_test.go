package directive

import (
	"strings"
	"testing"
)

func TestExtractThink(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		has     bool
		level   ThinkLevel
		raw     string
		cleaned string
	}{
		{"colon form", "/think:high what is 2+2", true, ThinkHigh, "high", "what is 2+2"},
		{"space form", "/think high what is 2+2", true, ThinkHigh, "high", "what is 2+2"},
		{"short alias", "/t:low hello", true, ThinkLow, "low", "hello"},
		{"long alias", "/thinking:medium hi", true, ThinkMedium, "medium", "hi"},
		{"invalid level keeps directive flag", "/think:banana hi", true, "", "banana", "hi"},
		{"bare directive", "/think", true, "", "", ""},
		{"mid message", "compute this /think:high please", true, ThinkHigh, "high", "compute this please"},
		{"no directive", "nothing here", false, "", "", "nothing here"},
		{"not a directive word", "/thinker high", false, "", "", "/thinker high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Extract(tt.body)
			if d.HasThink != tt.has {
				t.Fatalf("HasThink = %v, want %v", d.HasThink, tt.has)
			}
			if d.Think != tt.level {
				t.Errorf("Think = %q, want %q", d.Think, tt.level)
			}
			if d.RawThink != tt.raw {
				t.Errorf("RawThink = %q, want %q", d.RawThink, tt.raw)
			}
			if d.Cleaned != tt.cleaned {
				t.Errorf("Cleaned = %q, want %q", d.Cleaned, tt.cleaned)
			}
		})
	}
}

func TestExtractPipelineOrder(t *testing.T) {
	d := Extract("/think:high /verbose:on /model:claude /queue:interrupt run it")
	if !d.HasThink || !d.HasVerbose || !d.HasModel || !d.HasQueue {
		t.Fatalf("expected every directive present: %+v", d)
	}
	if d.Think != ThinkHigh || d.Verbose != VerboseOn || d.RawModel != "claude" || d.Queue != QueueModeInterrupt {
		t.Fatalf("unexpected parse: %+v", d)
	}
	if d.Cleaned != "run it" {
		t.Fatalf("Cleaned = %q, want %q", d.Cleaned, "run it")
	}
}

func TestExtractIsIdempotentOnCleanedText(t *testing.T) {
	first := Extract("/think:high /queue:queue hello there")
	second := Extract(first.Cleaned)
	if second.HasAny() {
		t.Fatalf("second pass found directives in %q: %+v", first.Cleaned, second)
	}
	if second.Cleaned != first.Cleaned {
		t.Fatalf("second pass changed text: %q -> %q", first.Cleaned, second.Cleaned)
	}
}

func TestExtractQueue(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		mode  QueueMode
		reset bool
	}{
		{"queue", "/queue:queue", QueueModeQueue, false},
		{"queued synonym", "/queue:queued", QueueModeQueue, false},
		{"interrupt", "/queue:interrupt", QueueModeInterrupt, false},
		{"interrupts synonym", "/queue interrupts", QueueModeInterrupt, false},
		{"abort synonym", "/queue:abort", QueueModeInterrupt, false},
		{"reset", "/queue:default", "", true},
		{"clear", "/queue:clear", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Extract(tt.body)
			if !d.HasQueue {
				t.Fatal("expected queue directive")
			}
			if d.Queue != tt.mode {
				t.Errorf("Queue = %q, want %q", d.Queue, tt.mode)
			}
			if d.QueueReset != tt.reset {
				t.Errorf("QueueReset = %v, want %v", d.QueueReset, tt.reset)
			}
		})
	}
}

func TestExtractModelStatus(t *testing.T) {
	d := Extract("/model:status")
	if !d.HasModel || !d.ModelIsStatus() {
		t.Fatalf("expected status model directive: %+v", d)
	}
	if d2 := Extract("/model gpt-test"); !d2.HasModel || d2.RawModel != "gpt-test" {
		t.Fatalf("expected model arg gpt-test: %+v", d2)
	}
	if d3 := Extract("/model"); !d3.HasModel || d3.RawModel != "" {
		t.Fatalf("expected bare model directive: %+v", d3)
	}
}

func TestVerboseAliasBoundary(t *testing.T) {
	// "/video" must not register as the /v directive.
	d := Extract("/video games are fun")
	if d.HasVerbose {
		t.Fatalf("matched verbose inside /video: %+v", d)
	}
}

func TestStripStructuralPrefixes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"marker", "history stuff\n[Current message - respond to this]\nalice: /new", "/new"},
		{"timestamp tag", "[Dec 4 17:35] /new", "/new"},
		{"sender prefix", "Alice W.: hello", "hello"},
		{"plain", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripStructuralPrefixes(tt.in); got != tt.want {
				t.Errorf("StripStructuralPrefixes(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripMentions(t *testing.T) {
	ms := MentionStrip{Self: "+15550001111", Patterns: []string{`\bclaw\b`, "("}}
	got := StripMentions("@+15550001111 claw /think:high <@12345> @1234567", ms)
	if strings.Contains(got, "claw") || strings.Contains(got, "@") {
		t.Fatalf("mentions left behind: %q", got)
	}
	if got != "/think:high" {
		t.Fatalf("got %q, want %q", got, "/think:high")
	}
}

func TestIsAbortTrigger(t *testing.T) {
	for _, word := range []string{"stop", "ESC", " abort ", "wait", "exit"} {
		if !IsAbortTrigger(word) {
			t.Errorf("expected %q to abort", word)
		}
	}
	for _, text := range []string{"please stop", "stop it", "", "exit the building"} {
		if IsAbortTrigger(text) {
			t.Errorf("did not expect %q to abort", text)
		}
	}
}

func TestMatchResetTrigger(t *testing.T) {
	triggers := []string{"/new", "/reset"}
	if _, ok := MatchResetTrigger("/new", "/new", triggers); !ok {
		t.Fatal("bare /new should reset")
	}
	rem, ok := MatchResetTrigger("/new plan my week", "/new plan my week", triggers)
	if !ok || rem != "plan my week" {
		t.Fatalf("got (%q, %v)", rem, ok)
	}
	if _, ok := MatchResetTrigger("/newer", "/newer", triggers); ok {
		t.Fatal("/newer must not reset")
	}
}

func TestParseActivationCommand(t *testing.T) {
	if c := ParseActivationCommand("/activation always"); !c.HasCommand || c.Mode != ActivationAlways {
		t.Fatalf("got %+v", c)
	}
	if c := ParseActivationCommand("/activation"); !c.HasCommand || c.Mode != "" {
		t.Fatalf("got %+v", c)
	}
	if c := ParseActivationCommand("activation now"); c.HasCommand {
		t.Fatalf("got %+v", c)
	}
}

func TestDirectiveOnlyDetection(t *testing.T) {
	// A group message that is mention plus directives strips down to nothing.
	d := Extract("@1234567 /think:high /verbose:on")
	stripped := StripStructuralPrefixes(d.Cleaned)
	noMentions := StripMentions(stripped, MentionStrip{})
	if noMentions != "" {
		t.Fatalf("expected empty remainder, got %q", noMentions)
	}
}
