// Package directive parses inline slash directives out of inbound chat
// messages. Directives tune a session (thinking level, verbosity, model,
// queue mode) and are consumed before the remaining text reaches the agent.
package directive

import "strings"

// ThinkLevel is a reasoning-effort hint passed through to the agent runtime.
type ThinkLevel string

const (
	ThinkOff     ThinkLevel = "off"
	ThinkMinimal ThinkLevel = "minimal"
	ThinkLow     ThinkLevel = "low"
	ThinkMedium  ThinkLevel = "medium"
	ThinkHigh    ThinkLevel = "high"
)

// VerboseLevel toggles tool-result forwarding and session markers.
type VerboseLevel string

const (
	VerboseOn  VerboseLevel = "on"
	VerboseOff VerboseLevel = "off"
)

// QueueMode decides what happens when a message arrives while a run is active.
type QueueMode string

const (
	QueueModeQueue     QueueMode = "queue"
	QueueModeInterrupt QueueMode = "interrupt"
)

// NormalizeThinkLevel maps a raw directive argument to a think level.
func NormalizeThinkLevel(raw string) (ThinkLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "off":
		return ThinkOff, true
	case "minimal":
		return ThinkMinimal, true
	case "low":
		return ThinkLow, true
	case "medium":
		return ThinkMedium, true
	case "high":
		return ThinkHigh, true
	}
	return "", false
}

// NormalizeVerboseLevel maps a raw directive argument to a verbose level.
func NormalizeVerboseLevel(raw string) (VerboseLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on":
		return VerboseOn, true
	case "off":
		return VerboseOff, true
	}
	return "", false
}

// NormalizeQueueMode maps a raw directive argument to a queue mode. Accepts
// the plural and "abort" synonyms users actually type.
func NormalizeQueueMode(raw string) (QueueMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queue", "queued":
		return QueueModeQueue, true
	case "interrupt", "interrupts", "abort":
		return QueueModeInterrupt, true
	}
	return "", false
}

// IsQueueReset reports whether the argument asks to clear the sticky queue
// mode instead of setting one.
func IsQueueReset(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "default", "reset", "clear":
		return true
	}
	return false
}

// Directives is the outcome of extracting every known directive from a
// message body. Has* flags are set whenever the directive keyword appeared,
// even when its argument was missing or unrecognized; the typed fields stay
// zero in that case and Raw* carries what the user typed.
type Directives struct {
	// Cleaned is the body with all matched directive tokens removed.
	Cleaned string

	HasThink bool
	RawThink string
	Think    ThinkLevel

	HasVerbose bool
	RawVerbose string
	Verbose    VerboseLevel

	HasModel bool
	RawModel string

	HasQueue   bool
	RawQueue   string
	Queue      QueueMode
	QueueReset bool
}

// HasAny reports whether any directive keyword was present.
func (d Directives) HasAny() bool {
	return d.HasThink || d.HasVerbose || d.HasModel || d.HasQueue
}

// ModelIsStatus reports whether the model directive asked for the model list
// rather than a selection.
func (d Directives) ModelIsStatus() bool {
	return d.HasModel && strings.EqualFold(strings.TrimSpace(d.RawModel), "status")
}

// directive keyword tables, longest alias first so "/think" wins over "/t".
var (
	thinkAliases   = []string{"thinking", "think", "t"}
	verboseAliases = []string{"verbose", "v"}
	modelAliases   = []string{"model"}
	queueAliases   = []string{"queue"}
)

// Extract tokenizes body and pulls out directives in the fixed pipeline
// order think, verbose, model, queue. Each extraction sees the text the
// previous one left behind, so interleaved directives and prose both work.
func Extract(body string) Directives {
	d := Directives{Cleaned: strings.TrimSpace(body)}
	if d.Cleaned == "" {
		return d
	}

	toks := newTokens(body)

	if raw, ok := toks.take(thinkAliases, wordArg); ok {
		d.HasThink = true
		d.RawThink = raw
		d.Think, _ = NormalizeThinkLevel(raw)
	}
	if raw, ok := toks.take(verboseAliases, wordArg); ok {
		d.HasVerbose = true
		d.RawVerbose = raw
		d.Verbose, _ = NormalizeVerboseLevel(raw)
	}
	if raw, ok := toks.take(modelAliases, modelArg); ok {
		d.HasModel = true
		d.RawModel = raw
	}
	if raw, ok := toks.take(queueAliases, wordArg); ok {
		d.HasQueue = true
		d.RawQueue = raw
		d.QueueReset = IsQueueReset(raw)
		if !d.QueueReset {
			d.Queue, _ = NormalizeQueueMode(raw)
		}
	}

	if toks.consumedAny {
		d.Cleaned = toks.rejoin()
	}
	return d
}

// tokens tracks whitespace-separated tokens with per-token consumption.
// Rejoining collapses whitespace, matching how directive removal has always
// behaved; a body with no directives keeps its original spacing.
type tokens struct {
	list        []string
	used        []bool
	consumedAny bool
}

func newTokens(body string) *tokens {
	list := strings.Fields(body)
	return &tokens{list: list, used: make([]bool, len(list))}
}

func (t *tokens) rejoin() string {
	var kept []string
	for i, tok := range t.list {
		if !t.used[i] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// take finds the first unconsumed token of the form /alias, /alias:arg or
// /alias arg (argument in the following token) and consumes it. It returns
// the raw argument text and whether the directive keyword was present.
func (t *tokens) take(aliases []string, argOK func(string) bool) (string, bool) {
	for i, tok := range t.list {
		if t.used[i] || !strings.HasPrefix(tok, "/") {
			continue
		}
		body := tok[1:]
		for _, alias := range aliases {
			if len(body) < len(alias) || !strings.EqualFold(body[:len(alias)], alias) {
				continue
			}
			rest := body[len(alias):]
			switch {
			case rest == "":
				t.used[i] = true
				t.consumedAny = true
				if i+1 < len(t.list) && !t.used[i+1] && argOK(t.list[i+1]) {
					arg := t.list[i+1]
					t.used[i+1] = true
					return arg, true
				}
				return "", true
			case strings.HasPrefix(rest, ":"):
				t.used[i] = true
				t.consumedAny = true
				arg := rest[1:]
				if arg == "" && i+1 < len(t.list) && !t.used[i+1] && argOK(t.list[i+1]) {
					arg = t.list[i+1]
					t.used[i+1] = true
				}
				return arg, true
			}
			// Token continues with other characters ("/thinker"); not a
			// directive for this alias, try the shorter ones.
		}
	}
	return "", false
}

// wordArg accepts plain word arguments (letters and hyphens only), so
// ordinary prose after a bare directive is not swallowed as an argument.
func wordArg(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && r != '-' {
			return false
		}
	}
	return true
}

// modelArg accepts any token that is not itself a directive; model names can
// contain slashes, dots and digits.
func modelArg(tok string) bool {
	return tok != "" && !strings.HasPrefix(tok, "/")
}
