package autoreply

import (
	"fmt"
	"regexp"
	"strings"
)

// surfaceLabel maps a surface id to its human name for group introductions.
func surfaceLabel(surface string) string {
	switch strings.ToLower(strings.TrimSpace(surface)) {
	case "whatsapp":
		return "WhatsApp"
	case "telegram":
		return "Telegram"
	case "discord":
		return "Discord"
	case "webchat":
		return "WebChat"
	case "":
		return "Chat"
	}
	s := strings.ToLower(surface)
	return strings.ToUpper(s[:1]) + s[1:]
}

// buildGroupIntro assembles the system context sent on the first turn of a
// group session (and again after the owner changes activation).
func buildGroupIntro(surface, subject string, members []string, alwaysOn bool) string {
	var lines []string
	lines = append(lines, fmt.Sprintf(
		"You are replying inside a %s group chat.", surfaceLabel(surface)))
	if subject != "" {
		lines = append(lines, "Group subject: "+subject+".")
	}
	if len(members) > 0 {
		lines = append(lines, "Members: "+strings.Join(members, ", ")+".")
	}
	if alwaysOn {
		lines = append(lines,
			"Activation: always-on (you receive every group message).",
			"If a message needs no reply from you, respond with exactly "+
				"NO_REPLY and nothing else.",
			"Be careful not to dominate the conversation; stay brief.")
	} else {
		lines = append(lines,
			"Activation: trigger-only (you are invoked only when explicitly "+
				"mentioned; recent context may be included).")
	}
	lines = append(lines, "Address the specific sender noted in the message context.")
	return strings.Join(lines, "\n")
}

// providerSummary describes the registered providers and the active default
// model. It leads the system block on the first turn of a main session so
// the agent knows what it is running on.
func (e *Engine) providerSummary(t *turn) []string {
	names := e.providers.List()
	if len(names) == 0 {
		return nil
	}
	return []string{
		"Providers configured: " + strings.Join(names, ", "),
		"Default model: " + t.defaultRef.Key(),
	}
}

// lastInputSegmentRe removes the trailing "· last input ..." segment from
// queued system lines before they reach the prompt.
var lastInputSegmentRe = regexp.MustCompile(` · last input [^·]+`)

// compactSystemLines filters queued system events down to what the main
// session should actually see: heartbeat noise is dropped and verbose
// segments trimmed.
func compactSystemLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "reason periodic") || strings.Contains(lower, "heartbeat") {
			continue
		}
		line = lastInputSegmentRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// renderSystemBlock prefixes each compacted line and joins them into the
// block prepended to a main-session prompt.
func renderSystemBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	prefixed := make([]string, 0, len(lines))
	for _, line := range lines {
		prefixed = append(prefixed, "System: "+line)
	}
	return strings.Join(prefixed, "\n")
}
