package directive

import (
	"regexp"
	"strings"
)

// CurrentMessageMarker separates batched group context from the message the
// agent should actually answer.
const CurrentMessageMarker = "[Current message - respond to this]"

var (
	bracketTagRe   = regexp.MustCompile(`\[[^\]]+\]\s*`)
	senderPrefixRe = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z0-9+()\-_. ]+:\s*`)
	wsRe           = regexp.MustCompile(`\s+`)
	digitMentionRe = regexp.MustCompile(`@[0-9+]{5,}`)
	discordTagRe   = regexp.MustCompile(`<@!?\d+>`)
)

// StripStructuralPrefixes removes wrapper labels, timestamps and sender
// prefixes so directive-only and command detection still work in group
// batches that include history or context lines.
func StripStructuralPrefixes(text string) string {
	if idx := strings.Index(text, CurrentMessageMarker); idx >= 0 {
		text = text[idx+len(CurrentMessageMarker):]
	}
	text = bracketTagRe.ReplaceAllString(text, "")
	text = senderPrefixRe.ReplaceAllString(text, "")
	return strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
}

// MentionStrip carries what StripMentions needs to recognize the bot being
// addressed on a given surface.
type MentionStrip struct {
	// Self is the bot's own address (bot username, phone number) to scrub.
	Self string
	// Patterns are configured mention regexes; invalid ones are skipped.
	Patterns []string
}

// StripMentions removes bot mentions from group text so that a message that
// is nothing but "@bot /think:high" still counts as directive-only.
func StripMentions(text string, ms MentionStrip) string {
	result := text
	for _, p := range ms.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		result = re.ReplaceAllString(result, " ")
	}
	if self := strings.TrimSpace(ms.Self); self != "" {
		esc := regexp.QuoteMeta(self)
		if re, err := regexp.Compile("(?i)@?" + esc); err == nil {
			result = re.ReplaceAllString(result, " ")
		}
	}
	result = discordTagRe.ReplaceAllString(result, " ")
	result = digitMentionRe.ReplaceAllString(result, " ")
	return strings.TrimSpace(wsRe.ReplaceAllString(result, " "))
}
