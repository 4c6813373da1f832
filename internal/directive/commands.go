package directive

import "strings"

// abortTriggers are the bare words that cancel an in-flight agent run.
var abortTriggers = map[string]struct{}{
	"stop":  {},
	"esc":   {},
	"abort": {},
	"wait":  {},
	"exit":  {},
}

// IsAbortTrigger reports whether the whole message is an abort request.
// Matching is exact after trimming and lowercasing; "please stop" is a
// sentence for the agent, not an abort.
func IsAbortTrigger(text string) bool {
	_, ok := abortTriggers[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// GroupActivation controls when the bot speaks in a group chat.
type GroupActivation string

const (
	ActivationMention GroupActivation = "mention"
	ActivationAlways  GroupActivation = "always"
)

// NormalizeGroupActivation maps a stored or typed value to an activation
// mode.
func NormalizeGroupActivation(raw string) (GroupActivation, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mention":
		return ActivationMention, true
	case "always":
		return ActivationAlways, true
	}
	return "", false
}

// ActivationCommand is a parsed "/activation" owner command.
type ActivationCommand struct {
	HasCommand bool
	Mode       GroupActivation
}

// ParseActivationCommand recognizes "/activation" with an optional mode
// argument in an already normalized (lowercased, mention-stripped) body.
func ParseActivationCommand(normalized string) ActivationCommand {
	const keyword = "/activation"
	if normalized == keyword {
		return ActivationCommand{HasCommand: true}
	}
	if !strings.HasPrefix(normalized, keyword+" ") && !strings.HasPrefix(normalized, keyword+":") {
		return ActivationCommand{}
	}
	arg := strings.TrimSpace(normalized[len(keyword)+1:])
	mode, _ := NormalizeGroupActivation(arg)
	return ActivationCommand{HasCommand: true, Mode: mode}
}

// MatchResetTrigger checks a message against the configured session reset
// triggers. It matches the trigger alone or the trigger followed by a space
// and more text; the remainder becomes the first message of the new session.
func MatchResetTrigger(trimmedBody, strippedBody string, triggers []string) (remainder string, matched bool) {
	for _, trigger := range triggers {
		if trigger == "" {
			continue
		}
		if trimmedBody == trigger || strippedBody == trigger {
			return "", true
		}
		prefix := trigger + " "
		if strings.HasPrefix(trimmedBody, prefix) || strings.HasPrefix(strippedBody, prefix) {
			return strings.TrimLeft(strippedBody[min(len(trigger), len(strippedBody)):], " "), true
		}
	}
	return "", false
}
