package autoreply

import (
	"fmt"
	"strings"

	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/session"
)

// statusInfo collects everything the /status reply reports.
type statusInfo struct {
	Cfg              config.Config
	Entry            *session.Entry
	SessionKey       string
	Scope            session.Scope
	StorePath        string
	ModelLabel       string
	ContextTokens    int
	ThinkingLevel    string
	VerboseLevel     string
	GroupActivation  string
	HeartbeatSeconds int
}

// buildStatusMessage renders the /status reply: active model, session
// identity and usage, resolved directive levels, and gateway settings.
func buildStatusMessage(info statusInfo) string {
	var b strings.Builder
	b.WriteString(SystemMark + " Status\n")

	fmt.Fprintf(&b, "Model: %s", info.ModelLabel)
	if info.ContextTokens > 0 {
		fmt.Fprintf(&b, " (context: %dk tokens)", info.ContextTokens/1000)
	}
	b.WriteString("\n")

	think := info.ThinkingLevel
	if think == "" {
		think = "off"
	}
	verbose := info.VerboseLevel
	if verbose == "" {
		verbose = "off"
	}
	fmt.Fprintf(&b, "Thinking: %s | Verbose: %s\n", think, verbose)

	fmt.Fprintf(&b, "Session: %s (scope: %s)\n", info.SessionKey, info.Scope)
	if e := info.Entry; e != nil {
		if e.SessionID != "" {
			fmt.Fprintf(&b, "Session id: %s\n", e.SessionID)
		}
		if e.TotalTokens > 0 {
			fmt.Fprintf(&b, "Last run tokens: %d", e.TotalTokens)
			if e.ContextTokens > 0 {
				fmt.Fprintf(&b, " / %d", e.ContextTokens)
			}
			b.WriteString("\n")
		}
		if e.QueueMode != "" {
			fmt.Fprintf(&b, "Queue mode: %s\n", e.QueueMode)
		}
	}
	if info.GroupActivation != "" {
		fmt.Fprintf(&b, "Group activation: %s\n", info.GroupActivation)
	}
	if ws := info.Cfg.Agent.Workspace; ws != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", ws)
	}
	fmt.Fprintf(&b, "Store: %s\n", info.StorePath)
	if info.HeartbeatSeconds > 0 {
		fmt.Fprintf(&b, "Heartbeat: every %ds\n", info.HeartbeatSeconds)
	}
	return strings.TrimRight(b.String(), "\n")
}
