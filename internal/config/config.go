package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/clawrelay/clawrelay/internal/model"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the clawrelay gateway.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Session   SessionConfig   `json:"session"`
	Routing   RoutingConfig   `json:"routing"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Archive   ArchiveConfig   `json:"archive,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	mu        sync.RWMutex
}

// AgentConfig tunes the embedded agent runtime and its defaults.
type AgentConfig struct {
	Workspace             string              `json:"workspace"`
	Model                 string              `json:"model"` // alias, id or provider/model
	Models                []model.Definition  `json:"models,omitempty"`
	AllowedModels         FlexibleStringSlice `json:"allowedModels,omitempty"`
	ThinkingDefault       string              `json:"thinkingDefault,omitempty"`
	VerboseDefault        string              `json:"verboseDefault,omitempty"`
	ContextTokens         int                 `json:"contextTokens,omitempty"`
	MaxTokens             int                 `json:"max_tokens,omitempty"`
	Temperature           float64             `json:"temperature,omitempty"`
	TimeoutSeconds        int                 `json:"timeoutSeconds,omitempty"`
	TypingIntervalSeconds *int                `json:"typingIntervalSeconds,omitempty"`
	SystemPrompt          string              `json:"systemPrompt,omitempty"`
	Heartbeat             HeartbeatConfig     `json:"heartbeat,omitempty"`
}

// HeartbeatConfig drives the periodic unattended agent turn.
type HeartbeatConfig struct {
	Every       string             `json:"every,omitempty"` // "30m", "0m" disables
	Cron        string             `json:"cron,omitempty"`  // cron expression, overrides Every
	ActiveHours *ActiveHoursConfig `json:"activeHours,omitempty"`
	Model       string             `json:"model,omitempty"`
	Prompt      string             `json:"prompt,omitempty"`
	To          string             `json:"to,omitempty"`      // delivery target chat id
	Surface     string             `json:"surface,omitempty"` // delivery channel
}

// ActiveHoursConfig restricts heartbeats to a time window.
type ActiveHoursConfig struct {
	Start    string `json:"start,omitempty"`    // "HH:MM" inclusive
	End      string `json:"end,omitempty"`      // "HH:MM" exclusive
	Timezone string `json:"timezone,omitempty"` // IANA timezone (default: local)
}

// SessionConfig controls session persistence and reuse.
type SessionConfig struct {
	Store                 string              `json:"store,omitempty"` // sessions.json path
	MainKey               string              `json:"mainKey,omitempty"`
	Scope                 string              `json:"scope,omitempty"` // "per-sender" or "global"
	ResetTriggers         FlexibleStringSlice `json:"resetTriggers,omitempty"`
	IdleMinutes           int                 `json:"idleMinutes,omitempty"`
	TypingIntervalSeconds *int                `json:"typingIntervalSeconds,omitempty"`
}

// RoutingConfig controls message routing across surfaces.
type RoutingConfig struct {
	Queue           QueueConfig      `json:"queue,omitempty"`
	TranscribeAudio bool             `json:"transcribeAudio,omitempty"`
	Transcriber     FlexibleStringSlice `json:"transcriber,omitempty"` // argv for the transcription command
	GroupChat       GroupChatConfig  `json:"groupChat,omitempty"`
}

// QueueConfig sets the default queue/interrupt behavior, globally and per
// surface. Inline directives and session overrides still take precedence.
type QueueConfig struct {
	Mode      string            `json:"mode,omitempty"` // "queue" or "interrupt"
	BySurface map[string]string `json:"bySurface,omitempty"`
}

// GroupChatConfig tunes group-chat mention handling.
type GroupChatConfig struct {
	MentionPatterns []string `json:"mentionPatterns,omitempty"`
}

// ChannelsConfig enables and configures chat surfaces.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
	Signal   SignalConfig   `json:"signal,omitempty"`
	WhatsApp WhatsAppConfig `json:"whatsapp,omitempty"`
	WebChat  WebChatConfig  `json:"webchat,omitempty"`
}

// GroupConfig is per-group policy; the "*" key sets the surface default.
type GroupConfig struct {
	RequireMention *bool `json:"requireMention,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool                   `json:"enabled,omitempty"`
	Token     string                 `json:"-"` // env CLAWRELAY_TELEGRAM_TOKEN only
	AllowFrom FlexibleStringSlice    `json:"allowFrom,omitempty"`
	Groups    map[string]GroupConfig `json:"groups,omitempty"`
}

type DiscordConfig struct {
	Enabled   bool                   `json:"enabled,omitempty"`
	Token     string                 `json:"-"` // env CLAWRELAY_DISCORD_TOKEN only
	AllowFrom FlexibleStringSlice    `json:"allowFrom,omitempty"`
	Groups    map[string]GroupConfig `json:"groups,omitempty"`
}

// SignalConfig points at a signal-cli daemon's JSON-RPC websocket.
type SignalConfig struct {
	Enabled   bool                   `json:"enabled,omitempty"`
	URL       string                 `json:"url,omitempty"` // ws://localhost:8080/v1/receive
	Account   string                 `json:"account,omitempty"`
	AllowFrom FlexibleStringSlice    `json:"allowFrom,omitempty"`
	Groups    map[string]GroupConfig `json:"groups,omitempty"`
}

// WhatsAppConfig points at a WhatsApp web bridge's WebSocket. The bridge
// owns the WhatsApp protocol; the channel exchanges JSON messages with it.
type WhatsAppConfig struct {
	Enabled   bool                   `json:"enabled,omitempty"`
	BridgeURL string                 `json:"bridge_url,omitempty"`
	AllowFrom FlexibleStringSlice    `json:"allowFrom,omitempty"`
	Groups    map[string]GroupConfig `json:"groups,omitempty"`
}

// WebChatConfig hosts the gateway's own websocket chat endpoint.
type WebChatConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	Token   string `json:"-"` // env CLAWRELAY_WEBCHAT_TOKEN only
}

// ProvidersConfig holds LLM provider credentials and endpoints.
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic,omitempty"`
	OpenAI    ProviderConfig `json:"openai,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `json:"-"` // env only
	APIBase string `json:"api_base,omitempty"`
}

// ArchiveConfig enables the SQLite turn/usage archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"` // default ~/.clawrelay/archive.db
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"` // default "clawrelay-gateway"
	Headers     map[string]string `json:"headers,omitempty"`
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
// Used by the config watcher on hot reload.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Agent = src.Agent
	c.Session = src.Session
	c.Routing = src.Routing
	c.Channels = src.Channels
	c.Providers = src.Providers
	c.Archive = src.Archive
	c.Telemetry = src.Telemetry
}

// Snapshot returns a copy of the data fields for lock-free reads during a
// turn. A turn sees one consistent config even across a hot reload.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Agent:     c.Agent,
		Session:   c.Session,
		Routing:   c.Routing,
		Channels:  c.Channels,
		Providers: c.Providers,
		Archive:   c.Archive,
		Telemetry: c.Telemetry,
	}
}

// RequireMentionFor resolves whether a group needs an explicit mention
// before the bot engages: per-group setting first, then the surface's "*"
// default, then true.
func (c *Config) RequireMentionFor(surface, groupID string) bool {
	groups := c.groupsFor(surface)
	if groups == nil {
		return true
	}
	if groupID != "" {
		if gc, ok := groups[groupID]; ok && gc.RequireMention != nil {
			return *gc.RequireMention
		}
	}
	if gc, ok := groups["*"]; ok && gc.RequireMention != nil {
		return *gc.RequireMention
	}
	return true
}

func (c *Config) groupsFor(surface string) map[string]GroupConfig {
	switch strings.ToLower(strings.TrimSpace(surface)) {
	case "telegram":
		return c.Channels.Telegram.Groups
	case "discord":
		return c.Channels.Discord.Groups
	case "signal":
		return c.Channels.Signal.Groups
	case "whatsapp":
		return c.Channels.WhatsApp.Groups
	}
	return nil
}

// AllowFromFor returns the owner allowlist for a surface.
func (c *Config) AllowFromFor(surface string) []string {
	switch strings.ToLower(strings.TrimSpace(surface)) {
	case "telegram":
		return c.Channels.Telegram.AllowFrom
	case "discord":
		return c.Channels.Discord.AllowFrom
	case "signal":
		return c.Channels.Signal.AllowFrom
	case "whatsapp":
		return c.Channels.WhatsApp.AllowFrom
	}
	return nil
}

// TypingIntervalSeconds resolves the typing refresh interval with the agent
// setting winning over the session one. Zero disables the loop.
func (c *Config) TypingIntervalSeconds() int {
	if c.Agent.TypingIntervalSeconds != nil {
		return *c.Agent.TypingIntervalSeconds
	}
	if c.Session.TypingIntervalSeconds != nil {
		return *c.Session.TypingIntervalSeconds
	}
	return 6
}
