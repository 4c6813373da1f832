package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"

	"github.com/clawrelay/clawrelay/internal/session"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Workspace:      "~/.clawrelay/workspace",
			Model:          "sonnet",
			MaxTokens:      8192,
			Temperature:    0.7,
			TimeoutSeconds: 600,
			Heartbeat: HeartbeatConfig{
				Every: "30m",
			},
		},
		Session: SessionConfig{
			Store:       "~/.clawrelay/sessions.json",
			MainKey:     session.DefaultMainKey,
			Scope:       string(session.ScopePerSender),
			IdleMinutes: session.DefaultIdleMinutes,
		},
		Archive: ArchiveConfig{
			Path: "~/.clawrelay/archive.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults so a bare gateway still starts.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets come from env only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("CLAWRELAY_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("CLAWRELAY_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("CLAWRELAY_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("CLAWRELAY_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("CLAWRELAY_WEBCHAT_TOKEN", &c.Channels.WebChat.Token)
	envStr("CLAWRELAY_SIGNAL_URL", &c.Channels.Signal.URL)
	envStr("CLAWRELAY_SIGNAL_ACCOUNT", &c.Channels.Signal.Account)

	// Auto-enable channels when credentials arrive via env.
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}
	if c.Channels.Signal.URL != "" {
		c.Channels.Signal.Enabled = true
	}

	envStr("CLAWRELAY_MODEL", &c.Agent.Model)
	envStr("CLAWRELAY_WORKSPACE", &c.Agent.Workspace)
	envStr("CLAWRELAY_SESSION_STORE", &c.Session.Store)

	if v := os.Getenv("CLAWRELAY_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Session.IdleMinutes = n
		}
	}
	if v := os.Getenv("CLAWRELAY_QUEUE_MODE"); v != "" {
		c.Routing.Queue.Mode = v
	}

	// Telemetry
	envStr("CLAWRELAY_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("CLAWRELAY_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("CLAWRELAY_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("CLAWRELAY_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CLAWRELAY_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	envStr("CLAWRELAY_ARCHIVE_PATH", &c.Archive.Path)
	if v := os.Getenv("CLAWRELAY_ARCHIVE_ENABLED"); v != "" {
		c.Archive.Enabled = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file. Secrets carry `json:"-"` tags and
// never land on disk.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// StorePath returns the expanded session store path.
func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Session.Store)
}

// WorkspacePath returns the expanded agent workspace path.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Agent.Workspace)
}

// ResetTriggers returns the configured reset triggers or the defaults.
func (c *Config) ResetTriggers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Session.ResetTriggers) > 0 {
		return c.Session.ResetTriggers
	}
	return session.DefaultResetTriggers
}

// IdleMinutes returns the idle window, clamped to at least one minute.
func (c *Config) IdleMinutes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Session.IdleMinutes < 1 {
		return session.DefaultIdleMinutes
	}
	return c.Session.IdleMinutes
}

// ExpandHome expands a leading ~ to the user home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
