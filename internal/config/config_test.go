package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.MainKey != "main" || cfg.Session.IdleMinutes != 60 {
		t.Fatalf("unexpected defaults: %+v", cfg.Session)
	}
	if cfg.Agent.TimeoutSeconds != 600 {
		t.Fatalf("unexpected timeout default: %d", cfg.Agent.TimeoutSeconds)
	}
}

func TestLoadJSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  // relaxed json is fine
  agent: { model: "opus", thinkingDefault: "low" },
  session: { idleMinutes: 5, resetTriggers: ["/new", "/fresh"] },
  routing: { queue: { mode: "queue", bySurface: { discord: "interrupt" } } },
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Model != "opus" || cfg.Agent.ThinkingDefault != "low" {
		t.Fatalf("agent config: %+v", cfg.Agent)
	}
	if cfg.Session.IdleMinutes != 5 {
		t.Fatalf("idleMinutes = %d", cfg.Session.IdleMinutes)
	}
	if got := cfg.ResetTriggers(); len(got) != 2 || got[1] != "/fresh" {
		t.Fatalf("resetTriggers = %v", got)
	}
	if cfg.Routing.Queue.BySurface["discord"] != "interrupt" {
		t.Fatalf("queue config: %+v", cfg.Routing.Queue)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLAWRELAY_TELEGRAM_TOKEN", "tg-secret")
	t.Setenv("CLAWRELAY_MODEL", "openai/gpt-5")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Telegram.Token != "tg-secret" || !cfg.Channels.Telegram.Enabled {
		t.Fatalf("telegram env overlay missing: %+v", cfg.Channels.Telegram)
	}
	if cfg.Agent.Model != "openai/gpt-5" {
		t.Fatalf("model = %q", cfg.Agent.Model)
	}
}

func TestSaveNeverWritesSecrets(t *testing.T) {
	cfg := Default()
	cfg.Channels.Telegram.Token = "tg-secret"
	cfg.Providers.Anthropic.APIKey = "sk-ant"
	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"tg-secret", "sk-ant"} {
		if strings.Contains(string(data), secret) {
			t.Fatalf("secret %q leaked into config file", secret)
		}
	}
}

func TestRequireMentionFor(t *testing.T) {
	yes, no := true, false
	cfg := Default()
	cfg.Channels.Telegram.Groups = map[string]GroupConfig{
		"-1001": {RequireMention: &no},
		"*":     {RequireMention: &yes},
	}
	if cfg.RequireMentionFor("telegram", "-1001") {
		t.Fatal("per-group override ignored")
	}
	if !cfg.RequireMentionFor("telegram", "-9999") {
		t.Fatal("wildcard default ignored")
	}
	if !cfg.RequireMentionFor("discord", "42") {
		t.Fatal("unconfigured surface must default to mention-required")
	}
}
