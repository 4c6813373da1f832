package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawrelay/clawrelay/internal/agent"
	"github.com/clawrelay/clawrelay/internal/archive"
	"github.com/clawrelay/clawrelay/internal/autoreply"
	"github.com/clawrelay/clawrelay/internal/bootstrap"
	"github.com/clawrelay/clawrelay/internal/bus"
	"github.com/clawrelay/clawrelay/internal/channels"
	"github.com/clawrelay/clawrelay/internal/channels/discord"
	"github.com/clawrelay/clawrelay/internal/channels/signal"
	"github.com/clawrelay/clawrelay/internal/channels/telegram"
	"github.com/clawrelay/clawrelay/internal/channels/webchat"
	"github.com/clawrelay/clawrelay/internal/channels/whatsapp"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/gateway"
	"github.com/clawrelay/clawrelay/internal/heartbeat"
	"github.com/clawrelay/clawrelay/internal/providers"
	"github.com/clawrelay/clawrelay/internal/session"
	"github.com/clawrelay/clawrelay/internal/tracing"
	"github.com/clawrelay/clawrelay/internal/transcribe"
)

const defaultSystemPrompt = "You are a helpful assistant replying inside a chat conversation. Keep replies concise and conversational."

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !hasAnyProvider(cfg) {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			fmt.Println("No AI provider API key found. Did you forget to load your secrets?")
			fmt.Println()
			fmt.Println("  export CLAWRELAY_ANTHROPIC_API_KEY=... && clawrelay")
			fmt.Println()
			fmt.Println("Or re-run the setup wizard:  clawrelay onboard")
			os.Exit(1)
		}
		fmt.Println("No configuration found. Starting setup wizard...")
		fmt.Println()
		runOnboard()
		return
	}

	workspace := cfg.WorkspacePath()
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		slog.Error("failed to create workspace", "path", workspace, "error", err)
		os.Exit(1)
	}
	if seeded, seedErr := bootstrap.EnsureWorkspaceFiles(workspace); seedErr != nil {
		slog.Warn("workspace template seeding failed", "error", seedErr)
	} else if len(seeded) > 0 {
		slog.Info("seeded workspace templates", "files", seeded)
	}

	ctx, stopSignals := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if err := config.Watch(ctx, cfgPath, cfg, nil); err != nil {
		slog.Warn("config hot reload unavailable", "error", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Snapshot().Telemetry)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	msgBus := bus.New()

	registry := providers.NewRegistry()
	registerProviders(registry, cfg)

	store := session.NewStore(cfg.StorePath())
	runtime := agent.NewEmbedded(systemPrompt(cfg, workspace))
	engine := autoreply.New(cfg, store, runtime, registry)

	var arch *archive.Archive
	if snap := cfg.Snapshot(); snap.Archive.Enabled {
		arch, err = archive.Open(config.ExpandHome(snap.Archive.Path))
		if err != nil {
			slog.Warn("turn archive unavailable", "error", err)
		} else {
			engine.SetRecorder(arch)
			slog.Info("turn archive enabled", "path", arch.Path())
		}
	}

	manager := channels.NewManager(msgBus)
	registerChannels(manager, cfg, msgBus)

	// /restart replies first, then the process exits so the supervisor
	// (systemd, docker) brings up a fresh gateway.
	var restartOnce sync.Once
	engine.RequestRestart = func() {
		restartOnce.Do(func() {
			slog.Info("restart requested, shutting down")
			time.AfterFunc(2*time.Second, stopSignals)
		})
	}

	consumer := gateway.NewConsumer(cfg, msgBus, engine, manager)
	hb := heartbeat.New(cfg, engine, manager)

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	slog.Info("gateway started",
		"version", Version, "channels", manager.Names(), "workspace", workspace)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return hb.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("gateway stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.StopAll(shutdownCtx); err != nil {
		slog.Error("error stopping channels", "error", err)
	}
	if arch != nil {
		arch.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("trace flush failed", "error", err)
	}
	slog.Info("gateway stopped")
}

func hasAnyProvider(cfg *config.Config) bool {
	snap := cfg.Snapshot()
	return snap.Providers.Anthropic.APIKey != "" || snap.Providers.OpenAI.APIKey != ""
}

// systemPrompt combines the configured base prompt with the workspace
// context files.
func systemPrompt(cfg *config.Config, workspace string) string {
	base := cfg.Snapshot().Agent.SystemPrompt
	if base == "" {
		base = defaultSystemPrompt
	}
	return base + bootstrap.ContextBlock(workspace)
}

// registerProviders instantiates every provider that has credentials.
func registerProviders(registry *providers.Registry, cfg *config.Config) {
	snap := cfg.Snapshot()

	if key := snap.Providers.Anthropic.APIKey; key != "" {
		opts := []providers.AnthropicOption{}
		if snap.Providers.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(snap.Providers.Anthropic.APIBase))
		}
		registry.Register(providers.NewAnthropicProvider(key, opts...))
		slog.Info("provider registered", "provider", "anthropic")
	}
	if key := snap.Providers.OpenAI.APIKey; key != "" {
		registry.Register(providers.NewOpenAIProvider(key, snap.Providers.OpenAI.APIBase, ""))
		slog.Info("provider registered", "provider", "openai")
	}
	if len(registry.List()) == 0 {
		slog.Warn("no providers registered, replies will fail")
	}
}

// registerChannels wires every enabled surface into the manager.
func registerChannels(manager *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	snap := cfg.Snapshot()

	if snap.Channels.Telegram.Enabled {
		transcriber := transcribe.New(snap.Routing.Transcriber)
		ch, err := telegram.New(snap.Channels.Telegram, msgBus, transcriber)
		if err != nil {
			slog.Error("telegram channel unavailable", "error", err)
		} else {
			manager.Register(ch)
		}
	}
	if snap.Channels.Discord.Enabled {
		ch, err := discord.New(snap.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("discord channel unavailable", "error", err)
		} else {
			manager.Register(ch)
		}
	}
	if snap.Channels.Signal.Enabled {
		ch, err := signal.New(snap.Channels.Signal, msgBus)
		if err != nil {
			slog.Error("signal channel unavailable", "error", err)
		} else {
			manager.Register(ch)
		}
	}
	if snap.Channels.WhatsApp.Enabled {
		ch, err := whatsapp.New(snap.Channels.WhatsApp, msgBus)
		if err != nil {
			slog.Error("whatsapp channel unavailable", "error", err)
		} else {
			manager.Register(ch)
		}
	}
	if snap.Channels.WebChat.Enabled {
		manager.Register(webchat.New(snap.Channels.WebChat, msgBus))
	}
}
