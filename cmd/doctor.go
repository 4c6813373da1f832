package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawrelay/clawrelay/internal/archive"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/session"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("clawrelay doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	snap := cfg.Snapshot()

	fmt.Println()
	fmt.Println("  Providers:")
	printCheck("anthropic", snap.Providers.Anthropic.APIKey != "", "set CLAWRELAY_ANTHROPIC_API_KEY")
	printCheck("openai", snap.Providers.OpenAI.APIKey != "", "set CLAWRELAY_OPENAI_API_KEY")

	fmt.Println()
	fmt.Println("  Channels:")
	printEnabled("telegram", snap.Channels.Telegram.Enabled)
	printEnabled("discord", snap.Channels.Discord.Enabled)
	printEnabled("signal", snap.Channels.Signal.Enabled)
	printEnabled("whatsapp", snap.Channels.WhatsApp.Enabled)
	printEnabled("webchat", snap.Channels.WebChat.Enabled)

	fmt.Println()
	storePath := cfg.StorePath()
	store := session.NewStore(storePath)
	entries := store.Load()
	fmt.Printf("  Sessions: %s (%d entries)\n", storePath, len(entries))

	if len(snap.Routing.Transcriber) > 0 {
		bin := snap.Routing.Transcriber[0]
		if _, lookErr := exec.LookPath(bin); lookErr != nil {
			fmt.Printf("  Transcriber: %s (NOT FOUND in PATH)\n", bin)
		} else {
			fmt.Printf("  Transcriber: %s (OK)\n", bin)
		}
	}

	if snap.Archive.Enabled {
		arch, archErr := archive.Open(config.ExpandHome(snap.Archive.Path))
		if archErr != nil {
			fmt.Printf("  Archive:  %s (ERROR: %s)\n", snap.Archive.Path, archErr)
		} else {
			n, _ := arch.TurnCount()
			fmt.Printf("  Archive:  %s (%d turns)\n", arch.Path(), n)
			arch.Close()
		}
	}

	if hb := snap.Agent.Heartbeat; hb.Cron != "" {
		fmt.Printf("  Heartbeat: cron %q\n", hb.Cron)
	} else if d, dErr := time.ParseDuration(hb.Every); dErr == nil && d > 0 {
		fmt.Printf("  Heartbeat: every %s\n", d)
	} else {
		fmt.Println("  Heartbeat: disabled")
	}
}

func printCheck(name string, ok bool, hint string) {
	if ok {
		fmt.Printf("    %-10s OK\n", name)
	} else {
		fmt.Printf("    %-10s missing (%s)\n", name, hint)
	}
}

func printEnabled(name string, enabled bool) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("    %-10s %s\n", name, state)
}
