package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/clawrelay/clawrelay/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	fmt.Println("clawrelay setup")
	fmt.Println()

	var (
		provider = "anthropic"
		apiKey   string
		model    string
		surfaces []string
		save     = true
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenAI-compatible", "openai"),
				).
				Value(&provider),
			huh.NewInput().
				Title("API key").
				Description("Kept out of config.json; exported as an env var.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Default model").
				Placeholder("sonnet").
				Value(&model),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Chat surfaces").
				Description("Tokens and endpoints are read from CLAWRELAY_* env vars.").
				Options(
					huh.NewOption("Telegram", "telegram"),
					huh.NewOption("Discord", "discord"),
					huh.NewOption("Signal (signal-cli daemon)", "signal"),
					huh.NewOption("WhatsApp bridge", "whatsapp"),
					huh.NewOption("Web chat", "webchat"),
				).
				Value(&surfaces),
			huh.NewConfirm().
				Title("Write config.json?").
				Value(&save),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Printf("setup aborted: %s\n", err)
		return
	}

	cfg := config.Default()
	if model != "" {
		cfg.Agent.Model = model
	}
	for _, s := range surfaces {
		switch s {
		case "telegram":
			cfg.Channels.Telegram.Enabled = true
		case "discord":
			cfg.Channels.Discord.Enabled = true
		case "signal":
			cfg.Channels.Signal.Enabled = true
		case "whatsapp":
			cfg.Channels.WhatsApp.Enabled = true
		case "webchat":
			cfg.Channels.WebChat.Enabled = true
		}
	}

	cfgPath := resolveConfigPath()
	if save {
		if err := config.Save(cfgPath, cfg); err != nil {
			fmt.Printf("failed to write %s: %s\n", cfgPath, err)
			return
		}
		fmt.Printf("wrote %s\n", cfgPath)
	}

	// Secrets never land in config.json; hand the user an env file instead.
	var exports []string
	if apiKey != "" {
		switch provider {
		case "anthropic":
			exports = append(exports, "export CLAWRELAY_ANTHROPIC_API_KEY="+apiKey)
		case "openai":
			exports = append(exports, "export CLAWRELAY_OPENAI_API_KEY="+apiKey)
		}
	}
	for _, s := range surfaces {
		switch s {
		case "telegram":
			exports = append(exports, "export CLAWRELAY_TELEGRAM_TOKEN=<bot token>")
		case "discord":
			exports = append(exports, "export CLAWRELAY_DISCORD_TOKEN=<bot token>")
		case "signal":
			exports = append(exports,
				"export CLAWRELAY_SIGNAL_URL=ws://localhost:8080/v1/receive",
				"export CLAWRELAY_SIGNAL_ACCOUNT=<+phone>")
		case "webchat":
			exports = append(exports, "export CLAWRELAY_WEBCHAT_TOKEN=<shared secret>")
		}
	}

	if len(exports) > 0 {
		envPath := filepath.Join(filepath.Dir(cfgPath), ".env.local")
		content := strings.Join(exports, "\n") + "\n"
		if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
			fmt.Println()
			fmt.Println("Add these to your environment:")
			fmt.Println(content)
		} else {
			fmt.Printf("wrote %s (fill in the placeholders)\n", envPath)
			fmt.Println()
			fmt.Printf("Start the gateway with:  source %s && clawrelay\n", envPath)
		}
	} else {
		fmt.Println()
		fmt.Println("Start the gateway with:  clawrelay")
	}
}
