package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawrelay/clawrelay/internal/archive"
	"github.com/clawrelay/clawrelay/internal/config"
	"github.com/clawrelay/clawrelay/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsClearCmd())
	cmd.AddCommand(sessionsStatsCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Printf("config error: %s\n", err)
				return
			}
			store := session.NewStore(cfg.StorePath())
			entries := store.Load()
			if len(entries) == 0 {
				fmt.Println("no sessions")
				return
			}

			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			// Most recently active first.
			sort.Slice(keys, func(i, j int) bool {
				return entries[keys[i]].UpdatedAt > entries[keys[j]].UpdatedAt
			})

			fmt.Printf("%-36s %-28s %-20s %s\n", "KEY", "MODEL", "UPDATED", "TOKENS")
			for _, k := range keys {
				e := entries[k]
				updated := time.UnixMilli(e.UpdatedAt).Format("2006-01-02 15:04:05")
				fmt.Printf("%-36s %-28s %-20s %d\n", k, e.Model, updated, e.TotalTokens)
			}
		},
	}
}

func sessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one session, or all sessions with no argument",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Printf("config error: %s\n", err)
				return
			}
			store := session.NewStore(cfg.StorePath())

			removed := 0
			updateErr := store.Update(func(m map[string]*session.Entry) {
				if len(args) == 1 {
					if _, ok := m[args[0]]; ok {
						delete(m, args[0])
						removed = 1
					}
					return
				}
				removed = len(m)
				for k := range m {
					delete(m, k)
				}
			})
			if updateErr != nil {
				fmt.Printf("clear failed: %s\n", updateErr)
				return
			}
			fmt.Printf("removed %d session(s)\n", removed)
		},
	}
}

func sessionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-session usage totals from the turn archive",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Printf("config error: %s\n", err)
				return
			}
			snap := cfg.Snapshot()
			if !snap.Archive.Enabled {
				fmt.Println("turn archive is disabled (set archive.enabled or CLAWRELAY_ARCHIVE_ENABLED=1)")
				return
			}
			arch, err := archive.Open(config.ExpandHome(snap.Archive.Path))
			if err != nil {
				fmt.Printf("archive error: %s\n", err)
				return
			}
			defer arch.Close()

			stats, err := arch.Stats(50)
			if err != nil {
				fmt.Printf("stats error: %s\n", err)
				return
			}
			if len(stats) == 0 {
				fmt.Println("no recorded turns")
				return
			}
			fmt.Printf("%-36s %6s %12s %12s %s\n", "KEY", "TURNS", "IN", "OUT", "LAST")
			for _, s := range stats {
				fmt.Printf("%-36s %6d %12d %12d %s\n",
					s.SessionKey, s.Turns, s.InputTokens, s.OutputTokens,
					s.LastTurn.Local().Format("2006-01-02 15:04:05"))
			}
		},
	}
}
