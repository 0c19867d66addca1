package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Operational intelligence profile orchestrator",
	Long:  "Accepts company submissions, gathers public signals (website, tech stack, DNS/WHOIS, business listings, job postings), and synthesizes operational profiles via Claude.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
