package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fieldsnap",
	Short: "Turn business-ad photos into scored leads",
	Long:  "Extracts business facts from photos of signs, storefronts, cards and vehicle wraps, fuses them, enriches and scores the result, and drafts outreach for qualified leads.",
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
