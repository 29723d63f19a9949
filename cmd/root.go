package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "procurement-cli",
	Short: "Contractor entity resolution and contract/project linkage",
	Long:  "Unifies contractor names from the flood-control index, DIME and PhilGEPS into one registry, attaches SEC verification, and links PhilGEPS contracts to flood-control projects.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
