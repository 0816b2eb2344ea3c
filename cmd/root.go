package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharedharvest/pantry-directory/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pantryctl",
	Short: "Food pantry directory ingestion and search",
	Long:  "Imports pantry records from flat-file uploads and remote list sources, normalizes them into one directory, and serves geospatial + text search.",
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
