package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contact-mx",
	Short: "Contact email pipeline with MX provider classification",
	Long:  "Extracts and normalizes contact emails from CSV/XLSX exports, classifies each domain's mail provider from its MX records, removes duplicates, and enriches records with alternate contacts.",
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
