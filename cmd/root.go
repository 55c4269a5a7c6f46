package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "georef",
	Short: "Georeference natural history collection localities",
	Long: "Parses verbatim locality strings, matches the named features against " +
		"a GeoNames gazetteer, and reconciles the candidates to a coordinate " +
		"with an uncertainty radius.",
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
