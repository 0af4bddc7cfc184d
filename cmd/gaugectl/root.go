// Command gaugectl inspects gauge catalogs and save files and runs
// headless harness sessions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/elemental/config"
	"github.com/pthm-cable/elemental/logging"
)

var rootFlags struct {
	config   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "gaugectl",
	Short: "Inspect and exercise the elemental gauge runtime",
	Long:  "gaugectl lists the configured catalog, decodes save files and runs\nheadless harness sessions.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, "text", cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.config, "config", "", "Path to config.yaml (empty = use defaults)")
	f.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(simulateCmd)
}

// loadConfig loads the --config file merged over the embedded defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
