// Package cli provides the loom command surface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/loom/internal/config"
	"github.com/tOgg1/loom/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Compose, queue, and dispatch agent chat messages",
	Long: `Loom is a chat client for terminal-hosted agent conversations:
a compose buffer with anchored parts, a per-conversation tail queue,
and a dispatch gate that defers sends until the agent is idle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader()
		if cfgFile != "" {
			loader.SetConfigFile(cfgFile)
		}
		cfg, err := loader.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		loadedConfig = cfg

		logCfg := logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		}
		if cfg.Logging.File != "" {
			f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logCfg.Output = f
		}
		logging.Init(logCfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation launches the chat view.
		return runChat(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/loom/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// GetConfig returns the loaded configuration, nil before PersistentPreRunE.
func GetConfig() *config.Config {
	return loadedConfig
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}
