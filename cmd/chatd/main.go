// Command chatd runs the chat backend and offers maintenance commands against
// its store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/logging"
)

var (
	configPath string
	verbose    bool

	cfg    chat.AppConfig
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatd",
	Short: "Conversational assistant backend",
	Long: `chatd serves the chat HTTP API: sessions, chat turns routed to
vision, logic, code, general or image generation, undo, uploads and accounts.

Configuration comes from an optional YAML file (--config) with environment
variables taking precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = chat.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = "debug"
		}

		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, migrateCmd, sessionsCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
