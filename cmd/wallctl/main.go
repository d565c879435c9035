package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memorywall/internal/config"
	"memorywall/internal/logging"
)

var (
	// Global flags
	serverURL string
	token     string
	verbose   bool
	timeout   time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wallctl",
	Short: "Operate and watch a memory wall",
	Long: `wallctl talks to a running wall service and its backing stores.

Use it to follow the live wall from a terminal, post a memory, prepare the
admin credential, and check that MySQL, MongoDB, Redis and NATS are reachable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if serverURL == "" {
			serverURL = cfg.Feed.ServerURL
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		var err error
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if !cfg.EnvFileLoaded {
			logger.Debug("no .env file found, using system environment variables")
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
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "wall API base URL (default WALL_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for the API")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for one-shot commands")

	rootCmd.AddCommand(watchCmd, submitCmd, hashPasswordCmd, migrateCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
