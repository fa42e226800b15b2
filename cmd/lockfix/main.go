// Package main implements the lockfix CLI: a two-job CI helper that keeps
// dependency manifests in sync with the lockfile via automated pull
// requests, and gates the tree behind configured static checks.
package main

import (
	"fmt"
	"os"

	"github.com/fyrsmithlabs/lockfix/internal/config"
	"github.com/fyrsmithlabs/lockfix/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	treeRoot   string
	version    = "dev"
)

func main() {
	// .env is a convenience for local runs; CI provides real env vars.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lockfix: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lockfix",
	Short: "Keep dependency manifests in sync with the lockfile",
	Long: `lockfix runs two independent CI jobs for a repository with a lockfile:

  export   regenerate dependency manifests from the lockfile and, when they
           changed, propose the change as a pull request on a fixup branch
  verify   run the configured static checks and fail on any violation
  run      run both jobs concurrently, the way a CI trigger would`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&treeRoot, "tree", ".", "root of the checked-out source tree")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(runCmd)
}

// loadConfig loads configuration and builds the logger, shared setup for
// every subcommand.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Format = cfg.Logging.Format
	var level zapcore.Level
	if err := level.Set(cfg.Logging.Level); err != nil {
		return nil, nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Logging.Level, err)
	}
	logCfg.Level = level

	log, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}
