package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/pkg/config"
	"github.com/wonny/f1dq/pkg/logger"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
	rulesFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "f1dq",
	Short: "Motorsport results data-quality validator",
	Long: `f1dq validates a historical Formula 1 results dataset before modeling.

Checks nulls, schema drift, foreign keys, duplicate race-driver records,
lap-time plausibility and status/DNF integration, and renders a
markdown scorecard report.

Usage:
  go run ./cmd/f1dq [command]

Examples:
  go run ./cmd/f1dq fetch
  go run ./cmd/f1dq validate
  go run ./cmd/f1dq build-db
  go run ./cmd/f1dq diagnose --only D,E
  go run ./cmd/f1dq analyze
  go run ./cmd/f1dq history`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl-C cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "rule manifest YAML (default: RULES_FILE or embedded defaults)")
}

// loadConfig applies the global flags and loads configuration
func loadConfig() (*config.Config, *logger.Logger, error) {
	if err := config.LoadFile(configFile); err != nil {
		return nil, nil, err
	}
	if env != "" {
		if err := os.Setenv("ENV", env); err != nil {
			return nil, nil, fmt.Errorf("set ENV: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	return cfg, logger.New(cfg), nil
}

// loadRules reads and validates the manifest named by cfg.RulesFile
func loadRules(cfg *config.Config) (*rules.Config, error) {
	rc, _, err := rules.LoadOrDefault(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rc, nil
}
