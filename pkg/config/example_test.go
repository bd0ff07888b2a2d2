package config_test

import (
	"fmt"

	"github.com/wonny/f1dq/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Input: %s (%s)\n", cfg.Paths.DataDir, cfg.Source)
	fmt.Printf("Reports: %s\n", cfg.Paths.ReportDir)
	fmt.Printf("History enabled: %v\n", cfg.Database.Enabled())
}
