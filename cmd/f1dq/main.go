package main

import (
	"errors"
	"os"

	"github.com/wonny/f1dq/cmd/f1dq/commands"
	"github.com/wonny/f1dq/internal/quality"
)

// main is the entry point for the f1dq CLI: go run ./cmd/f1dq [command]
// Exit code 1 means a failed scorecard, 2 a fatal error.
func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, quality.ErrScorecardFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
