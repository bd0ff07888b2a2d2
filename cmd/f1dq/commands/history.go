package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/quality"
	"github.com/wonny/f1dq/internal/report"
	"github.com/wonny/f1dq/pkg/database"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent validation runs",
	Long: `Lists validation runs recorded in quality.validation_runs, newest first.
Requires DATABASE_URL.

Example:
  go run ./cmd/f1dq history
  go run ./cmd/f1dq history --limit 50`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := quality.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	runs, err := repo.List(ctx, historyLimit)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(report.History(runs))
	return nil
}
