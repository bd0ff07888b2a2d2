package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/report"
	"github.com/wonny/f1dq/internal/store"
	"github.com/wonny/f1dq/pkg/database"
)

var (
	analyzeDB        string
	analyzeOut       string
	analyzeLimit     int
	analyzeTimestamp bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the window-function analysis queries",
	Long: `Executes every query in analysis.sql against the SQLite store and
writes analysis_report.md.

Queries:
- season standings rank and cumulative points
- rolling finish average
- teammate qualifying gap
- lap-time rank within race

Example:
  go run ./cmd/f1dq analyze
  go run ./cmd/f1dq analyze --limit 50`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "", "SQLite store (default: DB_PATH)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "report path (default: REPORT_DIR/"+report.AnalysisFileName+")")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 25, "maximum rows per query (0 = all)")
	analyzeCmd.Flags().BoolVar(&analyzeTimestamp, "timestamp", false, "include a generation timestamp in the report")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Paths.DBPath
	if analyzeDB != "" {
		dbPath = analyzeDB
	}
	out := analyzeOut
	if out == "" {
		out = filepath.Join(cfg.Paths.ReportDir, report.AnalysisFileName)
	}

	db, err := database.OpenSQLite(ctx, dbPath, false)
	if err != nil {
		return fmt.Errorf("%w (run build-db first)", err)
	}
	defer db.Close()

	PrintJobHeader(JobHeader{
		Title:  "Race Analysis",
		Source: dbPath,
		Target: out,
	})

	results, err := store.RunAnalysis(ctx, db, analyzeLimit)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", res.Query.Name, res.Err))
			continue
		}
		fmt.Printf("  %-32s %5d rows  %s\n", res.Query.Name, len(res.Rows.Values), res.Duration.Round(time.Millisecond))
	}

	opts := report.Options{Command: "f1dq analyze"}
	if analyzeTimestamp {
		opts.Generated = time.Now()
	}
	if err := report.WriteFile(out, report.Analysis(results, dbPath, opts)); err != nil {
		return err
	}

	fmt.Println()
	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d of %d queries failed", failed, len(results)))
	}
	PrintSuccess("Report written: " + out)
	PrintJobCompletion("Analysis", time.Since(start))
	return nil
}
