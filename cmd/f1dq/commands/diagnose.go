package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/diagnostics"
	"github.com/wonny/f1dq/internal/report"
	"github.com/wonny/f1dq/pkg/database"
)

var (
	diagnoseDB        string
	diagnoseOut       string
	diagnoseOnly      []string
	diagnoseTimestamp bool
)

// diagnoseCmd represents the diagnose command
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run root-cause SQL against the SQLite store",
	Long: `Runs the diagnostic query catalogue against the store built by
build-db and writes diagnostics_report.md.

Blocks:
  A  position nulls          B  grid nulls
  C  duplicate records       D  corrupt lap times
  E  unclassified statuses   F  qualifying nulls
  G  pit-stop duration nulls

A failing query is reported in the document and never aborts the run.

Example:
  go run ./cmd/f1dq diagnose
  go run ./cmd/f1dq diagnose --only C,D4`,
	RunE: runDiagnose,
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseDB, "db", "", "SQLite store (default: DB_PATH)")
	diagnoseCmd.Flags().StringVarP(&diagnoseOut, "out", "o", "", "report path (default: REPORT_DIR/"+report.DiagnosticsFileName+")")
	diagnoseCmd.Flags().StringSliceVar(&diagnoseOnly, "only", nil, "blocks or query ids to run, e.g. C,D4")
	diagnoseCmd.Flags().BoolVar(&diagnoseTimestamp, "timestamp", false, "include a generation timestamp in the report")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := loadRules(cfg)
	if err != nil {
		return err
	}

	dbPath := cfg.Paths.DBPath
	if diagnoseDB != "" {
		dbPath = diagnoseDB
	}
	out := diagnoseOut
	if out == "" {
		out = filepath.Join(cfg.Paths.ReportDir, report.DiagnosticsFileName)
	}

	queries := diagnostics.Select(diagnostics.Catalogue(rc), diagnoseOnly)
	if len(queries) == 0 {
		return fmt.Errorf("no diagnostic query matches %s", strings.Join(diagnoseOnly, ","))
	}

	db, err := database.OpenSQLite(ctx, dbPath, false)
	if err != nil {
		return fmt.Errorf("%w (run build-db first)", err)
	}
	defer db.Close()

	PrintJobHeader(JobHeader{
		Title:  "Diagnostics",
		Source: dbPath,
		Target: out,
		Rules:  rc.Meta.Name + " v" + rc.Meta.Version,
	})

	rep, err := diagnostics.NewRunner(db, log).Run(ctx, dbPath, queries)
	if err != nil {
		return err
	}

	for _, res := range rep.Results {
		if res.Err != nil {
			PrintError(fmt.Sprintf("%-4s %s: %v", res.Query.ID, res.Query.Title, res.Err))
			continue
		}
		more := ""
		if res.Truncated {
			more = "+"
		}
		fmt.Printf("  %-4s %-60s %d%s rows\n", res.Query.ID, res.Query.Title, len(res.Rows.Values), more)
	}

	opts := report.Options{Command: "f1dq diagnose"}
	if diagnoseTimestamp {
		opts.Generated = time.Now()
	}
	if err := report.WriteFile(out, report.Diagnostics(rep, rc, opts)); err != nil {
		return err
	}

	fmt.Println()
	if n := rep.Failed(); n > 0 {
		PrintWarning(fmt.Sprintf("%d of %d queries failed; see %s", n, len(rep.Results), out))
	}
	PrintSuccess("Report written: " + out)
	PrintJobCompletion("Diagnostics", time.Since(start))
	return nil
}
