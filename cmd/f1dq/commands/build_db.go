package commands

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/loader"
	"github.com/wonny/f1dq/internal/store"
)

var (
	buildSource  string
	buildDataDir string
	buildOut     string
)

// buildDBCmd represents the build-db command
var buildDBCmd = &cobra.Command{
	Use:   "build-db",
	Short: "Load the dataset into a fresh SQLite database",
	Long: `Creates the SQLite store used by diagnose and analyze.

Writes, in one transaction:
- the nine source tables with primary keys and FK indexes
- master_race_table (one row per result, denormalized)
- v_driver_season, v_constructor_season, v_dnf_causes, v_circuit_lap_pace

An existing file at the output path is replaced.

Example:
  go run ./cmd/f1dq build-db
  go run ./cmd/f1dq build-db --data-dir data/raw --out /tmp/f1.db`,
	RunE: runBuildDB,
}

func init() {
	buildDBCmd.Flags().StringVar(&buildSource, "source", "", "input source: csv, postgres (default: SOURCE)")
	buildDBCmd.Flags().StringVar(&buildDataDir, "data-dir", "", "CSV directory (default: DATA_DIR)")
	buildDBCmd.Flags().StringVarP(&buildOut, "out", "o", "", "database path (default: DB_PATH)")
	rootCmd.AddCommand(buildDBCmd)
}

func runBuildDB(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if buildSource != "" {
		cfg.Source = buildSource
	}
	if buildDataDir != "" {
		cfg.Paths.DataDir = buildDataDir
	}
	out := cfg.Paths.DBPath
	if buildOut != "" {
		out = buildOut
	}
	if cfg.Source == loader.SourceSQLite && filepath.Clean(out) == filepath.Clean(cfg.Paths.DBPath) {
		return fmt.Errorf("build-db cannot read from and replace the same database %s", out)
	}

	ds, sourceName, err := loadDataset(ctx, cfg, log)
	if err != nil {
		return err
	}

	PrintJobHeader(JobHeader{
		Title:  "Build SQLite Store",
		Source: sourceName,
		Target: out,
	})

	var total int64
	for _, name := range ds.Names() {
		rel, _ := ds.Get(name)
		total += int64(rel.Len())
	}

	// The builder reports a running count per table; the bar wants deltas
	bar := newProgressBar(total, "Inserting rows")
	seen := map[string]int{}
	res, err := store.NewBuilder(log).Build(ctx, out, ds, func(table string, rows int) {
		_ = bar.Add(rows - seen[table])
		seen[table] = rows
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	fmt.Println()
	widths := []int{24, 8, 12, 10, 20}
	PrintTableHeader([]string{"Table", "Kind", "Rows", "Skipped", "Extra columns"}, widths)
	loads := map[string]store.TableLoad{}
	for _, l := range res.Tables {
		loads[l.Table] = l
	}
	names := make([]string, 0, len(res.Counts))
	for name := range res.Counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if res.Kinds[names[i]] != res.Kinds[names[j]] {
			return res.Kinds[names[i]] < res.Kinds[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		l := loads[name]
		skipped := ""
		if l.Skipped > 0 {
			skipped = fmt.Sprint(l.Skipped)
		}
		PrintTableRow([]string{name, res.Kinds[name], fmt.Sprint(res.Counts[name]), skipped, strings.Join(l.ExtraColumns, ",")}, widths)
	}

	for _, l := range res.Tables {
		if l.Skipped > 0 {
			PrintWarning(fmt.Sprintf("%s: %d rows skipped on primary-key conflict (see the duplicate check)", l.Table, l.Skipped))
		}
	}

	PrintSuccess(fmt.Sprintf("%s written (%d rows in %s)", res.Path, res.Counts[store.MasterTable], store.MasterTable))
	PrintJobCompletion("Build", time.Since(start))
	return nil
}
