package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/loader"
	"github.com/wonny/f1dq/internal/quality"
	"github.com/wonny/f1dq/internal/report"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/pkg/config"
	"github.com/wonny/f1dq/pkg/database"
	"github.com/wonny/f1dq/pkg/logger"
	"github.com/wonny/f1dq/pkg/redis"
)

var (
	validateSource    string
	validateDataDir   string
	validateOut       string
	validateXLSX      bool
	validateTimestamp bool
	validateNoCache   bool
	validateNoHistory bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run every quality check and write the scorecard report",
	Long: `Loads the nine tables, runs the six quality checks and writes
data_quality_report.md.

Checks:
- Null analysis with severity classification
- Schema drift against the expected columns
- Foreign key integrity
- Duplicate race-driver records (explained by the rule chain)
- Lap time plausibility
- Status / DNF integration

Exit status is 1 when the scorecard fails, 2 on a fatal error.

Example:
  go run ./cmd/f1dq validate
  go run ./cmd/f1dq validate --source sqlite --xlsx
  go run ./cmd/f1dq validate --data-dir data/raw --timestamp`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateSource, "source", "", "input source: csv, sqlite, postgres (default: SOURCE)")
	validateCmd.Flags().StringVar(&validateDataDir, "data-dir", "", "CSV directory (default: DATA_DIR)")
	validateCmd.Flags().StringVarP(&validateOut, "out", "o", "", "report path (default: REPORT_DIR/"+report.DefaultFileName+")")
	validateCmd.Flags().BoolVar(&validateXLSX, "xlsx", false, "also write an xlsx workbook next to the report")
	validateCmd.Flags().BoolVar(&validateTimestamp, "timestamp", false, "include a generation timestamp in the report")
	validateCmd.Flags().BoolVar(&validateNoCache, "no-cache", false, "ignore cached results in Redis")
	validateCmd.Flags().BoolVar(&validateNoHistory, "no-history", false, "do not record this run in Postgres")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	// 1. Load config and rules
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if validateSource != "" {
		cfg.Source = validateSource
	}
	if validateDataDir != "" {
		cfg.Paths.DataDir = validateDataDir
	}
	rc, err := loadRules(cfg)
	if err != nil {
		return err
	}

	out := validateOut
	if out == "" {
		out = filepath.Join(cfg.Paths.ReportDir, report.DefaultFileName)
	}

	// 2. Load dataset
	ds, sourceName, err := loadDataset(ctx, cfg, log)
	if err != nil {
		return err
	}

	PrintJobHeader(JobHeader{
		Title:  "Data Quality Validation",
		Source: sourceName,
		Target: out,
		Rules:  rc.Meta.Name + " v" + rc.Meta.Version,
	})

	// 3. Run the gate, through the cache when Redis is enabled
	gate, err := quality.NewQualityGate(rc, log)
	if err != nil {
		return err
	}

	cacheClient := redis.Disabled()
	if !validateNoCache {
		if c, err := redis.New(ctx, cfg); err != nil {
			log.WithError(err).Warn("Redis unavailable, running without cache")
		} else {
			cacheClient = c
		}
	}
	defer cacheClient.Close()
	cache := redis.NewCache(cacheClient, "f1dq")

	res, err := cachedRun(ctx, cache, cfg.Redis.TTL, gate, ds, sourceName, log)
	if err != nil {
		return err
	}

	// 4. Render reports
	opts := report.Options{Source: sourceName, Command: "f1dq validate"}
	if validateTimestamp {
		opts.Generated = time.Now()
	}
	if err := writeMarkdown(ctx, cache, cfg.Redis.TTL, out, res, rc, opts, log); err != nil {
		return err
	}
	PrintSuccess("Report written: " + out)

	if validateXLSX {
		xlsxPath := filepath.Join(filepath.Dir(out), report.DefaultWorkbookName)
		if err := report.WriteWorkbook(xlsxPath, res); err != nil {
			return err
		}
		PrintSuccess("Workbook written: " + xlsxPath)
	}

	fmt.Println()
	fmt.Print(report.Summary(res))

	// 5. Record history
	if cfg.Database.Enabled() && !validateNoHistory {
		if err := saveHistory(ctx, cfg, res); err != nil {
			log.WithError(err).Warn("Run history not saved")
		} else {
			PrintInfo("Run recorded in quality.validation_runs")
		}
	}

	PrintJobCompletion("Validation", time.Since(start))
	return res.Err()
}

// loadDataset opens the configured source and loads every table with a progress bar
func loadDataset(ctx context.Context, cfg *config.Config, log *logger.Logger) (*contracts.Dataset, string, error) {
	source, closeSource, err := loader.OpenSource(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	defer closeSource()

	bar := newProgressBar(int64(len(contracts.AllTables)), "Loading tables")
	ds, err := loader.New(source, cfg.LoadWorkers, log).LoadAll(ctx, contracts.AllTables, func(table string, rows int) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return nil, "", err
	}
	return ds, source.Name(), nil
}

// cachedRun returns the cached result for (fingerprint, rules hash) or runs the gate.
// Cache failures are logged and never fail the run.
func cachedRun(ctx context.Context, cache *redis.Cache, ttl time.Duration, gate *quality.QualityGate, ds *contracts.Dataset, source string, log *logger.Logger) (*quality.Result, error) {
	key := redis.ResultKey(ds.Fingerprint(), gate.RulesHash())

	var cached quality.Result
	found, err := cache.Get(ctx, key, &cached)
	if err != nil {
		log.WithError(err).Warn("Cache read failed")
	}
	if found {
		log.WithField("key", key).Info("Validation result served from cache")
		cached.Source = source
		return &cached, nil
	}

	res, err := gate.Run(ctx, ds, source)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, key, res, ttl); err != nil {
		log.WithError(err).Warn("Cache write failed")
	}
	return res, nil
}

// writeMarkdown renders the report; untimestamped renders are cached by source, fingerprint and rules hash
func writeMarkdown(ctx context.Context, cache *redis.Cache, ttl time.Duration, path string, res *quality.Result, rc *rules.Config, opts report.Options, log *logger.Logger) error {
	if !opts.Generated.IsZero() {
		return report.WriteFile(path, report.Markdown(res, rc.Nulls, opts))
	}

	key := redis.ReportKey("markdown:"+opts.Source, res.Fingerprint, res.RulesHash)
	content, found, err := cache.GetString(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Cache read failed")
	}
	if !found {
		content = report.Markdown(res, rc.Nulls, opts)
		if err := cache.SetString(ctx, key, content, ttl); err != nil {
			log.WithError(err).Warn("Cache write failed")
		}
	}
	return report.WriteFile(path, content)
}

func saveHistory(ctx context.Context, cfg *config.Config, res *quality.Result) error {
	db, err := database.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := quality.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	return repo.Save(ctx, res.ToSnapshot(quality.NewRunID(), time.Now().UTC()))
}
