package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/fetcher"
	"github.com/wonny/f1dq/pkg/httputil"
)

var (
	fetchBaseURL string
	fetchDir     string
	fetchTables  []string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the raw dataset CSV files",
	Long: `Downloads <base-url>/<table>.csv for every dataset table into RAW_DIR.

Requests are rate limited (FETCH_RATE_PER_SEC) and retried with
exponential backoff on 5xx and 429. A file missing on the remote is
reported as a warning; the run continues.

Example:
  go run ./cmd/f1dq fetch
  go run ./cmd/f1dq fetch --tables results,status --dir /tmp/raw`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", "", "dataset base URL (default: DATASET_BASE_URL)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "target directory (default: RAW_DIR)")
	fetchCmd.Flags().StringSliceVar(&fetchTables, "tables", nil, "tables to download (default: all nine)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	baseURL := cfg.Fetch.BaseURL
	if fetchBaseURL != "" {
		baseURL = fetchBaseURL
	}
	dir := cfg.Paths.RawDir
	if fetchDir != "" {
		dir = fetchDir
	}
	tables := contracts.AllTables
	if len(fetchTables) > 0 {
		tables = fetchTables
	}

	PrintJobHeader(JobHeader{
		Title:  "Fetch Dataset",
		Source: baseURL,
		Target: dir,
	})

	bar := newProgressBar(int64(len(tables)), "Downloading")
	f := fetcher.New(httputil.New(cfg, log), baseURL, dir, log)
	summary, err := f.Fetch(ctx, tables, func(table string, bytes int64) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}

	widths := []int{16, 14, 40}
	PrintTableHeader([]string{"Table", "Bytes", "Path"}, widths)
	for _, file := range summary.Files {
		if file.Missing {
			PrintTableRow([]string{file.Table, "-", "missing on remote"}, widths)
			continue
		}
		PrintTableRow([]string{file.Table, fmt.Sprint(file.Bytes), file.Path}, widths)
	}

	if missing := summary.Missing(); len(missing) > 0 {
		PrintWarning("Not found on remote: " + strings.Join(missing, ", "))
	}
	PrintSuccess(fmt.Sprintf("%d files, %d bytes", len(summary.Files)-len(summary.Missing()), summary.Bytes))
	PrintJobCompletion("Fetch", time.Since(start))
	return nil
}
