// Package fetcher downloads the raw dataset CSV files into the raw directory.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/f1dq/pkg/httputil"
	"github.com/wonny/f1dq/pkg/logger"
)

// FileResult is the outcome of one table download
type FileResult struct {
	Table   string
	URL     string
	Path    string // empty when the remote file is missing
	Bytes   int64
	Missing bool
}

// Summary is the outcome of a Fetch
type Summary struct {
	Files    []FileResult
	Bytes    int64
	Duration time.Duration
}

// Missing returns the tables the remote did not have
func (s *Summary) Missing() []string {
	var out []string
	for _, f := range s.Files {
		if f.Missing {
			out = append(out, f.Table)
		}
	}
	return out
}

// ProgressFunc is called after each table, downloaded or missing
type ProgressFunc func(table string, bytes int64)

// Fetcher downloads <base>/<table>.csv files into a directory
// SSOT: dataset downloads go through this type only
type Fetcher struct {
	client  *httputil.Client
	baseURL string
	dir     string
	logger  *logger.Logger
}

// New creates a Fetcher writing to dir
func New(client *httputil.Client, baseURL, dir string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		logger:  log.WithField("module", "fetcher"),
	}
}

// URL returns the remote location of a table file
func (f *Fetcher) URL(table string) string {
	return f.baseURL + "/" + table + ".csv"
}

// Fetch downloads every table in order.
// A 404 is logged and recorded as missing; any other failure aborts.
func (f *Fetcher) Fetch(ctx context.Context, tables []string, progress ProgressFunc) (*Summary, error) {
	start := time.Now()
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	summary := &Summary{}
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := f.fetchOne(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", table, err)
		}
		summary.Files = append(summary.Files, res)
		summary.Bytes += res.Bytes

		if progress != nil {
			progress(table, res.Bytes)
		}
	}
	summary.Duration = time.Since(start)

	f.logger.WithFields(map[string]interface{}{
		"files":    len(summary.Files),
		"missing":  len(summary.Missing()),
		"bytes":    summary.Bytes,
		"duration": summary.Duration,
	}).Info("Dataset fetched")

	return summary, nil
}

// fetchOne writes to a temp file in the target dir and renames on success,
// so an interrupted download never leaves a truncated CSV behind
func (f *Fetcher) fetchOne(ctx context.Context, table string) (FileResult, error) {
	res := FileResult{Table: table, URL: f.URL(table)}

	tmp, err := os.CreateTemp(f.dir, "."+table+"-*.csv.part")
	if err != nil {
		return res, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := f.client.Download(ctx, res.URL, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		f.logger.WithFields(map[string]interface{}{
			"table": table,
			"url":   res.URL,
		}).Warn("Remote file not found, skipping")
		res.Missing = true
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.Path = filepath.Join(f.dir, table+".csv")
	if err := os.Rename(tmp.Name(), res.Path); err != nil {
		return res, fmt.Errorf("move into place: %w", err)
	}
	res.Bytes = n

	f.logger.WithFields(map[string]interface{}{
		"table": table,
		"bytes": n,
	}).Debug("File downloaded")

	return res, nil
}
