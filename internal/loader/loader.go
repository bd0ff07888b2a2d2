package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/pkg/logger"
)

// ErrTableMissing is returned when a requested table does not exist in the source
var ErrTableMissing = errors.New("table missing")

// nullTokens are the textual spellings treated as null on load
var nullTokens = map[string]bool{
	"":     true,
	`\n`:   true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
}

// IsNullToken reports whether raw text spells a null cell
func IsNullToken(raw string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(raw))]
}

// Cell converts raw text to a Value, applying the null tokens
func Cell(raw string) contracts.Value {
	if IsNullToken(raw) {
		return contracts.NullValue()
	}
	return contracts.V(raw)
}

// ProgressFunc is called once per loaded table, possibly from several goroutines
type ProgressFunc func(table string, rows int)

// Loader loads a set of tables from one source
// SSOT: every relation of a run is loaded through this type
type Loader struct {
	source  contracts.TableSource
	workers int
	logger  *logger.Logger
}

// New creates a Loader; workers bounds concurrent table loads
func New(source contracts.TableSource, workers int, log *logger.Logger) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{
		source:  source,
		workers: workers,
		logger:  log.WithFields(map[string]interface{}{"module": "loader", "source": source.Name()}),
	}
}

// LoadAll loads every table concurrently.
// Any missing or unreadable table aborts the whole load.
func (l *Loader) LoadAll(ctx context.Context, tables []string, progress ProgressFunc) (*contracts.Dataset, error) {
	start := time.Now()
	loaded := make([]*contracts.Relation, len(tables))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			rel, err := l.source.Load(ctx, table)
			if err != nil {
				return fmt.Errorf("load %s: %w", table, err)
			}
			loaded[i] = rel

			l.logger.WithFields(map[string]interface{}{
				"table":   table,
				"rows":    rel.Len(),
				"columns": len(rel.Columns),
			}).Debug("Table loaded")

			if progress != nil {
				progress(table, rel.Len())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := contracts.NewDataset()
	total := 0
	for _, rel := range loaded {
		ds.Add(rel)
		total += rel.Len()
	}

	l.logger.WithFields(map[string]interface{}{
		"tables":   len(tables),
		"rows":     total,
		"duration": time.Since(start),
	}).Info("Dataset loaded")

	return ds, nil
}
