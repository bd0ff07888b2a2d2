package diagnostics

import (
	"context"
	"database/sql"
	"time"

	"github.com/wonny/f1dq/internal/store"
	"github.com/wonny/f1dq/pkg/logger"
)

// Result is one executed catalogue query
type Result struct {
	Query     Query         `json:"query"`
	Rows      *store.Rows   `json:"rows,omitempty"`
	Truncated bool          `json:"truncated"` // the limit cut rows
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// Report is the outcome of a catalogue run
type Report struct {
	Database string   `json:"database"`
	Results  []Result `json:"results"`
}

// Failed returns the number of queries that errored
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Runner executes catalogue queries against an open store
type Runner struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRunner creates a runner
func NewRunner(db *sql.DB, log *logger.Logger) *Runner {
	return &Runner{db: db, logger: log.WithField("module", "diagnostics")}
}

// Run executes queries in order. A failing query is recorded in its Result;
// only context cancellation stops the run.
func (r *Runner) Run(ctx context.Context, database string, queries []Query) (*Report, error) {
	report := &Report{Database: database}

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.logger.WithFields(map[string]interface{}{
			"query": q.ID,
			"step":  i + 1,
			"total": len(queries),
		}).Debug(q.Title)

		start := time.Now()
		res := Result{Query: q}

		// one extra row detects truncation; transforms see every row
		fetch := q.Limit
		if fetch > 0 {
			fetch++
		}
		if q.Transform != nil {
			fetch = 0
		}
		rows, err := store.RunQuery(ctx, r.db, q.SQL, fetch)
		if err != nil {
			res.Err = err
			r.logger.WithError(err).WithField("query", q.ID).Error("Diagnostic query failed")
		} else {
			if q.Transform != nil {
				rows = q.Transform(rows)
			}
			if q.Limit > 0 && len(rows.Values) > q.Limit {
				rows.Values = rows.Values[:q.Limit]
				res.Truncated = true
			}
			res.Rows = rows
		}
		res.Duration = time.Since(start)
		report.Results = append(report.Results, res)
	}

	r.logger.WithFields(map[string]interface{}{
		"queries": len(report.Results),
		"failed":  report.Failed(),
	}).Info("Diagnostics complete")

	return report, nil
}
