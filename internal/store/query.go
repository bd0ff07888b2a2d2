package store

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Query is one named statement of analysis.sql
type Query struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	SQL   string `json:"sql"`
}

// Rows is a materialized result set. Cells are nil, int64, float64 or string.
type Rows struct {
	Columns []string `json:"columns"`
	Values  [][]any  `json:"values"`
}

// QueryResult is the outcome of one executed query; Err is set instead of Rows on failure
type QueryResult struct {
	Query    Query         `json:"query"`
	Rows     *Rows         `json:"rows,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// ParseQueries splits a script into queries at "-- name:" markers.
// A "-- title:" line right after the marker sets the title; text before the first marker is ignored.
func ParseQueries(script string) ([]Query, error) {
	var (
		out     []Query
		current *Query
		body    strings.Builder
	)
	flush := func() {
		if current == nil {
			return
		}
		current.SQL = strings.TrimSpace(body.String())
		out = append(out, *current)
		body.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(script))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-- name:"):
			flush()
			current = &Query{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, "-- name:"))}
		case current != nil && body.Len() == 0 && strings.HasPrefix(trimmed, "-- title:"):
			current.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "-- title:"))
		case current != nil:
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan queries: %w", err)
	}
	flush()

	seen := make(map[string]bool, len(out))
	for _, q := range out {
		if q.Name == "" {
			return nil, errors.New("query without a name")
		}
		if seen[q.Name] {
			return nil, fmt.Errorf("duplicate query name %q", q.Name)
		}
		seen[q.Name] = true
		if q.SQL == "" {
			return nil, fmt.Errorf("query %q has no body", q.Name)
		}
	}
	return out, nil
}

// AnalysisQueries returns the embedded window-function queries in file order
func AnalysisQueries() ([]Query, error) {
	script, err := Script(AnalysisFile)
	if err != nil {
		return nil, err
	}
	return ParseQueries(script)
}

// RunQuery executes query and materializes at most limit rows (limit <= 0 means all)
func RunQuery(ctx context.Context, db *sql.DB, query string, limit int) (*Rows, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Rows{Columns: cols}
	for rows.Next() {
		if limit > 0 && len(out.Values) >= limit {
			break
		}
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, c := range cells {
			cells[i] = normalizeCell(c)
		}
		out.Values = append(out.Values, cells)
	}
	return out, rows.Err()
}

// normalizeCell folds driver values into nil, int64, float64 or string
func normalizeCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, float64, string:
		return x
	case int:
		return int64(x)
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// RunAnalysis executes every analysis query; a failing query is recorded, not returned
func RunAnalysis(ctx context.Context, db *sql.DB, limit int) ([]QueryResult, error) {
	queries, err := AnalysisQueries()
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		rows, err := RunQuery(ctx, db, q.SQL, limit)
		results = append(results, QueryResult{Query: q, Rows: rows, Err: err, Duration: time.Since(start)})
	}
	return results, nil
}
