package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/wonny/f1dq/internal/contracts"
)

// SQLiteSource reads tables from an SQLite database built by build-db
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// NewSQLiteSource wraps an open SQLite handle
func NewSQLiteSource(db *sql.DB, path string) *SQLiteSource {
	return &SQLiteSource{db: db, path: path}
}

// Name returns the source description
func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

// Load reads every row of table
func (s *SQLiteSource) Load(ctx context.Context, table string) (*contracts.Relation, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table).Scan(&n)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s not in %s", ErrTableMissing, table, s.path)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	rel := contracts.NewRelation(table, columns)
	dest := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make([]contracts.Value, len(columns))
		for i, v := range dest {
			row[i] = sqlValue(v)
		}
		if err := rel.Append(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return rel, nil
}

// sqlValue converts a driver value to a cell
func sqlValue(v any) contracts.Value {
	switch x := v.(type) {
	case nil:
		return contracts.NullValue()
	case int64:
		return contracts.V(strconv.FormatInt(x, 10))
	case float64:
		return contracts.V(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		if x {
			return contracts.V("1")
		}
		return contracts.V("0")
	case []byte:
		return Cell(string(x))
	case string:
		return Cell(x)
	case time.Time:
		return contracts.V(formatTime(x))
	default:
		return Cell(fmt.Sprint(x))
	}
}

// formatTime renders dates without a clock part when the clock is midnight
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
