package loader

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/f1dq/internal/contracts"
)

// PostgresSource reads tables from one Postgres schema
type PostgresSource struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgresSource creates a source over schema (default "public")
func NewPostgresSource(pool *pgxpool.Pool, schema string) *PostgresSource {
	if schema == "" {
		schema = "public"
	}
	return &PostgresSource{pool: pool, schema: schema}
}

// Name returns the source description
func (s *PostgresSource) Name() string {
	return "postgres:" + s.schema
}

// Load reads every row of table
func (s *PostgresSource) Load(ctx context.Context, table string) (*contracts.Relation, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`, s.schema, table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", s.schema, table, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrTableMissing, s.schema, table)
	}

	ident := pgx.Identifier{s.schema, table}.Sanitize()
	rows, err := s.pool.Query(ctx, "SELECT * FROM "+ident)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", ident, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	rel := contracts.NewRelation(table, columns)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", ident, err)
		}
		row := make([]contracts.Value, len(values))
		for i, v := range values {
			row[i] = pgValue(v)
		}
		if err := rel.Append(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", ident, err)
	}

	return rel, nil
}

// pgValue converts a decoded pgx value to a cell
func pgValue(v any) contracts.Value {
	switch x := v.(type) {
	case nil:
		return contracts.NullValue()
	case int16:
		return contracts.V(strconv.FormatInt(int64(x), 10))
	case int32:
		return contracts.V(strconv.FormatInt(int64(x), 10))
	case float32:
		return contracts.V(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case time.Time:
		return contracts.V(formatTime(x))
	case driver.Valuer:
		// pgtype.Numeric and friends
		dv, err := x.Value()
		if err != nil || dv == nil {
			return contracts.NullValue()
		}
		return sqlValue(dv)
	default:
		return sqlValue(v)
	}
}
