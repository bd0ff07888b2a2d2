// Package store builds the analytical SQLite database from a loaded dataset
// and runs the static SQL shipped with it.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/pkg/database"
	"github.com/wonny/f1dq/pkg/logger"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Embedded script names
const (
	SchemaFile   = "schema.sql"
	MasterFile   = "master.sql"
	ViewsFile    = "views.sql"
	AnalysisFile = "analysis.sql"
)

// MasterTable is the denormalized table created by master.sql
const MasterTable = "master_race_table"

// Script returns an embedded SQL file
func Script(name string) (string, error) {
	b, err := fs.ReadFile(sqlFiles, "sql/"+name)
	if err != nil {
		return "", fmt.Errorf("read embedded %s: %w", name, err)
	}
	return string(b), nil
}

// ProgressFunc receives the running number of rows inserted into table
type ProgressFunc func(table string, rows int)

// TableLoad describes one table written to the store
type TableLoad struct {
	Table        string   `json:"table"`
	Rows         int      `json:"rows"`
	Skipped      int      `json:"skipped"` // rows ignored on primary-key conflict
	ExtraColumns []string `json:"extra_columns,omitempty"`
}

// BuildResult summarizes a build
type BuildResult struct {
	Path     string            `json:"path"`
	Tables   []TableLoad       `json:"tables"`
	Counts   map[string]int64  `json:"counts"`
	Kinds    map[string]string `json:"kinds"`
	Duration time.Duration     `json:"duration"`
}

// Builder writes datasets into a fresh SQLite file
type Builder struct {
	logger *logger.Logger
}

// NewBuilder creates a builder
func NewBuilder(log *logger.Logger) *Builder {
	return &Builder{logger: log.WithField("module", "store")}
}

// Build replaces the file at path with a database holding every relation of ds,
// master_race_table and the views. Everything is written in one transaction.
func (b *Builder) Build(ctx context.Context, path string, ds *contracts.Dataset, progress ProgressFunc) (*BuildResult, error) {
	start := time.Now()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove previous database: %w", err)
	}

	db, err := database.OpenSQLite(ctx, path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execScript(ctx, tx, SchemaFile); err != nil {
		return nil, err
	}
	b.logger.Debug("Schema applied")

	res := &BuildResult{Path: path}
	for _, name := range ds.Names() {
		rel, _ := ds.Get(name)
		load, err := b.loadRelation(ctx, tx, rel, progress)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		res.Tables = append(res.Tables, *load)

		fields := map[string]interface{}{"table": name, "rows": load.Rows}
		if load.Skipped > 0 {
			fields["skipped"] = load.Skipped
			b.logger.WithFields(fields).Warn("Rows skipped on primary-key conflict")
		} else {
			b.logger.WithFields(fields).Debug("Table loaded")
		}
	}

	for _, script := range []string{MasterFile, ViewsFile} {
		if err := execScript(ctx, tx, script); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	res.Counts, res.Kinds, err = database.TableCounts(ctx, db)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)

	b.logger.WithFields(map[string]interface{}{
		"path":     path,
		"tables":   len(res.Tables),
		"master":   res.Counts[MasterTable],
		"duration": res.Duration,
	}).Info("SQLite store built")

	return res, nil
}

func execScript(ctx context.Context, tx *sql.Tx, name string) error {
	script, err := Script(name)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

// loadRelation creates or widens the target table, then inserts every row
func (b *Builder) loadRelation(ctx context.Context, tx *sql.Tx, rel *contracts.Relation, progress ProgressFunc) (*TableLoad, error) {
	load := &TableLoad{Table: rel.Name}

	existing, err := tableColumns(ctx, tx, rel.Name)
	if err != nil {
		return nil, err
	}

	if len(existing) == 0 {
		defs := make([]string, len(rel.Columns))
		for i, col := range rel.Columns {
			defs[i] = quoteIdent(col) + " " + affinity(rel.ColumnType(col))
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(rel.Name), strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create table: %w", err)
		}
	} else {
		for _, col := range rel.Columns {
			if existing[strings.ToLower(col)] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(rel.Name), quoteIdent(col), affinity(rel.ColumnType(col)))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("add column %s: %w", col, err)
			}
			load.ExtraColumns = append(load.ExtraColumns, col)
		}
	}

	cols := make([]string, len(rel.Columns))
	marks := make([]string, len(rel.Columns))
	for i, col := range rel.Columns {
		cols[i] = quoteIdent(col)
		marks[i] = "?"
	}
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		quoteIdent(rel.Name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	args := make([]any, len(rel.Columns))
	for i, row := range rel.Rows {
		for j, v := range row {
			if v.Null {
				args[j] = nil
			} else {
				args[j] = v.Raw
			}
		}
		r, err := insert.ExecContext(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i+1, err)
		}
		if n, err := r.RowsAffected(); err == nil && n == 0 {
			load.Skipped++
		} else {
			load.Rows++
		}
		if progress != nil && (i+1)%5000 == 0 {
			progress(rel.Name, i+1)
		}
	}
	if progress != nil {
		progress(rel.Name, rel.Len())
	}

	return load, nil
}

// tableColumns returns the lower-cased column names of table, or an empty set when it does not exist
func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// affinity maps an inferred column type to a SQLite type
func affinity(columnType string) string {
	switch columnType {
	case "int", "bool":
		return "INTEGER"
	case "float":
		return "REAL"
	default:
		return "TEXT"
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
