package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/f1dq/internal/contracts"
)

// Repository handles validation run persistence
// SSOT: quality.validation_runs is written and read here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ contracts.SnapshotRepository = (*Repository)(nil)

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// EnsureSchema creates the history table if needed
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS quality;

		CREATE TABLE IF NOT EXISTS quality.validation_runs (
			run_id       UUID PRIMARY KEY,
			created_at   TIMESTAMPTZ NOT NULL,
			fingerprint  TEXT NOT NULL,
			rules_hash   TEXT NOT NULL,
			source       TEXT NOT NULL,
			total_rows   INTEGER NOT NULL,
			checks       JSONB NOT NULL,
			passed       BOOLEAN NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_validation_runs_created_at
			ON quality.validation_runs (created_at DESC);
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure quality schema: %w", err)
	}
	return nil
}

// Save inserts a run summary; re-saving the same run id overwrites it
func (r *Repository) Save(ctx context.Context, snapshot *contracts.QualitySnapshot) error {
	if snapshot.RunID == "" {
		snapshot.RunID = NewRunID()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}

	checks, err := json.Marshal(snapshot.Checks)
	if err != nil {
		return fmt.Errorf("marshal checks: %w", err)
	}

	query := `
		INSERT INTO quality.validation_runs (
			run_id, created_at, fingerprint, rules_hash, source, total_rows, checks, passed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			fingerprint = EXCLUDED.fingerprint,
			rules_hash = EXCLUDED.rules_hash,
			source = EXCLUDED.source,
			total_rows = EXCLUDED.total_rows,
			checks = EXCLUDED.checks,
			passed = EXCLUDED.passed
	`

	_, err = r.pool.Exec(ctx, query,
		snapshot.RunID,
		snapshot.CreatedAt,
		snapshot.Fingerprint,
		snapshot.RulesHash,
		snapshot.Source,
		snapshot.TotalRows,
		checks,
		snapshot.Passed,
	)
	if err != nil {
		return fmt.Errorf("save validation run: %w", err)
	}

	return nil
}

// List returns the most recent runs, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]*contracts.QualitySnapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id::TEXT, created_at, fingerprint, rules_hash, source, total_rows, checks, passed
		FROM quality.validation_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	var out []*contracts.QualitySnapshot
	for rows.Next() {
		s := &contracts.QualitySnapshot{}
		var checks []byte
		if err := rows.Scan(
			&s.RunID,
			&s.CreatedAt,
			&s.Fingerprint,
			&s.RulesHash,
			&s.Source,
			&s.TotalRows,
			&checks,
			&s.Passed,
		); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		if err := json.Unmarshal(checks, &s.Checks); err != nil {
			return nil, fmt.Errorf("decode checks of run %s: %w", s.RunID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validation runs: %w", err)
	}

	return out, nil
}

// LatestByFingerprint returns the newest run for a dataset fingerprint, or nil when none exists
func (r *Repository) LatestByFingerprint(ctx context.Context, fingerprint string) (*contracts.QualitySnapshot, error) {
	query := `
		SELECT run_id::TEXT, created_at, fingerprint, rules_hash, source, total_rows, checks, passed
		FROM quality.validation_runs
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	s := &contracts.QualitySnapshot{}
	var checks []byte
	err := r.pool.QueryRow(ctx, query, fingerprint).Scan(
		&s.RunID, &s.CreatedAt, &s.Fingerprint, &s.RulesHash, &s.Source, &s.TotalRows, &checks, &s.Passed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get validation run: %w", err)
	}
	if err := json.Unmarshal(checks, &s.Checks); err != nil {
		return nil, fmt.Errorf("decode checks of run %s: %w", s.RunID, err)
	}
	return s, nil
}
