package quality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/pkg/logger"
)

// ErrScorecardFailed is returned when at least one scorecard check fails
var ErrScorecardFailed = errors.New("quality scorecard failed")

// Scorecard check names, in report order
const (
	CheckNullsName       = "No unjustified high-null columns"
	CheckSchemaName      = "Schema: all expected columns present"
	CheckForeignKeysName = "Foreign key integrity"
	CheckDuplicatesName  = "No unexplained duplicate race-driver records"
	CheckLapTimesName    = "Lap time: no corrupt values"
	CheckStatusName      = "Status integration with results intact"
)

// InventoryRow describes one loaded table
type InventoryRow struct {
	Table     string  `json:"table"`
	Rows      int     `json:"rows"`
	Columns   int     `json:"columns"`
	NullCells int     `json:"null_cells"`
	NullPct   float64 `json:"null_pct"`
}

// Result is the full outcome of one validation run
type Result struct {
	Source       string `json:"source"`
	RulesName    string `json:"rules_name"`
	RulesVersion string `json:"rules_version"`
	RulesHash    string `json:"rules_hash"`
	Fingerprint  string `json:"fingerprint"`

	Inventory []InventoryRow `json:"inventory"`

	Nulls       *NullReport       `json:"nulls"`
	Schema      *SchemaReport     `json:"schema"`
	ForeignKeys *ForeignKeyReport `json:"foreign_keys"`
	Duplicates  *DuplicateReport  `json:"duplicates"`
	LapTimes    *LapTimeReport    `json:"lap_times"`
	Status      *StatusReport     `json:"status"`

	Scorecard []contracts.CheckOutcome `json:"scorecard"`
	Passed    bool                     `json:"passed"`
}

// TotalRows sums rows across the inventory
func (r *Result) TotalRows() int {
	n := 0
	for _, row := range r.Inventory {
		n += row.Rows
	}
	return n
}

// Err returns ErrScorecardFailed when the overall scorecard fails
func (r *Result) Err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%w: %d of %d checks failed", ErrScorecardFailed, len(r.Scorecard)-r.passedCount(), len(r.Scorecard))
}

func (r *Result) passedCount() int {
	n := 0
	for _, c := range r.Scorecard {
		if c.Passed {
			n++
		}
	}
	return n
}

// ToSnapshot converts the result into a persisted run summary
func (r *Result) ToSnapshot(runID string, at time.Time) *contracts.QualitySnapshot {
	checks := make([]contracts.CheckOutcome, len(r.Scorecard))
	copy(checks, r.Scorecard)
	return &contracts.QualitySnapshot{
		RunID:       runID,
		CreatedAt:   at,
		Fingerprint: r.Fingerprint,
		RulesHash:   r.RulesHash,
		Source:      r.Source,
		TotalRows:   r.TotalRows(),
		Checks:      checks,
		Passed:      r.Passed,
	}
}

// QualityGate runs every check over a loaded dataset
// SSOT: the six scorecard checks are composed here only
type QualityGate struct {
	rules     *rules.Config
	rulesHash string
	detector  *DuplicateDetector
	logger    *logger.Logger
}

// NewQualityGate creates a gate for a validated rule manifest.
// extra duplicate rules run after the configured chain.
func NewQualityGate(cfg *rules.Config, log *logger.Logger, extra ...DuplicateRule) (*QualityGate, error) {
	hash, err := rules.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash rules: %w", err)
	}
	detector, err := NewDuplicateDetector(cfg.Duplicates, extra...)
	if err != nil {
		return nil, err
	}
	return &QualityGate{
		rules:     cfg,
		rulesHash: hash,
		detector:  detector,
		logger:    log.WithField("module", "quality"),
	}, nil
}

// RulesHash returns the manifest hash
func (g *QualityGate) RulesHash() string {
	return g.rulesHash
}

// Run executes nulls, schema, foreign keys, duplicates, lap times and status in order.
// Findings never produce an error; only an invalid relationship declaration does.
func (g *QualityGate) Run(ctx context.Context, ds *contracts.Dataset, source string) (*Result, error) {
	start := time.Now()
	res := &Result{
		Source:       source,
		RulesName:    g.rules.Meta.Name,
		RulesVersion: g.rules.Meta.Version,
		RulesHash:    g.rulesHash,
		Fingerprint:  ds.Fingerprint(),
		Inventory:    Inventory(ds),
	}

	// Declarations are validated before any check runs
	if err := ValidateRelationships(ds, g.rules.ForeignKeys); err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"nulls", func() error { res.Nulls = CheckNulls(ds, g.rules.Nulls); return nil }},
		{"schema", func() error { res.Schema = CheckSchema(ds, g.rules.Schema); return nil }},
		{"foreign_keys", func() (err error) { res.ForeignKeys, err = CheckForeignKeys(ds, g.rules.ForeignKeys); return err }},
		{"duplicates", func() error { res.Duplicates = g.detector.Check(ds); return nil }},
		{"lap_times", func() error { res.LapTimes = CheckLapTimes(ds, g.rules.LapTimes); return nil }},
		{"status", func() error { res.Status = CheckStatus(ds, g.rules.Status); return nil }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := time.Now()
		if err := step.run(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
		g.logger.WithFields(map[string]interface{}{
			"check":    step.name,
			"duration": time.Since(t),
		}).Debug("Check completed")
	}

	res.Scorecard = []contracts.CheckOutcome{
		{Name: CheckNullsName, Passed: res.Nulls.Passed, Detail: nullsDetail(res.Nulls)},
		{Name: CheckSchemaName, Passed: res.Schema.Passed, Detail: schemaDetail(res.Schema)},
		{Name: CheckForeignKeysName, Passed: res.ForeignKeys.Passed, Detail: foreignKeyDetail(res.ForeignKeys)},
		{Name: CheckDuplicatesName, Passed: res.Duplicates.Passed, Detail: duplicatesDetail(res.Duplicates)},
		{Name: CheckLapTimesName, Passed: res.LapTimes.Passed, Detail: lapTimesDetail(res.LapTimes)},
		{Name: CheckStatusName, Passed: res.Status.Passed, Detail: statusDetail(res.Status)},
	}
	res.Passed = true
	for _, c := range res.Scorecard {
		res.Passed = res.Passed && c.Passed
	}

	g.logger.WithFields(map[string]interface{}{
		"passed":      res.Passed,
		"checks_ok":   res.passedCount(),
		"fingerprint": shortHash(res.Fingerprint),
		"duration":    time.Since(start),
	}).Info("Quality gate completed")

	return res, nil
}

// shortHash abbreviates a hex digest for log lines
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// Inventory summarizes each loaded table
func Inventory(ds *contracts.Dataset) []InventoryRow {
	var out []InventoryRow
	for _, name := range ds.Names() {
		rel, _ := ds.Get(name)
		nulls := rel.NullCells()
		out = append(out, InventoryRow{
			Table:     name,
			Rows:      rel.Len(),
			Columns:   len(rel.Columns),
			NullCells: nulls,
			NullPct:   pct(nulls, rel.Len()*len(rel.Columns)),
		})
	}
	return out
}

func nullsDetail(r *NullReport) string {
	if r.Passed {
		return "no failing columns"
	}
	return fmt.Sprintf("%d failing columns", len(r.Failing))
}

func schemaDetail(r *SchemaReport) string {
	failed := 0
	for _, t := range r.Tables {
		if !t.Passed {
			failed++
		}
	}
	return fmt.Sprintf("%d of %d tables missing columns", failed, len(r.Tables))
}

func foreignKeyDetail(r *ForeignKeyReport) string {
	orphans, failed := 0, 0
	for _, fk := range r.Results {
		orphans += fk.OrphanRows
		if !fk.Passed {
			failed++
		}
	}
	return fmt.Sprintf("%d orphan rows across %d of %d relationships", orphans, failed, len(r.Results))
}

func duplicatesDetail(r *DuplicateReport) string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("%d duplicate pairs, %d unexplained groups", r.Pairs, r.Unexplained)
}

func lapTimesDetail(r *LapTimeReport) string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("%d hard-fail values", r.HardFail)
}

func statusDetail(r *StatusReport) string {
	if r.Note != "" && r.Mapped == 0 {
		return r.Note
	}
	return fmt.Sprintf("%d unmapped statusId rows", r.Unmapped)
}
