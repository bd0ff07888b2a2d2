package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/pkg/logger"
)

func newGate(t *testing.T, cfg *rules.Config) *QualityGate {
	t.Helper()
	gate, err := NewQualityGate(cfg, logger.Nop())
	require.NoError(t, err)
	return gate
}

func TestQualityGate_CleanDatasetPasses(t *testing.T) {
	gate := newGate(t, defaultRules(t))

	res, err := gate.Run(context.Background(), cleanDataset(t), "test")
	require.NoError(t, err)

	require.Len(t, res.Scorecard, 6)
	names := make([]string, 0, len(res.Scorecard))
	for _, c := range res.Scorecard {
		names = append(names, c.Name)
		assert.True(t, c.Passed, "%s: %s", c.Name, c.Detail)
	}
	assert.Equal(t, []string{
		CheckNullsName,
		CheckSchemaName,
		CheckForeignKeysName,
		CheckDuplicatesName,
		CheckLapTimesName,
		CheckStatusName,
	}, names)

	assert.True(t, res.Passed)
	assert.NoError(t, res.Err())
	assert.Equal(t, "f1_results_quality", res.RulesName)
	assert.Equal(t, gate.RulesHash(), res.RulesHash)
	assert.Len(t, res.Inventory, len(contracts.AllTables))
	assert.Equal(t, 18, res.TotalRows())
}

func TestQualityGate_FailureReturnsScorecardError(t *testing.T) {
	ds := cleanDataset(t)
	laps, ok := ds.Get("lap_times")
	require.True(t, ok)
	require.NoError(t, laps.Append([]contracts.Value{
		contracts.V("1"), contracts.V("1"), contracts.V("3"), contracts.V("1"), contracts.V("854400"),
	}))

	res, err := newGate(t, defaultRules(t)).Run(context.Background(), ds, "test")
	require.NoError(t, err, "findings are not run errors")

	assert.False(t, res.Passed)
	assert.False(t, res.LapTimes.Passed)
	assert.Equal(t, 1, res.LapTimes.Corrupt)

	runErr := res.Err()
	require.Error(t, runErr)
	assert.True(t, errors.Is(runErr, ErrScorecardFailed))
	assert.Contains(t, runErr.Error(), "1 of 6 checks failed")
}

func TestQualityGate_InvalidRelationship(t *testing.T) {
	cfg := defaultRules(t)
	cfg.ForeignKeys = append(cfg.ForeignKeys, rules.ForeignKey{
		ChildTable: "results", ChildColumn: "sessionId", ParentTable: "races", ParentColumn: "raceId",
	})

	_, err := newGate(t, cfg).Run(context.Background(), cleanDataset(t), "test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRelationship))
}

func TestQualityGate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newGate(t, defaultRules(t)).Run(ctx, cleanDataset(t), "test")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQualityGate_Deterministic(t *testing.T) {
	gate := newGate(t, defaultRules(t))

	a, err := gate.Run(context.Background(), cleanDataset(t), "test")
	require.NoError(t, err)
	b, err := gate.Run(context.Background(), cleanDataset(t), "test")
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a, b)
}

func TestResult_ToSnapshot(t *testing.T) {
	res, err := newGate(t, defaultRules(t)).Run(context.Background(), cleanDataset(t), "csv:data/interim")
	require.NoError(t, err)

	at := time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)
	snap := res.ToSnapshot("run-1", at)

	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, at, snap.CreatedAt)
	assert.Equal(t, res.Fingerprint, snap.Fingerprint)
	assert.Equal(t, "csv:data/interim", snap.Source)
	assert.Equal(t, res.TotalRows(), snap.TotalRows)
	assert.Equal(t, 6, snap.PassedCount())
	assert.Equal(t, 1.0, snap.PassRate())
	assert.Empty(t, snap.FailedChecks())

	snap.Checks[0].Passed = false
	assert.True(t, res.Scorecard[0].Passed, "snapshot checks are a copy")
}

func TestInventory(t *testing.T) {
	ds := dataset(relation(t, "drivers", []string{"driverId", "code"},
		[]string{"1", "HAM"},
		[]string{"2", ""},
	))

	inv := Inventory(ds)
	require.Len(t, inv, 1)
	assert.Equal(t, InventoryRow{Table: "drivers", Rows: 2, Columns: 2, NullCells: 1, NullPct: 25}, inv[0])
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"short", "abc123", "abc123"},
		{"sha256", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", "0123456789ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shortHash(tt.in))
		})
	}
}
