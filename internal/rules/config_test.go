package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, raw, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "f1_results_quality", cfg.Meta.Name)
	assert.Equal(t, 5.0, cfg.Nulls.MinorMaxPct)
	assert.Equal(t, 20.0, cfg.Nulls.ModerateMaxPct)
	assert.Equal(t, []string{RuleDualConstructor, RuleSharedDrive, RuleSprintWeekend}, cfg.Duplicates.Rules)
	assert.Equal(t, 600000.0, cfg.LapTimes.CorruptMs)
	assert.Contains(t, cfg.Nulls.Justified, "sprint_date")
	assert.Contains(t, cfg.Nulls.Investigate, "results.position")

	cols, ok := cfg.SchemaFor("status")
	require.True(t, ok)
	assert.Equal(t, []string{"statusId", "status"}, cols)

	_, ok = cfg.SchemaFor("weather")
	assert.False(t, ok)
}

func TestHash(t *testing.T) {
	cfg, _, err := Default()
	require.NoError(t, err)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// Same manifest -> same hash
	again, _, err := Default()
	require.NoError(t, err)
	hash2, err := Hash(again)
	require.NoError(t, err)
	assert.Equal(t, hash, hash2)

	again.LapTimes.CorruptMs = 900000
	hash3, err := Hash(again)
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash3)
}

func TestParse_UnknownField(t *testing.T) {
	data := strings.Replace(string(defaultManifest), "minor_max_pct:", "minor_max_pc:", 1)

	_, err := Parse([]byte(data))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultManifest, 0o644))

	cfg, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultManifest, raw)
	assert.Equal(t, "results", cfg.Duplicates.Table)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, _, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "lap_times", cfg.LapTimes.Table)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"moderate below minor", func(c *Config) { c.Nulls.ModerateMaxPct = 4 }, "nulls.moderate_max_pct"},
		{"zero minor", func(c *Config) { c.Nulls.MinorMaxPct = 0 }, "nulls.minor_max_pct"},
		{"justified and investigate", func(c *Config) { c.Nulls.Investigate["code"] = "x" }, "nulls"},
		{"empty schema table", func(c *Config) { c.Schema[0].Table = "" }, "schema[0].table"},
		{"duplicate schema table", func(c *Config) { c.Schema[1].Table = c.Schema[0].Table }, "schema[1].table"},
		{"incomplete foreign key", func(c *Config) { c.ForeignKeys[0].ParentColumn = "" }, "foreign_keys[0]"},
		{"unknown duplicate rule", func(c *Config) { c.Duplicates.Rules = append(c.Duplicates.Rules, "phase_of_moon") }, "duplicates.rules[3]"},
		{"spread ratio above one", func(c *Config) { c.Duplicates.MinLapSpreadRatio = 1.5 }, "duplicates.min_lap_spread_ratio"},
		{"warn above corrupt", func(c *Config) { c.LapTimes.WarnMs = 700000 }, "lap_times"},
		{"zero z threshold", func(c *Config) { c.LapTimes.ZThreshold = 0 }, "lap_times.z_threshold"},
		{"bad override category", func(c *Config) { c.Status.Overrides["excluded"] = "Maybe" }, "status.overrides[excluded]"},
		{"no finished patterns", func(c *Config) { c.Status.FinishedPatterns = nil }, "status.finished_patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
