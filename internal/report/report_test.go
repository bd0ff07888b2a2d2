package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/diagnostics"
	"github.com/wonny/f1dq/internal/quality"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/internal/store"
	"github.com/wonny/f1dq/pkg/logger"
)

func relation(t *testing.T, name string, columns []string, rows ...[]string) *contracts.Relation {
	t.Helper()
	rel := contracts.NewRelation(name, columns)
	for _, r := range rows {
		row := make([]contracts.Value, len(r))
		for i, raw := range r {
			if raw == "" {
				row[i] = contracts.NullValue()
			} else {
				row[i] = contracts.V(raw)
			}
		}
		require.NoError(t, rel.Append(row))
	}
	return rel
}

func defaultRules(t *testing.T) *rules.Config {
	t.Helper()
	cfg, _, err := rules.Default()
	require.NoError(t, err)
	return cfg
}

// validate runs the gate over a small dataset with one corrupt lap and one dual-constructor pair.
// The z threshold is lowered so three laps can produce an outlier.
func validate(t *testing.T) *quality.Result {
	t.Helper()
	ds := contracts.NewDataset()
	for _, r := range []*contracts.Relation{
		relation(t, "circuits", []string{"circuitId", "circuitRef", "name"},
			[]string{"1", "albert_park", "Albert Park"},
			[]string{"14", "monza", "Monza"},
		),
		relation(t, "drivers", []string{"driverId", "driverRef", "forename", "surname", "nationality", "code"},
			[]string{"1", "hamilton", "Lewis", "Hamilton", "British", "HAM"},
			[]string{"427", "fangio", "Juan", "Fangio", "Argentine", ""},
		),
		relation(t, "constructors", []string{"constructorId", "constructorRef", "name", "nationality"},
			[]string{"1", "mclaren", "McLaren", "British"},
			[]string{"6", "ferrari", "Ferrari", "Italian"},
		),
		relation(t, "races", []string{"raceId", "year", "round", "circuitId", "name", "date"},
			[]string{"1", "2009", "1", "1", "Australian Grand Prix", "2009-03-29"},
			[]string{"792", "1956", "8", "14", "Italian Grand Prix", "1956-09-02"},
		),
		relation(t, "results", []string{"resultId", "raceId", "driverId", "constructorId", "statusId", "grid", "position", "points", "laps", "is_dnf"},
			[]string{"1", "1", "1", "1", "1", "1", "1", "10", "58", "0"},
			[]string{"2", "792", "427", "6", "3", "2", "2", "0", "30", "1"},
			[]string{"3", "792", "427", "1", "3", "2", "", "0", "20", "1"},
		),
		relation(t, "qualifying", []string{"qualifyId", "raceId", "driverId", "q1_ms", "q2_ms", "q3_ms"},
			[]string{"1", "1", "1", "85000", "84500", "84000"},
		),
		relation(t, "pit_stops", []string{"raceId", "driverId", "stop", "lap", "pit_duration_ms"},
			[]string{"1", "1", "1", "20", "22500"},
		),
		relation(t, "lap_times", []string{"raceId", "driverId", "lap", "position", "lap_time_ms"},
			[]string{"1", "1", "1", "1", "90600"},
			[]string{"1", "1", "2", "1", "754400"},
			[]string{"792", "427", "1", "2", "155400"},
		),
		relation(t, "status", []string{"statusId", "status"},
			[]string{"1", "Finished"},
			[]string{"3", "Engine"},
		),
	} {
		ds.Add(r)
	}

	cfg := defaultRules(t)
	cfg.LapTimes.ZThreshold = 1
	gate, err := quality.NewQualityGate(cfg, logger.Nop())
	require.NoError(t, err)
	res, err := gate.Run(context.Background(), ds, "data/raw")
	require.NoError(t, err)
	require.False(t, res.Passed, "corrupt lap must fail the scorecard")
	return res
}

func TestMarkdown(t *testing.T) {
	res := validate(t)
	cfg := defaultRules(t)

	out := Markdown(res, cfg.Nulls, Options{})

	for _, heading := range []string{
		"# Data Quality Report",
		"## 0. Quality Scorecard",
		"## 1. Dataset Inventory",
		"## 2. Null Value Analysis",
		"## 3. Schema Drift Check",
		"## 4. Foreign Key Validation",
		"## 5. Duplicate Race-Driver Records",
		"## 6. Lap Time Validation",
		"## 7. Status & DNF Validation",
	} {
		assert.Contains(t, out, heading)
	}
	assert.Contains(t, out, "**Overall:** ❌ FAIL")
	assert.Contains(t, out, "> **Source:** `data/raw`")
	assert.Contains(t, out, "_Generated by `f1dq validate`.")
	assert.NotContains(t, out, "**Generated:**")

	t.Run("deterministic", func(t *testing.T) {
		if diff := cmp.Diff(out, Markdown(res, cfg.Nulls, Options{})); diff != "" {
			t.Errorf("render differs (-first +second):\n%s", diff)
		}
	})

	t.Run("timestamp and source override", func(t *testing.T) {
		at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
		out := Markdown(res, cfg.Nulls, Options{Source: "s3://bucket/f1", Generated: at, Command: "make validate"})
		assert.Contains(t, out, "> **Generated:** 2026-10-19 08:30:00")
		assert.Contains(t, out, "> **Source:** `s3://bucket/f1`")
		assert.Contains(t, out, "_Generated by `make validate`.")
	})
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"pass badge", badge(true), "✅ PASS"},
		{"fail badge", badge(false), "❌ FAIL"},
		{"pct", pctOf(1, 3), "33.3%"},
		{"pct of zero", pctOf(0, 0), "N/A"},
		{"commas", commas(1234567), "1,234,567"},
		{"commas negative", commas(-1000), "-1,000"},
		{"commas small", commas(999), "999"},
		{"nil cell", cell(nil), "—"},
		{"int cell", cell(int64(25840)), "25,840"},
		{"float cell", cell(854.4), "854.4"},
		{"float cell rounded", cell(1234.567), "1,234.57"},
		{"whole float", cell(3.0), "3"},
		{"negative float", cell(-0.5), "-0.5"},
		{"pipe escaped", cell("a|b"), `a\|b`},
		{"empty code list", codeList(nil), "—"},
		{"code list", codeList([]string{"a", "b"}), "`a`, `b`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestDoc(t *testing.T) {
	var d doc
	d.line("## %s", "Title")
	d.raw("100% literal %s")
	d.line("plain")
	assert.Equal(t, "## Title\n100% literal %s\nplain\n", d.String())
}

func TestTable(t *testing.T) {
	tbl := &table{header: []string{"Name", "Rows", "State"}, align: []string{"l", "r", "c"}}
	tbl.add("results", "2", "ok")

	var b strings.Builder
	tbl.write(&b)
	assert.Equal(t, "| Name | Rows | State |\n| --- | ---: | :---: |\n| results | 2 | ok |\n", b.String())
}

func TestWriteWorkbook(t *testing.T) {
	res := validate(t)
	path := filepath.Join(t.TempDir(), "out", DefaultWorkbookName)

	require.NoError(t, WriteWorkbook(path, res))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	want := []string{"Scorecard", "Inventory", "Nulls", "Schema", "ForeignKeys", "Duplicates", "LapTimes", "Status"}
	if diff := cmp.Diff(want, f.GetSheetList()); diff != "" {
		t.Errorf("sheets (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows("Scorecard")
	require.NoError(t, err)
	require.Len(t, rows, len(res.Scorecard)+2)
	assert.Equal(t, []string{"#", "Check", "Result", "Detail"}, rows[0])
	assert.Equal(t, quality.CheckNullsName, rows[1][1])
	assert.Equal(t, "Overall", rows[len(rows)-1][1])
	assert.Equal(t, "FAIL", rows[len(rows)-1][2])

	laps, err := f.GetRows("LapTimes")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(laps), 2)
	assert.Equal(t, "1", laps[1][0])
	assert.Equal(t, "754.4", laps[1][3])
}

func TestDiagnostics(t *testing.T) {
	cfg := defaultRules(t)
	rep := &diagnostics.Report{
		Database: "data/f1.db",
		Results: []diagnostics.Result{
			{
				Query:     diagnostics.Query{Block: "A", ID: "A1", Title: "Rows", Question: "How many?", Interpretation: "More is fine.", Limit: 2},
				Rows:      &store.Rows{Columns: []string{"id", "value"}, Values: [][]any{{int64(1), nil}, {int64(2), 1.5}}},
				Truncated: true,
			},
			{
				Query: diagnostics.Query{Block: "A", ID: "A2", Title: "Empty", Question: "Any?", Interpretation: "None expected; 107% Rule rows are excluded."},
				Rows:  &store.Rows{Columns: []string{"id"}},
			},
			{
				Query: diagnostics.Query{Block: "B", ID: "B1", Title: "Broken", Question: "Works?", Interpretation: "It should."},
				Err:   errors.New("no such table: missing"),
			},
		},
	}

	out := Diagnostics(rep, cfg, Options{})

	assert.Contains(t, out, "## "+diagnostics.BlockLabel(cfg, "A"))
	assert.Contains(t, out, "## "+diagnostics.BlockLabel(cfg, "B"))
	assert.Equal(t, 1, strings.Count(out, "## "+diagnostics.BlockLabel(cfg, "A")+"\n"))
	assert.Contains(t, out, "### A1. Rows")
	assert.Contains(t, out, "**Results:** 2 rows _(showing first 2 rows)_")
	assert.Contains(t, out, "| 1 | — |")
	assert.Contains(t, out, "| 2 | 1.5 |")
	assert.Contains(t, out, "_No rows returned._")
	assert.Contains(t, out, "None expected; 107% Rule rows are excluded.\n")
	assert.Contains(t, out, "> ⚠️ **Query failed:** `no such table: missing`")
	assert.Contains(t, out, "- Queries run: **3**")
	assert.Contains(t, out, "- Queries failed: **1**")
	assert.NotContains(t, out, "**Generated:**")
}

func TestAnalysis(t *testing.T) {
	results := []store.QueryResult{
		{
			Query: store.Query{Name: "driver_standings", Title: "Driver standings"},
			Rows:  &store.Rows{Columns: []string{"rank", "driver"}, Values: [][]any{{int64(1), "Lewis Hamilton"}}},
		},
		{
			Query: store.Query{Name: "broken"},
			Err:   errors.New("syntax error"),
		},
	}

	out := Analysis(results, "data/f1.db", Options{})

	assert.Contains(t, out, "## 1. Driver standings")
	assert.Contains(t, out, "| 1 | Lewis Hamilton |")
	assert.Contains(t, out, "## 2. broken")
	assert.Contains(t, out, "`syntax error`")
	assert.Contains(t, out, "1 of 2 queries failed")
}

func TestSummary(t *testing.T) {
	res := validate(t)

	out := Summary(res)
	for _, c := range res.Scorecard {
		assert.Contains(t, out, c.Name)
	}
	assert.Contains(t, out, "checks passed")
	assert.Contains(t, out, "data/raw")
}

func TestHistory(t *testing.T) {
	assert.Contains(t, History(nil), "No runs recorded.")

	res := validate(t)
	snap := res.ToSnapshot("run-1", time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC))
	out := History([]*contracts.QualitySnapshot{snap})
	assert.Contains(t, out, "2026-10-19 08:30")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, quality.CheckLapTimesName)
}
