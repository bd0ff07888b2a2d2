package report

import (
	"fmt"
	"strings"

	"github.com/wonny/f1dq/internal/quality"
	"github.com/wonny/f1dq/internal/rules"
)

// DefaultFileName is the validation report written by validate
const DefaultFileName = "data_quality_report.md"

var severityLabels = map[quality.Severity]string{
	quality.SeverityClean:       "✅ Clean",
	quality.SeverityMinor:       "⚠️ Minor",
	quality.SeverityModerate:    "🔶 Moderate",
	quality.SeverityHigh:        "❌ High",
	quality.SeverityJustified:   "ℹ️ Justified",
	quality.SeverityInvestigate: "🔍 Investigate",
}

type categoryInfo struct {
	label, meaning, action string
}

var duplicateCategories = map[string]categoryInfo{
	rules.RuleSprintWeekend: {
		"🏎️ Sprint weekend", "Sprint and main race share one raceId", "Add a `session_type` column or a separate table",
	},
	rules.RuleDualConstructor: {
		"🏛️ Dual constructor", "Driver raced for two teams in the same event", "Extend the key with `constructorId`",
	},
	rules.RuleSharedDrive: {
		"🤝 Shared drive", "Early-era car shared between drivers", "Keep both rows; aggregate by laps when modeling",
	},
	quality.CategoryUnexplained: {
		"❓ Unexplained", "No structural reason found", "**Investigate immediately**",
	},
}

var outlierCauses = map[string]string{
	quality.CauseExpectedSlow: "SC/VSC or red flag",
	quality.CauseHardFail:     "Likely corrupt",
	quality.CauseUnexplained:  "Unexplained",
}

// Markdown renders the full validation report. Output depends only on res,
// nulls (legend thresholds) and opts.
func Markdown(res *quality.Result, nulls rules.Nulls, opts Options) string {
	sections := []string{
		header(res, opts),
		scorecard(res),
		inventory(res),
		nullSection(res.Nulls, nulls),
		schemaSection(res.Schema),
		foreignKeySection(res.ForeignKeys),
		duplicateSection(res.Duplicates),
		lapTimeSection(res.LapTimes),
		statusSection(res.Status),
		footer(opts.command("f1dq validate")),
	}
	return strings.Join(sections, "\n")
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func header(res *quality.Result, opts Options) string {
	var d doc
	d.line("# Data Quality Report")
	d.blank()
	if !opts.Generated.IsZero() {
		d.line("> **Generated:** %s  ", opts.Generated.Format("2006-01-02 15:04:05"))
	}
	source := opts.Source
	if source == "" {
		source = res.Source
	}
	d.line("> **Source:** `%s`  ", source)
	d.line("> **Tables loaded:** %d  ", len(res.Inventory))
	if res.RulesName != "" {
		d.line("> **Rules:** `%s` v%s (`%s`)  ", res.RulesName, res.RulesVersion, short(res.RulesHash))
	}
	d.line("> **Dataset fingerprint:** `%s`", short(res.Fingerprint))
	d.blank()
	d.line(rule)
	return d.String()
}

func footer(command string) string {
	var d doc
	d.line(rule)
	d.blank()
	d.line("_Generated by `%s`. Re-run at any time before modeling to verify data integrity._", command)
	return d.String()
}

func scorecard(res *quality.Result) string {
	var d doc
	d.line("## 0. Quality Scorecard")
	d.blank()
	d.line("**Overall:** %s", badge(res.Passed))
	d.blank()
	t := &table{header: []string{"#", "Check", "Result", "Detail"}, align: []string{"l", "l", "c", "l"}}
	for i, c := range res.Scorecard {
		t.add(fmt.Sprint(i+1), c.Name, badge(c.Passed), escapeCell(c.Detail))
	}
	d.table(t)
	return d.String()
}

func inventory(res *quality.Result) string {
	var d doc
	d.line("## 1. Dataset Inventory")
	d.blank()
	t := &table{header: []string{"Table", "Rows", "Columns", "Null Cells", "Null %"}, align: []string{"l", "r", "r", "r", "r"}}
	for _, row := range res.Inventory {
		t.add("`"+row.Table+"`", num(row.Rows), fmt.Sprint(row.Columns), num(row.NullCells), pctOf(row.NullCells, row.Rows*row.Columns))
	}
	d.table(t)
	return d.String()
}

func nullSection(r *quality.NullReport, cfg rules.Nulls) string {
	var d doc
	d.line("## 2. Null Value Analysis")
	d.blank()
	d.line("**Overall:** %s", badge(r.Passed))
	d.blank()

	for _, tbl := range r.Tables {
		d.line("### `%s`", tbl.Table)
		d.line("- **Rows:** %s  |  **Columns:** %d  |  **Columns with nulls:** %d", num(tbl.Rows), tbl.Columns, tbl.ColumnsWithNulls)
		d.blank()
		t := &table{header: []string{"Column", "Type", "Null Count", "Null %", "Severity", "Note"}, align: []string{"l", "l", "r", "r", "l", "l"}}
		for _, e := range tbl.Entries {
			note := e.Note
			if note == "" {
				note = "—"
			}
			t.add("`"+e.Column+"`", e.Type, num(e.NullCount), fmt.Sprintf("%.2f%%", e.NullPct), severityLabels[e.Severity], escapeCell(note))
		}
		d.table(t)
		d.blank()
	}

	minor, moderate := cfg.MinorMaxPct, cfg.ModerateMaxPct
	if minor == 0 && moderate == 0 {
		minor, moderate = 5, 20
	}
	d.line("### Null Classification Legend")
	d.blank()
	legend := &table{header: []string{"Label", "Meaning"}}
	legend.add(severityLabels[quality.SeverityClean], "No nulls")
	legend.add(severityLabels[quality.SeverityMinor], fmt.Sprintf("< %g%% null, no action needed", minor))
	legend.add(severityLabels[quality.SeverityModerate], fmt.Sprintf("%g–%g%% null, monitor", minor, moderate))
	legend.add(severityLabels[quality.SeverityHigh], fmt.Sprintf("≥ %g%% null, unjustified — fix required", moderate))
	legend.add(severityLabels[quality.SeverityJustified], "High null rate expected due to era/format constraints")
	legend.add(severityLabels[quality.SeverityInvestigate], "Null rate requires manual review before modeling")
	d.table(legend)
	return d.String()
}

func schemaSection(r *quality.SchemaReport) string {
	var d doc
	d.line("## 3. Schema Drift Check")
	d.blank()
	d.line("**Overall:** %s", badge(r.Passed))
	d.blank()
	t := &table{header: []string{"Table", "Missing Columns", "Unexpected Columns", "Result"}, align: []string{"l", "l", "l", "c"}}
	for _, s := range r.Tables {
		if !s.Loaded {
			t.add("`"+s.Table+"`", "—", "—", "⚠️ Table not loaded")
			continue
		}
		t.add("`"+s.Table+"`", codeList(s.Missing), codeList(s.Unexpected), badge(s.Passed))
	}
	d.table(t)
	d.blank()
	d.line("> _Unexpected columns are informational only and do not fail this check._")
	return d.String()
}

func relationship(fk rules.ForeignKey) string {
	return fmt.Sprintf("`%s.%s` → `%s.%s`", fk.ChildTable, fk.ChildColumn, fk.ParentTable, fk.ParentColumn)
}

func foreignKeySection(r *quality.ForeignKeyReport) string {
	var d doc
	d.line("## 4. Foreign Key Validation")
	d.blank()
	d.line("**Overall:** %s", badge(r.Passed))
	d.blank()
	t := &table{header: []string{"Relationship", "Rows Checked", "Orphan Rows", "Orphan %", "Result"}, align: []string{"l", "r", "r", "r", "c"}}
	for _, fk := range r.Results {
		t.add(relationship(fk.Relationship), num(fk.RowsChecked), num(fk.OrphanRows), pctOf(fk.OrphanRows, fk.RowsChecked), badge(fk.Passed))
	}
	d.table(t)

	var detail []quality.ForeignKeyResult
	for _, fk := range r.Results {
		if !fk.Passed {
			detail = append(detail, fk)
		}
	}
	if len(detail) > 0 {
		d.blank()
		d.line("### Orphan Detail")
		for _, fk := range detail {
			d.blank()
			d.line("**%s — orphan values (%d distinct shown):**", relationship(fk.Relationship), len(fk.OrphanSample))
			d.blank()
			d.raw(codeList(fk.OrphanSample))
		}
	}
	return d.String()
}

func duplicateSection(r *quality.DuplicateReport) string {
	var d doc
	d.line("## 5. Duplicate Race-Driver Records")
	d.blank()
	if r.Note != "" {
		d.line("> ⚠️ %s", r.Note)
		return d.String()
	}

	d.line("**Composite key:** `%s`  ", strings.Join(r.Key, " × "))
	d.line("**Duplicate pairs found:** %s  ", num(r.Pairs))
	d.line("**Unexplained groups:** %s  →  %s  ", num(r.Unexplained), badge(r.Passed))
	d.line("**Rows affected:** %s / %s (%s)", num(r.AffectedRows), num(r.TotalRows), pctOf(r.AffectedRows, r.TotalRows))
	if r.Pairs == 0 {
		return d.String()
	}

	const maxIDs = 30
	ids := r.AffectedRaceIDs
	truncation := ""
	if len(ids) > maxIDs {
		truncation = fmt.Sprintf(" _(showing first %d of %d)_", maxIDs, len(ids))
		ids = ids[:maxIDs]
	}
	d.blank()
	d.line("**Distinct races affected:** %s  ", num(r.Races))
	d.line("**Affected raceIds:** %s%s", codeList(ids), truncation)
	d.blank()

	d.line("### Duplicate Root Cause Classification")
	d.blank()
	t := &table{header: []string{"Category", "Groups", "Rows", "Races", "Interpretation", "Action"}, align: []string{"l", "r", "r", "r", "l", "l"}}
	for _, c := range r.Categories {
		info, ok := duplicateCategories[c.Name]
		if !ok {
			info = categoryInfo{label: c.Name, meaning: "Custom rule", action: "—"}
		}
		t.add(info.label, num(c.Groups), num(c.Rows), num(c.Races), info.meaning, info.action)
	}
	d.table(t)

	if len(r.UnexplainedRaceIDs) > 0 {
		d.blank()
		d.line("> ⚠️ **Unexplained duplicate raceIds:** %s  ", codeList(r.UnexplainedRaceIDs))
		d.line("> These match no rule of the chain. Investigate before modeling.")
	}

	d.blank()
	d.line("**Top affected races (up to %d):**", len(r.TopRaces))
	d.blank()
	races := &table{header: []string{"raceId", "Year", "Duplicate Pairs", "Category"}, align: []string{"r", "r", "r", "l"}}
	for _, ra := range r.TopRaces {
		labels := make([]string, len(ra.Categories))
		for i, c := range ra.Categories {
			if info, ok := duplicateCategories[c]; ok {
				labels[i] = info.label
			} else {
				labels[i] = c
			}
		}
		races.add(ra.RaceID, ra.Year, num(ra.Pairs), strings.Join(labels, ", "))
	}
	d.table(races)

	d.blank()
	d.line("**All duplicate pairs (up to %d):**", len(r.Sample))
	d.blank()
	align := make([]string, len(r.Key)+1)
	for i := range align {
		align[i] = "r"
	}
	pairs := &table{header: append(append([]string{}, r.Key...), "Occurrences"), align: align}
	for _, s := range r.Sample {
		pairs.add(append(append([]string{}, s.Key...), num(s.Occurrences))...)
	}
	d.table(pairs)
	return d.String()
}

func secs(ms float64) string {
	return fmt.Sprintf("%.3f s", ms/1000)
}

func lapTimeSection(r *quality.LapTimeReport) string {
	var d doc
	d.line("## 6. Lap Time Validation")
	d.blank()
	if r.Note != "" {
		d.line("> ⚠️ %s", r.Note)
		return d.String()
	}

	th := r.Thresholds
	st := r.Stats
	d.line("**Column:** `%s.%s`  →  %s", r.Table, r.Column, badge(r.Passed))
	d.blank()
	d.line("**Thresholds:**")
	d.line("- Hard fail: < %.0f s (impossible) or > %.0f s (corrupt)", th.MinMs/1000, th.CorruptMs/1000)
	d.line("- Warning: %.0f–%.0f s (Safety Car / VSC / formation lap — real events, not errors)", th.WarnMs/1000, th.CorruptMs/1000)
	d.line("- Z-score outlier: |z| > %gσ", th.ZThreshold)
	d.blank()

	d.line("### Descriptive Statistics")
	d.blank()
	stats := &table{header: []string{"Metric", "Value"}, align: []string{"l", "r"}}
	stats.add("Total records", num(r.TotalRows))
	stats.add("Valid (non-null)", num(st.Count))
	stats.add("Null / missing", fmt.Sprintf("%s (%s)", num(st.Nulls), pctOf(st.Nulls, r.TotalRows)))
	if r.Unparseable > 0 {
		stats.add("Unparseable", num(r.Unparseable))
	}
	if st.Count > 0 {
		stats.add("Mean", secs(st.Mean))
		stats.add("Median", secs(st.Median))
		stats.add("Std dev", secs(st.Std))
		stats.add("Min", secs(st.Min))
		stats.add("Max", secs(st.Max))
		stats.add("p5", secs(st.P5))
		stats.add("p95", secs(st.P95))
	}
	d.table(stats)
	d.blank()

	d.line("### Threshold Check")
	d.blank()
	checks := &table{header: []string{"Check", "Count", "% of Valid", "Severity", "Result"}, align: []string{"l", "r", "r", "l", "c"}}
	checks.add("Negative values", num(r.Negative), pctOf(r.Negative, st.Count), "❌ Corrupt", badge(r.Negative == 0))
	checks.add(fmt.Sprintf("< %.0f s (too fast)", th.MinMs/1000), num(r.TooFast), pctOf(r.TooFast, st.Count), "❌ Corrupt", badge(r.TooFast == 0))
	checks.add(fmt.Sprintf("%.0f–%.0f s (SC/VSC laps)", th.WarnMs/1000, th.CorruptMs/1000), num(r.Warning), pctOf(r.Warning, st.Count), "⚠️ Warning", "ℹ️ Expected")
	checks.add(fmt.Sprintf("> %.0f s (corrupt)", th.CorruptMs/1000), num(r.Corrupt), pctOf(r.Corrupt, st.Count), "❌ Corrupt", badge(r.Corrupt == 0))
	if r.Unparseable > 0 {
		checks.add("Non-numeric values", num(r.Unparseable), "", "❌ Corrupt", badge(false))
	}
	checks.add("**Hard-fail total**", "**"+num(r.HardFail)+"**", "**"+pctOf(r.HardFail, st.Count)+"**", "", "**"+badge(r.HardFail == 0)+"**")
	d.table(checks)

	if r.Warning > 0 {
		d.blank()
		d.line("> ℹ️ **SC/VSC laps are not data errors.** Safety Car and Virtual Safety Car periods" +
			" routinely produce lap times of 3–5 minutes. Exclude them from race-pace modeling" +
			" but keep them for full-race analysis.")
	}

	d.blank()
	d.line("### Statistical Outlier Detection (Z-Score)")
	d.blank()
	d.line("> Flags lap times where |z| > %g (more than %g standard deviations from the mean)."+
		" Outliers are informational; the check fails on hard-fail values only.", th.ZThreshold, th.ZThreshold)
	d.blank()
	z := &table{header: []string{"Metric", "Value"}, align: []string{"l", "r"}}
	z.add("Mean ± 1σ", fmt.Sprintf("%.1f s ± %.1f s", st.Mean/1000, st.Std/1000))
	z.add(fmt.Sprintf("Extreme outliers (\\|z\\| > %g)", th.ZThreshold), fmt.Sprintf("%s (%s)", num(r.ZOutliers), pctOf(r.ZOutliers, st.Count)))
	z.add("Expected slow laps", num(r.ExpectedSlow))
	z.add("Hard-fail outliers", num(r.HardFailOutliers))
	z.add("Unexplained outliers", num(r.UnexplainedOut))
	d.table(z)

	if len(r.TopOutliers) > 0 {
		d.blank()
		d.line("**Top outlier records (up to %d):**", len(r.TopOutliers))
		d.blank()
		top := &table{header: []string{"raceId", "driverId", "Lap", "lap_time_s", "z-score", "Likely cause"}, align: []string{"r", "r", "r", "r", "r", "l"}}
		for _, o := range r.TopOutliers {
			cause, ok := outlierCauses[o.Cause]
			if !ok {
				cause = o.Cause
			}
			top.add(o.RaceID, o.DriverID, o.Lap, fmt.Sprintf("%.1f", o.ValueMs/1000), fmt.Sprintf("%+.2f", o.Z), cause)
		}
		d.table(top)
	}
	return d.String()
}

func labelTable(title string, counts []quality.LabelCount, total int, withCause bool) *table {
	header := []string{"Status", "Count", title}
	align := []string{"l", "r", "r"}
	if withCause {
		header = []string{"Status", "Cause", "Count", title}
		align = []string{"l", "l", "r", "r"}
	}
	t := &table{header: header, align: align}
	for _, c := range counts {
		if withCause {
			t.add(escapeCell(c.Label), c.Cause, num(c.Count), pctOf(c.Count, total))
		} else {
			t.add(escapeCell(c.Label), num(c.Count), pctOf(c.Count, total))
		}
	}
	return t
}

func statusSection(r *quality.StatusReport) string {
	var d doc
	d.line("## 7. Status & DNF Validation")
	d.blank()
	if r.Note != "" && r.TotalRows == 0 {
		d.line("> ⚠️ %s", r.Note)
		return d.String()
	}

	d.line("**Status integration:** %s  ", badge(r.Passed))
	d.line("**Total result entries mapped:** %s  ", num(r.Mapped))
	d.line("**Unmapped statusId (orphan):** %s (%s)  →  %s", num(r.Unmapped), pctOf(r.Unmapped, r.TotalRows), badge(r.Unmapped == 0))
	if len(r.UnmappedSample) > 0 {
		d.blank()
		d.line("**Unmapped statusId values:** %s", codeList(r.UnmappedSample))
	}
	if r.Note != "" {
		d.blank()
		d.line("> ⚠️ %s", r.Note)
	}
	d.blank()

	d.line("### Race Outcome Summary")
	d.blank()
	outcome := &table{header: []string{"Category", "Count", "% of Results"}, align: []string{"l", "r", "r"}}
	outcome.add("✅ Finished (incl. lapped)", num(r.Finished), pctOf(r.Finished, r.Mapped))
	outcome.add("❌ DNF / Retirement", num(r.DNF), pctOf(r.DNF, r.Mapped))
	outcome.add("❓ Other / Unclassified", num(r.Unclassified), pctOf(r.Unclassified, r.Mapped))
	outcome.add("**Total**", "**"+num(r.Mapped)+"**", "**100%**")
	d.table(outcome)

	if r.Unclassified > 0 {
		d.blank()
		d.line("### ❓ Unclassified Status Breakdown")
		d.blank()
		d.line("> These %s records (%s) matched neither the Finished nor the DNF classifier. Review and reclassify as needed.",
			num(r.Unclassified), pctOf(r.Unclassified, r.Mapped))
		d.blank()
		d.table(labelTable("% of Other", r.UnclassifiedLabels, r.Unclassified, false))
	}

	if r.DNF > 0 {
		d.blank()
		d.line("### DNF Causes by Group")
		d.blank()
		t := &table{header: []string{"Cause", "Count", "% of All DNFs"}, align: []string{"l", "r", "r"}}
		for _, c := range r.DNFByCause {
			t.add(c.Label, num(c.Count), pctOf(c.Count, r.DNF))
		}
		d.table(t)
	}

	if len(r.TopDNFCauses) > 0 {
		d.blank()
		d.line("### Top %d DNF Causes", len(r.TopDNFCauses))
		d.blank()
		d.table(labelTable("% of All DNFs", r.TopDNFCauses, r.DNF, true))
	}

	if len(r.FinishedLabels) > 0 {
		d.blank()
		d.line("### Finished Status Breakdown")
		d.blank()
		d.table(labelTable("% of Finished", r.FinishedLabels, r.Finished, false))
	}

	if cc := r.CrossCheck; cc != nil {
		d.blank()
		d.line("### DNF Flag Cross-Check")
		d.blank()
		t := &table{header: []string{"Metric", "Count"}, align: []string{"l", "r"}}
		t.add("Classifier DNF", num(cc.ClassifierDNF))
		t.add("`is_dnf` = 1", num(cc.FlagDNF))
		t.add("Delta (classifier − flag)", num(cc.Delta))
		t.add("Flagged, not classified DNF", num(cc.FlaggedNotClassified))
		t.add("Classified DNF, not flagged", num(cc.ClassifiedNotFlagged))
		t.add("Unknown flag value", num(cc.UnknownFlag))
		d.table(t)
	}

	if p := r.Position; p != nil {
		d.blank()
		d.line("### Position Consistency")
		d.blank()
		t := &table{header: []string{"Case", "Count"}, align: []string{"l", "r"}}
		t.add("null position + DNF (correct)", num(p.NullPositionDNF))
		t.add("null position + NOT DNF", num(p.NullPositionNotDNF))
		t.add("  ↳ explained (documented label)", num(p.Explained))
		t.add("  ↳ unexplained", num(p.Unexplained))
		t.add("has position + DNF (investigate)", num(p.PositionDNF))
		t.add("has position + finished (correct)", num(p.PositionNotDNF))
		d.table(t)
		if len(p.UnexplainedLabels) > 0 {
			d.blank()
			d.line("**Labels behind unexplained null positions:**")
			d.blank()
			d.table(labelTable("% of Unexplained", p.UnexplainedLabels, p.Unexplained, false))
		}
	}
	return d.String()
}
