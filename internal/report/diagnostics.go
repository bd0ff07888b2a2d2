package report

import (
	"github.com/wonny/f1dq/internal/diagnostics"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/internal/store"
)

// DiagnosticsFileName is the root-cause report written by diagnose
const DiagnosticsFileName = "diagnostics_report.md"

// AnalysisFileName is the window-function report written by analyze
const AnalysisFileName = "analysis_report.md"

// rowsTable renders query rows; an empty result becomes a one-line note
func rowsTable(d *doc, rows *store.Rows) {
	if rows == nil || len(rows.Values) == 0 {
		d.line("_No rows returned._")
		return
	}
	t := &table{header: rows.Columns}
	for _, r := range rows.Values {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = cell(v)
		}
		t.add(cells...)
	}
	d.table(t)
}

// Diagnostics renders a catalogue run grouped by block. Failed queries are
// reported inline and counted in the summary.
func Diagnostics(rep *diagnostics.Report, cfg *rules.Config, opts Options) string {
	var d doc
	d.line("# Data Quality — Diagnostics Report")
	d.blank()
	if !opts.Generated.IsZero() {
		d.line("> **Generated:** %s  ", opts.Generated.Format("2006-01-02 15:04:05"))
	}
	d.line("> **Database:** `%s`  ", rep.Database)
	d.line("> **Purpose:** Classify each scorecard failure as DATA issue or RULE issue")
	d.blank()
	d.line("---")
	d.blank()
	d.line("## How to read this report")
	d.blank()
	d.line("Each query block has an **Interpretation guide** explaining what the numbers mean.")
	d.line("After reviewing, classify each finding as:")
	d.blank()
	d.line("- 🔴 **Data issue** — fix the source CSV or the cleaning pipeline")
	d.line("- 🟡 **Rule issue** — fix the rule manifest (keywords, overrides, thresholds)")
	d.line("- 🟢 **Expected / justified** — no action needed, document and move on")
	d.blank()
	d.line("---")
	d.blank()

	current := ""
	for _, res := range rep.Results {
		q := res.Query
		if q.Block != current {
			current = q.Block
			d.line("## %s", diagnostics.BlockLabel(cfg, current))
			d.blank()
		}

		d.line("### %s. %s", q.ID, q.Title)
		d.blank()
		d.line("**Question:** %s", q.Question)
		d.blank()
		d.line("**Interpretation guide:**  ")
		d.raw(q.Interpretation)
		d.blank()

		if res.Err != nil {
			d.line("> ⚠️ **Query failed:** `%s`  ", escapeCell(res.Err.Error()))
			d.line("> Check that the database schema matches expectations.")
		} else {
			note := ""
			if res.Truncated {
				note = " _(showing first " + num(q.Limit) + " rows)_"
			}
			d.line("**Results:** %s rows%s", num(len(res.Rows.Values)), note)
			d.blank()
			rowsTable(&d, res.Rows)
		}
		d.blank()
		d.line("---")
		d.blank()
	}

	d.line("## Summary")
	d.blank()
	d.line("- Queries run: **%d**", len(rep.Results))
	d.line("- Queries failed: **%d**", rep.Failed())
	if !opts.Generated.IsZero() {
		d.line("- Generated: %s", opts.Generated.Format("2006-01-02 15:04:05"))
	}
	d.blank()
	d.line("_Run `f1dq validate` after any fixes to regenerate the main quality report._")
	return d.String()
}

// Analysis renders the window-function query results
func Analysis(results []store.QueryResult, database string, opts Options) string {
	var d doc
	d.line("# Race Analysis Report")
	d.blank()
	if !opts.Generated.IsZero() {
		d.line("> **Generated:** %s  ", opts.Generated.Format("2006-01-02 15:04:05"))
	}
	d.line("> **Database:** `%s`  ", database)
	d.line("> **Queries:** %d", len(results))
	d.blank()
	d.line(rule)
	d.blank()

	failed := 0
	for i, res := range results {
		title := res.Query.Title
		if title == "" {
			title = res.Query.Name
		}
		d.line("## %d. %s", i+1, title)
		d.blank()
		d.line("`%s`", res.Query.Name)
		d.blank()
		if res.Err != nil {
			failed++
			d.line("> ⚠️ **Query failed:** `%s`", escapeCell(res.Err.Error()))
		} else {
			rowsTable(&d, res.Rows)
		}
		d.blank()
	}

	d.line(rule)
	d.blank()
	d.line("_Generated by `%s`. %d of %d queries failed._", opts.command("f1dq analyze"), failed, len(results))
	return d.String()
}
