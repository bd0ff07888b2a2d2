package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/f1dq/internal/quality"
)

// DefaultWorkbookName is the xlsx companion of the markdown report
const DefaultWorkbookName = "data_quality_report.xlsx"

// sheet is one worksheet: a header row plus data rows
type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

func (s *sheet) add(cells ...interface{}) {
	s.rows = append(s.rows, cells)
}

// WriteWorkbook writes the per-check findings to an xlsx file, one sheet per check
func WriteWorkbook(path string, res *quality.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := workbookSheets(res)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}

		header := make([]interface{}, len(s.header))
		for j, h := range s.header {
			header[j] = h
		}
		if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
			return fmt.Errorf("%s header: %w", s.name, err)
		}
		if err := f.SetRowStyle(s.name, 1, 1, bold); err != nil {
			return fmt.Errorf("%s header style: %w", s.name, err)
		}
		for r, row := range s.rows {
			addr, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, addr, &row); err != nil {
				return fmt.Errorf("%s row %d: %w", s.name, r+2, err)
			}
		}
		last, err := excelize.ColumnNumberToName(len(s.header))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, "A", last, 18); err != nil {
			return fmt.Errorf("%s column width: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func passFail(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func workbookSheets(res *quality.Result) []*sheet {
	scorecard := &sheet{name: "Scorecard", header: []string{"#", "Check", "Result", "Detail"}}
	for i, c := range res.Scorecard {
		scorecard.add(i+1, c.Name, passFail(c.Passed), c.Detail)
	}
	scorecard.add("", "Overall", passFail(res.Passed), fmt.Sprintf("fingerprint %s, rules %s", res.Fingerprint, res.RulesHash))

	inventory := &sheet{name: "Inventory", header: []string{"Table", "Rows", "Columns", "Null cells", "Null %"}}
	for _, row := range res.Inventory {
		inventory.add(row.Table, row.Rows, row.Columns, row.NullCells, row.NullPct)
	}

	nulls := &sheet{name: "Nulls", header: []string{"Table", "Column", "Type", "Nulls", "Rows", "Null %", "Severity", "Failing", "Note"}}
	if res.Nulls != nil {
		for _, t := range res.Nulls.Tables {
			for _, e := range t.Entries {
				nulls.add(t.Table, e.Column, e.Type, e.NullCount, e.TotalRows, e.NullPct, string(e.Severity), e.Failing, e.Note)
			}
		}
	}

	schema := &sheet{name: "Schema", header: []string{"Table", "Loaded", "Missing", "Unexpected", "Result", "Note"}}
	if res.Schema != nil {
		for _, t := range res.Schema.Tables {
			schema.add(t.Table, t.Loaded, strings.Join(t.Missing, ", "), strings.Join(t.Unexpected, ", "), passFail(t.Passed), t.Note)
		}
	}

	fks := &sheet{name: "ForeignKeys", header: []string{"Child", "Parent", "Rows checked", "Orphans", "Orphan %", "Result", "Orphan sample"}}
	if res.ForeignKeys != nil {
		for _, r := range res.ForeignKeys.Results {
			rel := r.Relationship
			fks.add(rel.ChildTable+"."+rel.ChildColumn, rel.ParentTable+"."+rel.ParentColumn,
				r.RowsChecked, r.OrphanRows, r.OrphanPct, passFail(r.Passed), strings.Join(r.OrphanSample, ", "))
		}
	}

	dups := &sheet{name: "Duplicates", header: []string{"Race", "Year", "Pairs", "Categories"}}
	if d := res.Duplicates; d != nil {
		if d.Note != "" {
			dups.add(d.Note)
		}
		for _, r := range d.TopRaces {
			dups.add(r.RaceID, r.Year, r.Pairs, strings.Join(r.Categories, ", "))
		}
	}

	laps := &sheet{name: "LapTimes", header: []string{"Race", "Driver", "Lap", "Seconds", "Z", "Cause"}}
	if l := res.LapTimes; l != nil {
		if l.Note != "" {
			laps.add(l.Note)
		}
		for _, o := range l.TopOutliers {
			laps.add(o.RaceID, o.DriverID, o.Lap, o.ValueMs/1000, o.Z, o.Cause)
		}
	}

	status := &sheet{name: "Status", header: []string{"Group", "Label", "Count", "Cause"}}
	if s := res.Status; s != nil {
		if s.Note != "" {
			status.add("note", s.Note)
		}
		for _, lc := range s.DNFByCause {
			status.add("DNF by cause", lc.Label, lc.Count, "")
		}
		for _, lc := range s.TopDNFCauses {
			status.add("DNF label", lc.Label, lc.Count, lc.Cause)
		}
		for _, lc := range s.UnclassifiedLabels {
			status.add("Unclassified", lc.Label, lc.Count, "")
		}
		for _, lc := range s.FinishedLabels {
			status.add("Finished", lc.Label, lc.Count, "")
		}
	}

	return []*sheet{scorecard, inventory, nulls, schema, fks, dups, laps, status}
}
