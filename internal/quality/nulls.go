package quality

import (
	"cmp"
	"slices"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// Severity labels a column's null rate
type Severity string

const (
	SeverityClean       Severity = "Clean"
	SeverityMinor       Severity = "Minor"
	SeverityModerate    Severity = "Moderate"
	SeverityHigh        Severity = "High"
	SeverityJustified   Severity = "Justified"
	SeverityInvestigate Severity = "Investigate"
)

// NullColumn is the null analysis of one column
type NullColumn struct {
	Column    string   `json:"column"`
	Type      string   `json:"type"`
	NullCount int      `json:"null_count"`
	TotalRows int      `json:"total_rows"`
	NullPct   float64  `json:"null_pct"`
	Severity  Severity `json:"severity"`
	Note      string   `json:"note,omitempty"`
	Failing   bool     `json:"failing"`
}

// NullTable is the null analysis of one table
type NullTable struct {
	Table            string       `json:"table"`
	Rows             int          `json:"rows"`
	Columns          int          `json:"columns"`
	ColumnsWithNulls int          `json:"columns_with_nulls"`
	Entries          []NullColumn `json:"entries"`
}

// NullReport is the outcome of the null check
type NullReport struct {
	Tables  []NullTable `json:"tables"`
	Failing []string    `json:"failing"` // table.column
	Passed  bool        `json:"passed"`
}

// ClassifySeverity is a pure function of the null rate and the column's justification state.
// A justification wins over the investigate list; investigate applies only when nulls exist.
func ClassifySeverity(nullPct float64, justified, investigate bool, cfg rules.Nulls) Severity {
	switch {
	case justified:
		return SeverityJustified
	case investigate && nullPct > 0:
		return SeverityInvestigate
	case nullPct == 0:
		return SeverityClean
	case nullPct < cfg.MinorMaxPct:
		return SeverityMinor
	case nullPct < cfg.ModerateMaxPct:
		return SeverityModerate
	default:
		return SeverityHigh
	}
}

// IsFailing reports whether a classified column fails the check.
// An investigate flag never excuses a high null rate.
func IsFailing(sev Severity, nullPct float64, cfg rules.Nulls) bool {
	switch sev {
	case SeverityHigh:
		return true
	case SeverityInvestigate:
		return nullPct >= cfg.ModerateMaxPct
	default:
		return false
	}
}

// lookupNote finds a table-qualified key first, then the bare column key
func lookupNote(m map[string]string, table, column string) (string, bool) {
	if note, ok := m[table+"."+column]; ok {
		return note, true
	}
	note, ok := m[column]
	return note, ok
}

// CheckNulls classifies every column of every loaded table
func CheckNulls(ds *contracts.Dataset, cfg rules.Nulls) *NullReport {
	report := &NullReport{Passed: true}

	for _, name := range ds.Names() {
		rel, _ := ds.Get(name)
		nulls := make([]int, len(rel.Columns))
		for _, row := range rel.Rows {
			for i, v := range row {
				if v.Null {
					nulls[i]++
				}
			}
		}

		table := NullTable{
			Table:   name,
			Rows:    rel.Len(),
			Columns: len(rel.Columns),
		}

		for i, col := range rel.Columns {
			p := pct(nulls[i], rel.Len())
			justNote, justified := lookupNote(cfg.Justified, name, col)
			invNote, investigate := lookupNote(cfg.Investigate, name, col)
			sev := ClassifySeverity(p, justified, investigate, cfg)

			entry := NullColumn{
				Column:    col,
				Type:      rel.ColumnType(col),
				NullCount: nulls[i],
				TotalRows: rel.Len(),
				NullPct:   p,
				Severity:  sev,
				Failing:   IsFailing(sev, p, cfg),
			}
			switch sev {
			case SeverityJustified:
				entry.Note = justNote
			case SeverityInvestigate:
				entry.Note = invNote
			case SeverityHigh:
				entry.Note = "Unjustified, requires fix"
			}

			if nulls[i] > 0 {
				table.ColumnsWithNulls++
			}
			if entry.Failing {
				report.Failing = append(report.Failing, name+"."+col)
				report.Passed = false
			}
			table.Entries = append(table.Entries, entry)
		}

		slices.SortStableFunc(table.Entries, func(a, b NullColumn) int {
			if c := cmp.Compare(b.NullPct, a.NullPct); c != 0 {
				return c
			}
			return cmp.Compare(a.Column, b.Column)
		})
		report.Tables = append(report.Tables, table)
	}

	return report
}
