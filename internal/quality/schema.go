package quality

import (
	"cmp"
	"slices"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// SchemaTable is the drift result of one manifest table
type SchemaTable struct {
	Table      string   `json:"table"`
	Loaded     bool     `json:"loaded"`
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected"`
	Passed     bool     `json:"passed"`
	Note       string   `json:"note,omitempty"`
}

// SchemaReport is the outcome of the schema-drift check
type SchemaReport struct {
	Tables []SchemaTable `json:"tables"`
	Passed bool          `json:"passed"`
}

// DiffColumns returns expected-minus-observed and observed-minus-expected, both sorted
func DiffColumns(expected, observed []string) (missing, unexpected []string) {
	obs := make(map[string]bool, len(observed))
	for _, c := range observed {
		obs[c] = true
	}
	exp := make(map[string]bool, len(expected))
	for _, c := range expected {
		exp[c] = true
		if !obs[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range observed {
		if !exp[c] {
			unexpected = append(unexpected, c)
		}
	}
	slices.Sort(missing)
	slices.Sort(unexpected)
	return slices.Compact(missing), slices.Compact(unexpected)
}

// CheckSchema compares observed columns against the manifest.
// Unexpected columns are informational; only missing columns fail a table.
func CheckSchema(ds *contracts.Dataset, manifest []rules.TableSchema) *SchemaReport {
	report := &SchemaReport{Passed: true}

	sorted := slices.Clone(manifest)
	slices.SortFunc(sorted, func(a, b rules.TableSchema) int { return cmp.Compare(a.Table, b.Table) })

	for _, s := range sorted {
		rel, ok := ds.Get(s.Table)
		if !ok {
			report.Tables = append(report.Tables, SchemaTable{
				Table: s.Table,
				Note:  "table not loaded",
			})
			report.Passed = false
			continue
		}

		missing, unexpected := DiffColumns(s.Columns, rel.Columns)
		t := SchemaTable{
			Table:      s.Table,
			Loaded:     true,
			Missing:    missing,
			Unexpected: unexpected,
			Passed:     len(missing) == 0,
		}
		if !t.Passed {
			report.Passed = false
		}
		report.Tables = append(report.Tables, t)
	}

	return report
}
