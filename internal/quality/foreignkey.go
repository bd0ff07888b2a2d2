package quality

import (
	"errors"
	"fmt"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// ErrInvalidRelationship is returned when a foreign-key declaration names an unknown table or column
var ErrInvalidRelationship = errors.New("invalid relationship declaration")

// maxOrphanSample bounds the distinct orphan values kept per relationship
const maxOrphanSample = 20

// ForeignKeyResult is the outcome of one relationship
type ForeignKeyResult struct {
	Relationship rules.ForeignKey `json:"relationship"`
	RowsChecked  int              `json:"rows_checked"`
	OrphanRows   int              `json:"orphan_rows"`
	OrphanPct    float64          `json:"orphan_pct"`
	OrphanSample []string         `json:"orphan_sample,omitempty"`
	Passed       bool             `json:"passed"`
}

// ForeignKeyReport is the outcome of the foreign-key check
type ForeignKeyReport struct {
	Results []ForeignKeyResult `json:"results"`
	Passed  bool               `json:"passed"`
}

// DescribeForeignKey renders a relationship as child.column -> parent.column
func DescribeForeignKey(fk rules.ForeignKey) string {
	return fmt.Sprintf("%s.%s → %s.%s", fk.ChildTable, fk.ChildColumn, fk.ParentTable, fk.ParentColumn)
}

// ValidateRelationships checks every declaration against the loaded relations
func ValidateRelationships(ds *contracts.Dataset, fks []rules.ForeignKey) error {
	for i, fk := range fks {
		for _, end := range [][2]string{{fk.ChildTable, fk.ChildColumn}, {fk.ParentTable, fk.ParentColumn}} {
			rel, ok := ds.Get(end[0])
			if !ok {
				return fmt.Errorf("%w: foreign_keys[%d] %s: table %q not loaded", ErrInvalidRelationship, i, DescribeForeignKey(fk), end[0])
			}
			if !rel.HasColumn(end[1]) {
				return fmt.Errorf("%w: foreign_keys[%d] %s: table %q has no column %q", ErrInvalidRelationship, i, DescribeForeignKey(fk), end[0], end[1])
			}
		}
	}
	return nil
}

// CheckForeignKeys validates the declarations, then counts orphans per relationship.
// Only non-null child values are checked.
func CheckForeignKeys(ds *contracts.Dataset, fks []rules.ForeignKey) (*ForeignKeyReport, error) {
	if err := ValidateRelationships(ds, fks); err != nil {
		return nil, err
	}

	report := &ForeignKeyReport{Passed: true}
	parentKeys := make(map[string]map[string]bool)

	for _, fk := range fks {
		pk := fk.ParentTable + "." + fk.ParentColumn
		keys, ok := parentKeys[pk]
		if !ok {
			parent, _ := ds.Get(fk.ParentTable)
			values, _ := parent.Column(fk.ParentColumn)
			keys = make(map[string]bool, len(values))
			for _, v := range values {
				if !v.Null {
					keys[v.Key()] = true
				}
			}
			parentKeys[pk] = keys
		}

		child, _ := ds.Get(fk.ChildTable)
		values, _ := child.Column(fk.ChildColumn)

		res := ForeignKeyResult{Relationship: fk}
		orphans := make(map[string]bool)
		for _, v := range values {
			if v.Null {
				continue
			}
			res.RowsChecked++
			if k := v.Key(); !keys[k] {
				res.OrphanRows++
				orphans[k] = true
			}
		}
		res.OrphanPct = pct(res.OrphanRows, res.RowsChecked)
		res.Passed = res.OrphanRows == 0

		if len(orphans) > 0 {
			sample := make([]string, 0, len(orphans))
			for k := range orphans {
				sample = append(sample, k)
			}
			sortKeys(sample)
			if len(sample) > maxOrphanSample {
				sample = sample[:maxOrphanSample]
			}
			res.OrphanSample = sample
			report.Passed = false
		}

		report.Results = append(report.Results, res)
	}

	return report, nil
}
