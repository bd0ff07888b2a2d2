package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Table names of the motorsport dataset
const (
	TableCircuits     = "circuits"
	TableDrivers      = "drivers"
	TableConstructors = "constructors"
	TableRaces        = "races"
	TableResults      = "results"
	TableQualifying   = "qualifying"
	TablePitStops     = "pit_stops"
	TableLapTimes     = "lap_times"
	TableStatus       = "status"
)

// AllTables lists the dataset tables in canonical report order
var AllTables = []string{
	TableCircuits,
	TableDrivers,
	TableConstructors,
	TableRaces,
	TableResults,
	TableQualifying,
	TablePitStops,
	TableLapTimes,
	TableStatus,
}

// Value is one cell. A null cell carries Null=true and an empty Raw.
type Value struct {
	Raw  string
	Null bool
}

// NullValue returns a null cell
func NullValue() Value {
	return Value{Null: true}
}

// V returns a non-null cell
func V(raw string) Value {
	return Value{Raw: raw}
}

// Int parses the cell as an integer; "7.0" is accepted as 7
func (v Value) Int() (int64, bool) {
	if v.Null {
		return 0, false
	}
	s := strings.TrimSpace(v.Raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Float parses the cell as a float
func (v Value) Float() (float64, bool) {
	if v.Null {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Key returns the normalized join key of the cell
func (v Value) Key() string {
	if v.Null {
		return ""
	}
	return NormalizeKey(v.Raw)
}

// NormalizeKey makes numeric keys comparable across textual forms: "7", "7.0" and " 7 " are equal.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// Relation is an immutable table snapshot: ordered column names and rows of cells
type Relation struct {
	Name    string
	Columns []string
	Rows    [][]Value

	index map[string]int
}

// NewRelation creates an empty relation with the given header
func NewRelation(name string, columns []string) *Relation {
	r := &Relation{
		Name:    name,
		Columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := r.index[c]; !dup {
			r.index[c] = i
		}
	}
	return r
}

// Append adds a row; its width must match the header
func (r *Relation) Append(row []Value) error {
	if len(row) != len(r.Columns) {
		return fmt.Errorf("%s: row has %d cells, header has %d", r.Name, len(row), len(r.Columns))
	}
	r.Rows = append(r.Rows, row)
	return nil
}

// Len returns the row count
func (r *Relation) Len() int {
	return len(r.Rows)
}

// ColumnIndex returns the position of col
func (r *Relation) ColumnIndex(col string) (int, bool) {
	i, ok := r.index[col]
	return i, ok
}

// HasColumn reports whether col is in the header
func (r *Relation) HasColumn(col string) bool {
	_, ok := r.index[col]
	return ok
}

// Column returns every cell of col in row order
func (r *Relation) Column(col string) ([]Value, error) {
	i, ok := r.index[col]
	if !ok {
		return nil, fmt.Errorf("%s: unknown column %q", r.Name, col)
	}
	out := make([]Value, len(r.Rows))
	for j, row := range r.Rows {
		out[j] = row[i]
	}
	return out, nil
}

// NullCells counts null cells across the relation
func (r *Relation) NullCells() int {
	n := 0
	for _, row := range r.Rows {
		for _, v := range row {
			if v.Null {
				n++
			}
		}
	}
	return n
}

// ColumnType infers a display type for col: int, float, bool, string or empty
func (r *Relation) ColumnType(col string) string {
	i, ok := r.index[col]
	if !ok {
		return ""
	}
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, row := range r.Rows {
		v := row[i]
		if v.Null {
			continue
		}
		seen = true
		s := strings.TrimSpace(v.Raw)
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			isFloat = false
		}
		if s != "0" && s != "1" && !strings.EqualFold(s, "true") && !strings.EqualFold(s, "false") {
			isBool = false
		}
		if !isInt && !isFloat && !isBool {
			return "string"
		}
	}
	switch {
	case !seen:
		return "empty"
	case isInt:
		return "int"
	case isFloat:
		return "float"
	case isBool:
		return "bool"
	default:
		return "string"
	}
}

// Dataset is the set of relations loaded for one run
type Dataset struct {
	tables map[string]*Relation
}

// NewDataset creates an empty dataset
func NewDataset() *Dataset {
	return &Dataset{tables: make(map[string]*Relation)}
}

// Add registers a relation, replacing any relation with the same name
func (d *Dataset) Add(r *Relation) {
	d.tables[r.Name] = r
}

// Get returns the relation named name
func (d *Dataset) Get(name string) (*Relation, bool) {
	r, ok := d.tables[name]
	return r, ok
}

// Names returns loaded table names: canonical tables first, then any others alphabetically
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.tables))
	known := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		known[t] = true
		if _, ok := d.tables[t]; ok {
			names = append(names, t)
		}
	}
	var extra []string
	for name := range d.tables {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Fingerprint hashes table names, headers and cells in a fixed order.
// Identical inputs always produce the same fingerprint regardless of load order.
func (d *Dataset) Fingerprint() string {
	h := sha256.New()
	for _, name := range d.Names() {
		r := d.tables[name]
		fmt.Fprintf(h, "T\x1f%s\x1e", name)
		fmt.Fprintf(h, "H\x1f%s\x1e", strings.Join(r.Columns, "\x1f"))
		for _, row := range r.Rows {
			for _, v := range row {
				if v.Null {
					h.Write([]byte{0})
				} else {
					h.Write([]byte(v.Raw))
				}
				h.Write([]byte{0x1f})
			}
			h.Write([]byte{0x1e})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
