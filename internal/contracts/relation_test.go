package contracts

import (
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{"7.0", "7"},
		{" 7 ", "7"},
		{"007", "7"},
		{"7.5", "7.5"},
		{"hamilton", "hamilton"},
		{"", ""},
		{"-3.0", "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeKey(tt.in); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValue_Int(t *testing.T) {
	tests := []struct {
		name   string
		v      Value
		want   int64
		wantOK bool
	}{
		{"integer", V("427"), 427, true},
		{"float form", V("427.0"), 427, true},
		{"fraction", V("1.5"), 0, false},
		{"text", V("R"), 0, false},
		{"null", NullValue(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.v.Int()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Int() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRelation_AppendAndColumn(t *testing.T) {
	r := NewRelation("status", []string{"statusId", "status"})

	if err := r.Append([]Value{V("1"), V("Finished")}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := r.Append([]Value{V("2"), NullValue()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := r.Append([]Value{V("3")}); err == nil {
		t.Error("Expected width mismatch error")
	}

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.NullCells() != 1 {
		t.Errorf("NullCells() = %d, want 1", r.NullCells())
	}

	col, err := r.Column("status")
	if err != nil {
		t.Fatalf("Column() error = %v", err)
	}
	if col[0].Raw != "Finished" || !col[1].Null {
		t.Errorf("Column() = %+v", col)
	}

	if _, err := r.Column("missing"); err == nil {
		t.Error("Expected unknown column error")
	}
}

func TestRelation_ColumnType(t *testing.T) {
	r := NewRelation("t", []string{"i", "f", "b", "s", "e"})
	_ = r.Append([]Value{V("1"), V("1.5"), V("true"), V("x"), NullValue()})
	_ = r.Append([]Value{V("2"), V("2"), V("false"), V("3"), NullValue()})

	tests := map[string]string{
		"i": "int",
		"f": "float",
		"b": "bool",
		"s": "string",
		"e": "empty",
	}
	for col, want := range tests {
		if got := r.ColumnType(col); got != want {
			t.Errorf("ColumnType(%s) = %s, want %s", col, got, want)
		}
	}
}

func TestDataset_NamesAndFingerprint(t *testing.T) {
	build := func(order []string) *Dataset {
		d := NewDataset()
		for _, name := range order {
			r := NewRelation(name, []string{"id"})
			_ = r.Append([]Value{V("1")})
			d.Add(r)
		}
		return d
	}

	a := build([]string{"status", "results", "extra"})
	b := build([]string{"extra", "results", "status"})

	names := a.Names()
	want := []string{"results", "status", "extra"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Fingerprint should not depend on load order")
	}

	r, _ := b.Get("status")
	r.Rows[0][0] = NullValue()
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("Fingerprint should change when a cell changes")
	}
}
