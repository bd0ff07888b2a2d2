package rules

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError reports an invalid manifest field (fatal)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Nulls ===
	n := cfg.Nulls
	if n.MinorMaxPct <= 0 {
		return ValidationError{"nulls.minor_max_pct", "must be > 0"}
	}
	if n.ModerateMaxPct <= n.MinorMaxPct || n.ModerateMaxPct > 100 {
		return ValidationError{"nulls.moderate_max_pct", "must be in (minor_max_pct, 100]"}
	}
	for key := range n.Justified {
		if _, dup := n.Investigate[key]; dup {
			return ValidationError{"nulls", fmt.Sprintf("%q is both justified and investigate", key)}
		}
	}

	// === Schema ===
	seen := make(map[string]bool, len(cfg.Schema))
	for i, s := range cfg.Schema {
		field := fmt.Sprintf("schema[%d]", i)
		if s.Table == "" {
			return ValidationError{field + ".table", "required"}
		}
		if seen[s.Table] {
			return ValidationError{field + ".table", fmt.Sprintf("duplicate table %q", s.Table)}
		}
		seen[s.Table] = true
		if len(s.Columns) == 0 {
			return ValidationError{field + ".columns", "must not be empty"}
		}
	}

	// === Foreign keys ===
	for i, fk := range cfg.ForeignKeys {
		if fk.ChildTable == "" || fk.ChildColumn == "" || fk.ParentTable == "" || fk.ParentColumn == "" {
			return ValidationError{fmt.Sprintf("foreign_keys[%d]", i), "child_table, child_column, parent_table and parent_column are required"}
		}
	}

	// === Duplicates ===
	d := cfg.Duplicates
	if d.Table == "" {
		return ValidationError{"duplicates.table", "required"}
	}
	if len(d.Key) == 0 {
		return ValidationError{"duplicates.key", "must not be empty"}
	}
	for i, rule := range d.Rules {
		if !slices.Contains(KnownDuplicateRules, rule) {
			return ValidationError{
				Field:   fmt.Sprintf("duplicates.rules[%d]", i),
				Message: fmt.Sprintf("unknown rule %q (known: %s)", rule, strings.Join(KnownDuplicateRules, ", ")),
			}
		}
	}
	if d.MinLapSpreadRatio < 0 || d.MinLapSpreadRatio > 1 {
		return ValidationError{"duplicates.min_lap_spread_ratio", "must be in range [0, 1]"}
	}
	if d.SampleSize < 0 || d.TopRaces < 0 {
		return ValidationError{"duplicates", "sample_size and top_races must be >= 0"}
	}

	// === Lap times ===
	l := cfg.LapTimes
	if l.Table == "" || l.Column == "" {
		return ValidationError{"lap_times", "table and column are required"}
	}
	if l.MinMs < 0 {
		return ValidationError{"lap_times.min_ms", "must be >= 0"}
	}
	if !(l.MinMs < l.WarnMs && l.WarnMs < l.CorruptMs) {
		return ValidationError{"lap_times", "must satisfy min_ms < warn_ms < corrupt_ms"}
	}
	if l.ZThreshold <= 0 {
		return ValidationError{"lap_times.z_threshold", "must be > 0"}
	}

	// === Status ===
	s := cfg.Status
	if len(s.FinishedPatterns) == 0 {
		return ValidationError{"status.finished_patterns", "must not be empty"}
	}
	if len(s.DNFKeywords.Mechanical)+len(s.DNFKeywords.Crash)+len(s.DNFKeywords.Other) == 0 {
		return ValidationError{"status.dnf_keywords", "must not be empty"}
	}
	for label, category := range s.Overrides {
		switch category {
		case CategoryFinished, CategoryDNF, CategoryUnclassified:
		default:
			return ValidationError{
				Field:   fmt.Sprintf("status.overrides[%s]", label),
				Message: fmt.Sprintf("category must be %s, %s or %s, got %q", CategoryFinished, CategoryDNF, CategoryUnclassified, category),
			}
		}
	}

	return nil
}
