package rules

// Config is the full rule manifest consumed by the quality checks
type Config struct {
	Meta        Meta             `yaml:"meta" json:"meta"`
	Nulls       Nulls            `yaml:"nulls" json:"nulls"`
	Schema      []TableSchema    `yaml:"schema" json:"schema"`
	ForeignKeys []ForeignKey     `yaml:"foreign_keys" json:"foreign_keys"`
	Duplicates  Duplicates       `yaml:"duplicates" json:"duplicates"`
	LapTimes    LapTimes         `yaml:"lap_times" json:"lap_times"`
	Status      StatusClassifier `yaml:"status" json:"status"`
}

// Meta identifies the manifest
type Meta struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Nulls configures the null/severity classifier.
// Justified and Investigate keys are either "table.column" or a bare "column".
type Nulls struct {
	MinorMaxPct    float64           `yaml:"minor_max_pct" json:"minor_max_pct"`       // 5
	ModerateMaxPct float64           `yaml:"moderate_max_pct" json:"moderate_max_pct"` // 20
	Justified      map[string]string `yaml:"justified" json:"justified"`
	Investigate    map[string]string `yaml:"investigate" json:"investigate"`
}

// TableSchema is the expected column manifest of one table
type TableSchema struct {
	Table   string   `yaml:"table" json:"table"`
	Columns []string `yaml:"columns" json:"columns"`
}

// ForeignKey declares child.column -> parent.column
type ForeignKey struct {
	ChildTable   string `yaml:"child_table" json:"child_table"`
	ChildColumn  string `yaml:"child_column" json:"child_column"`
	ParentTable  string `yaml:"parent_table" json:"parent_table"`
	ParentColumn string `yaml:"parent_column" json:"parent_column"`
}

// Duplicates configures the duplicate-key detector and its rule chain
type Duplicates struct {
	Table                 string   `yaml:"table" json:"table"`
	Key                   []string `yaml:"key" json:"key"`
	Rules                 []string `yaml:"rules" json:"rules"` // evaluated in order, first match wins
	SharedDriveCutoffYear int      `yaml:"shared_drive_cutoff_year" json:"shared_drive_cutoff_year"`
	MinLapSpreadRatio     float64  `yaml:"min_lap_spread_ratio" json:"min_lap_spread_ratio"`
	SprintStartYear       int      `yaml:"sprint_start_year" json:"sprint_start_year"`
	SampleSize            int      `yaml:"sample_size" json:"sample_size"`
	TopRaces              int      `yaml:"top_races" json:"top_races"`
}

// LapTimes configures the lap-time validator (milliseconds)
type LapTimes struct {
	Table           string   `yaml:"table" json:"table"`
	Column          string   `yaml:"column" json:"column"`
	FallbackColumns []string `yaml:"fallback_columns" json:"fallback_columns"`
	MinMs           float64  `yaml:"min_ms" json:"min_ms"`
	WarnMs          float64  `yaml:"warn_ms" json:"warn_ms"`
	CorruptMs       float64  `yaml:"corrupt_ms" json:"corrupt_ms"`
	ZThreshold      float64  `yaml:"z_threshold" json:"z_threshold"`
	TopOutliers     int      `yaml:"top_outliers" json:"top_outliers"`
}

// StatusClassifier configures status label classification.
// Keywords match at the start of a word, case-insensitively.
type StatusClassifier struct {
	FinishedPatterns   []string          `yaml:"finished_patterns" json:"finished_patterns"`
	DNFKeywords        DNFKeywords       `yaml:"dnf_keywords" json:"dnf_keywords"`
	Overrides          map[string]string `yaml:"overrides" json:"overrides"` // normalized label -> Finished | DNF | Unclassified
	PositionExceptions []string          `yaml:"position_exceptions" json:"position_exceptions"`
	TopCauses          int               `yaml:"top_causes" json:"top_causes"`
}

// DNFKeywords groups DNF keywords by cause; causes are tried in this order
type DNFKeywords struct {
	Mechanical []string `yaml:"mechanical" json:"mechanical"`
	Crash      []string `yaml:"crash" json:"crash"`
	Other      []string `yaml:"other" json:"other"`
}

// SchemaFor returns the expected columns of table
func (c *Config) SchemaFor(table string) ([]string, bool) {
	for _, s := range c.Schema {
		if s.Table == table {
			return s.Columns, true
		}
	}
	return nil, false
}

// Built-in duplicate rule names
const (
	RuleDualConstructor = "dual_constructor"
	RuleSharedDrive     = "shared_drive"
	RuleSprintWeekend   = "sprint_weekend"
)

// KnownDuplicateRules lists the rule names the detector understands
var KnownDuplicateRules = []string{RuleDualConstructor, RuleSharedDrive, RuleSprintWeekend}

// Status categories accepted in overrides
const (
	CategoryFinished     = "Finished"
	CategoryDNF          = "DNF"
	CategoryUnclassified = "Unclassified"
)
