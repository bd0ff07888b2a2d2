package quality

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// CategoryUnexplained is the fallback category of the rule chain
const CategoryUnexplained = "unexplained"

// Columns the built-in rules read
const (
	colRaceID        = "raceId"
	colConstructorID = "constructorId"
	colLaps          = "laps"
	colYear          = "year"
)

// DuplicateGroup is one key that occurs more than once
type DuplicateGroup struct {
	Key          []string // normalized key values, in key column order
	RaceID       string
	Occurrences  int
	Constructors int       // distinct non-null constructorId values
	Laps         []float64 // non-null laps values
	Year         int
	YearKnown    bool
	Category     string
}

// LapSpreadRatio returns (max - min) / max over the group's laps, or 0 when undefined
func (g *DuplicateGroup) LapSpreadRatio() float64 {
	if len(g.Laps) < 2 {
		return 0
	}
	lo, hi := slices.Min(g.Laps), slices.Max(g.Laps)
	if hi <= 0 {
		return 0
	}
	return (hi - lo) / hi
}

// DuplicateRule is one classifier predicate of the chain
type DuplicateRule interface {
	Name() string
	Match(g *DuplicateGroup) bool
}

// DualConstructorRule matches a driver entered for more than one constructor in the event
type DualConstructorRule struct{}

func (DualConstructorRule) Name() string { return rules.RuleDualConstructor }

func (DualConstructorRule) Match(g *DuplicateGroup) bool {
	return g.Constructors > 1
}

// SharedDriveRule matches relay entries of the early era: one car, several drivers, very different lap counts
type SharedDriveRule struct {
	CutoffYear        int
	MinLapSpreadRatio float64
}

func (SharedDriveRule) Name() string { return rules.RuleSharedDrive }

func (r SharedDriveRule) Match(g *DuplicateGroup) bool {
	if !g.YearKnown || g.Year >= r.CutoffYear {
		return false
	}
	return len(g.Laps) >= 2 && g.LapSpreadRatio() >= r.MinLapSpreadRatio
}

// SprintWeekendRule matches sprint and main race rows sharing one raceId
type SprintWeekendRule struct {
	StartYear int
}

func (SprintWeekendRule) Name() string { return rules.RuleSprintWeekend }

func (r SprintWeekendRule) Match(g *DuplicateGroup) bool {
	return g.YearKnown && g.Year >= r.StartYear
}

// BuildDuplicateRules instantiates the configured chain in order
func BuildDuplicateRules(cfg rules.Duplicates) ([]DuplicateRule, error) {
	chain := make([]DuplicateRule, 0, len(cfg.Rules))
	for _, name := range cfg.Rules {
		switch name {
		case rules.RuleDualConstructor:
			chain = append(chain, DualConstructorRule{})
		case rules.RuleSharedDrive:
			chain = append(chain, SharedDriveRule{CutoffYear: cfg.SharedDriveCutoffYear, MinLapSpreadRatio: cfg.MinLapSpreadRatio})
		case rules.RuleSprintWeekend:
			chain = append(chain, SprintWeekendRule{StartYear: cfg.SprintStartYear})
		default:
			return nil, fmt.Errorf("unknown duplicate rule %q", name)
		}
	}
	return chain, nil
}

// DuplicateCategory aggregates the groups classified into one category
type DuplicateCategory struct {
	Name   string `json:"name"`
	Groups int    `json:"groups"`
	Rows   int    `json:"rows"`
	Races  int    `json:"races"`
}

// DuplicateRace summarizes one affected race
type DuplicateRace struct {
	RaceID     string   `json:"race_id"`
	Year       string   `json:"year"` // "?" when unknown
	Pairs      int      `json:"pairs"`
	Categories []string `json:"categories"`
}

// DuplicateSample is one duplicated key and its occurrence count
type DuplicateSample struct {
	Key         []string `json:"key"`
	Occurrences int      `json:"occurrences"`
}

// DuplicateReport is the outcome of the duplicate check
type DuplicateReport struct {
	Table              string              `json:"table"`
	Key                []string            `json:"key"`
	TotalRows          int                 `json:"total_rows"`
	Pairs              int                 `json:"pairs"`
	AffectedRows       int                 `json:"affected_rows"`
	AffectedPct        float64             `json:"affected_pct"`
	Races              int                 `json:"races"`
	AffectedRaceIDs    []string            `json:"affected_race_ids"`
	Categories         []DuplicateCategory `json:"categories"`
	TopRaces           []DuplicateRace     `json:"top_races"`
	Sample             []DuplicateSample   `json:"sample"`
	Unexplained        int                 `json:"unexplained"`
	UnexplainedRaceIDs []string            `json:"unexplained_race_ids"`
	Note               string              `json:"note,omitempty"`
	Passed             bool                `json:"passed"`
}

// Category returns the named category aggregate
func (r *DuplicateReport) Category(name string) DuplicateCategory {
	for _, c := range r.Categories {
		if c.Name == name {
			return c
		}
	}
	return DuplicateCategory{Name: name}
}

// DuplicateDetector groups rows by key and classifies each duplicate group with an ordered rule chain
type DuplicateDetector struct {
	cfg   rules.Duplicates
	chain []DuplicateRule
}

// NewDuplicateDetector builds the configured chain; extra rules run after it, before the fallback
func NewDuplicateDetector(cfg rules.Duplicates, extra ...DuplicateRule) (*DuplicateDetector, error) {
	chain, err := BuildDuplicateRules(cfg)
	if err != nil {
		return nil, err
	}
	return &DuplicateDetector{cfg: cfg, chain: append(chain, extra...)}, nil
}

// Classify returns the first matching rule name, or the fallback
func (d *DuplicateDetector) Classify(g *DuplicateGroup) string {
	for _, r := range d.chain {
		if r.Match(g) {
			return r.Name()
		}
	}
	return CategoryUnexplained
}

// Check runs the detector over the configured table
func (d *DuplicateDetector) Check(ds *contracts.Dataset) *DuplicateReport {
	report := &DuplicateReport{Table: d.cfg.Table, Key: d.cfg.Key}
	for _, r := range d.chain {
		report.Categories = append(report.Categories, DuplicateCategory{Name: r.Name()})
	}
	report.Categories = append(report.Categories, DuplicateCategory{Name: CategoryUnexplained})

	rel, ok := ds.Get(d.cfg.Table)
	if !ok {
		report.Note = fmt.Sprintf("table %s not loaded", d.cfg.Table)
		return report
	}
	report.TotalRows = rel.Len()

	keyIdx := make([]int, len(d.cfg.Key))
	var missing []string
	for i, col := range d.cfg.Key {
		idx, ok := rel.ColumnIndex(col)
		if !ok {
			missing = append(missing, col)
		}
		keyIdx[i] = idx
	}
	if len(missing) > 0 {
		report.Note = "missing key columns: " + strings.Join(missing, ", ")
		return report
	}

	groups := d.groupRows(ds, rel, keyIdx)
	d.summarize(report, groups)
	return report
}

// groupRows returns the groups with more than one row, in first-seen order
func (d *DuplicateDetector) groupRows(ds *contracts.Dataset, rel *contracts.Relation, keyIdx []int) []*DuplicateGroup {
	raceIdx, hasRace := rel.ColumnIndex(colRaceID)
	consIdx, hasCons := rel.ColumnIndex(colConstructorID)
	lapsIdx, hasLaps := rel.ColumnIndex(colLaps)
	years := raceYears(ds)

	type acc struct {
		group        *DuplicateGroup
		constructors map[string]bool
	}
	byKey := make(map[string]*acc)
	var order []string

	for _, row := range rel.Rows {
		key := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			key[i] = row[idx].Key()
		}
		id := strings.Join(key, "\x1f")

		a, ok := byKey[id]
		if !ok {
			a = &acc{group: &DuplicateGroup{Key: key}, constructors: make(map[string]bool)}
			if hasRace {
				a.group.RaceID = row[raceIdx].Key()
				a.group.Year, a.group.YearKnown = years[a.group.RaceID]
			}
			byKey[id] = a
			order = append(order, id)
		}
		a.group.Occurrences++
		if hasCons && !row[consIdx].Null {
			a.constructors[row[consIdx].Key()] = true
		}
		if hasLaps {
			if laps, ok := row[lapsIdx].Float(); ok {
				a.group.Laps = append(a.group.Laps, laps)
			}
		}
	}

	var dups []*DuplicateGroup
	for _, id := range order {
		a := byKey[id]
		if a.group.Occurrences < 2 {
			continue
		}
		a.group.Constructors = len(a.constructors)
		a.group.Category = d.Classify(a.group)
		dups = append(dups, a.group)
	}
	return dups
}

// summarize fills the report aggregates from the classified groups
func (d *DuplicateDetector) summarize(report *DuplicateReport, groups []*DuplicateGroup) {
	catIdx := make(map[string]int, len(report.Categories))
	catRaces := make([]map[string]bool, len(report.Categories))
	for i, c := range report.Categories {
		catIdx[c.Name] = i
		catRaces[i] = make(map[string]bool)
	}

	type raceAcc struct {
		race       DuplicateRace
		categories map[string]bool
	}
	races := make(map[string]*raceAcc)
	unexplainedRaces := make(map[string]bool)

	for _, g := range groups {
		report.Pairs += g.Occurrences - 1
		report.AffectedRows += g.Occurrences

		i := catIdx[g.Category]
		report.Categories[i].Groups++
		report.Categories[i].Rows += g.Occurrences
		catRaces[i][g.RaceID] = true

		if g.Category == CategoryUnexplained {
			report.Unexplained++
			unexplainedRaces[g.RaceID] = true
		}

		ra, ok := races[g.RaceID]
		if !ok {
			year := "?"
			if g.YearKnown {
				year = strconv.Itoa(g.Year)
			}
			ra = &raceAcc{race: DuplicateRace{RaceID: g.RaceID, Year: year}, categories: make(map[string]bool)}
			races[g.RaceID] = ra
		}
		ra.race.Pairs += g.Occurrences - 1
		ra.categories[g.Category] = true

		report.Sample = append(report.Sample, DuplicateSample{Key: g.Key, Occurrences: g.Occurrences})
	}

	for i := range report.Categories {
		report.Categories[i].Races = len(catRaces[i])
	}

	report.AffectedPct = pct(report.AffectedRows, report.TotalRows)
	report.Races = len(races)
	report.Passed = report.Unexplained == 0

	for id := range races {
		report.AffectedRaceIDs = append(report.AffectedRaceIDs, id)
	}
	sortKeys(report.AffectedRaceIDs)
	for id := range unexplainedRaces {
		report.UnexplainedRaceIDs = append(report.UnexplainedRaceIDs, id)
	}
	sortKeys(report.UnexplainedRaceIDs)

	top := make([]DuplicateRace, 0, len(races))
	for _, ra := range races {
		for _, c := range report.Categories {
			if ra.categories[c.Name] {
				ra.race.Categories = append(ra.race.Categories, c.Name)
			}
		}
		top = append(top, ra.race)
	}
	slices.SortFunc(top, func(a, b DuplicateRace) int {
		if c := cmp.Compare(b.Pairs, a.Pairs); c != 0 {
			return c
		}
		return compareKeys(a.RaceID, b.RaceID)
	})
	if d.cfg.TopRaces > 0 && len(top) > d.cfg.TopRaces {
		top = top[:d.cfg.TopRaces]
	}
	report.TopRaces = top

	slices.SortFunc(report.Sample, func(a, b DuplicateSample) int {
		if c := cmp.Compare(b.Occurrences, a.Occurrences); c != 0 {
			return c
		}
		for i := range a.Key {
			if c := compareKeys(a.Key[i], b.Key[i]); c != 0 {
				return c
			}
		}
		return 0
	})
	if d.cfg.SampleSize > 0 && len(report.Sample) > d.cfg.SampleSize {
		report.Sample = report.Sample[:d.cfg.SampleSize]
	}
}

// raceYears maps raceId to year from the races table
func raceYears(ds *contracts.Dataset) map[string]int {
	out := make(map[string]int)
	races, ok := ds.Get(contracts.TableRaces)
	if !ok {
		return out
	}
	idIdx, ok1 := races.ColumnIndex(colRaceID)
	yearIdx, ok2 := races.ColumnIndex(colYear)
	if !ok1 || !ok2 {
		return out
	}
	for _, row := range races.Rows {
		if row[idIdx].Null {
			continue
		}
		if y, ok := row[yearIdx].Int(); ok {
			out[row[idIdx].Key()] = int(y)
		}
	}
	return out
}
