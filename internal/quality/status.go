package quality

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// DNF causes
const (
	CauseMechanical = "mechanical"
	CauseCrash      = "crash"
	CauseOther      = "other"
)

// lappedPattern matches lapped-finisher labels such as "+1 Lap" and "+12 Laps"
var lappedPattern = regexp.MustCompile(`^\+\s*\d+\s+laps?$`)

// Classification is the category of one status label
type Classification struct {
	Category string `json:"category"` // Finished, DNF or Unclassified
	Cause    string `json:"cause,omitempty"`
}

// NormalizeLabel lower-cases a label and collapses whitespace
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// matchesWordPrefix reports whether kw occurs in label starting at a word boundary.
// Both arguments are normalized; "oil" matches "oil leak" but not "spoiler".
func matchesWordPrefix(label, kw string) bool {
	if kw == "" {
		return false
	}
	for from := 0; from <= len(label)-len(kw); {
		i := strings.Index(label[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(label[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		from = i + 1
	}
	return false
}

// StatusClassifier maps status labels to Finished / DNF / Unclassified
type StatusClassifier struct {
	overrides  map[string]string
	finished   []string
	causes     []string
	keywords   map[string][]string
	exceptions map[string]bool
}

// NewStatusClassifier normalizes the configured keyword lists once
func NewStatusClassifier(cfg rules.StatusClassifier) *StatusClassifier {
	c := &StatusClassifier{
		overrides:  make(map[string]string, len(cfg.Overrides)),
		causes:     []string{CauseMechanical, CauseCrash, CauseOther},
		keywords:   make(map[string][]string, 3),
		exceptions: make(map[string]bool, len(cfg.PositionExceptions)),
	}
	for label, category := range cfg.Overrides {
		c.overrides[NormalizeLabel(label)] = category
	}
	for _, p := range cfg.FinishedPatterns {
		c.finished = append(c.finished, NormalizeLabel(p))
	}
	for cause, list := range map[string][]string{
		CauseMechanical: cfg.DNFKeywords.Mechanical,
		CauseCrash:      cfg.DNFKeywords.Crash,
		CauseOther:      cfg.DNFKeywords.Other,
	} {
		for _, kw := range list {
			c.keywords[cause] = append(c.keywords[cause], NormalizeLabel(kw))
		}
	}
	for _, e := range cfg.PositionExceptions {
		c.exceptions[NormalizeLabel(e)] = true
	}
	return c
}

// dnfCause returns the first cause whose keywords match
func (c *StatusClassifier) dnfCause(label string) (string, bool) {
	for _, cause := range c.causes {
		for _, kw := range c.keywords[cause] {
			if matchesWordPrefix(label, kw) {
				return cause, true
			}
		}
	}
	return "", false
}

// isFinished matches the finished patterns and the lapped-finisher form
func (c *StatusClassifier) isFinished(label string) bool {
	if lappedPattern.MatchString(label) {
		return true
	}
	for _, p := range c.finished {
		if matchesWordPrefix(label, p) {
			return true
		}
	}
	return false
}

// Classify assigns a category: override, then finished patterns, then DNF keywords, else Unclassified
func (c *StatusClassifier) Classify(label string) Classification {
	norm := NormalizeLabel(label)

	if category, ok := c.overrides[norm]; ok {
		out := Classification{Category: category}
		if category == rules.CategoryDNF {
			out.Cause = CauseOther
			if cause, ok := c.dnfCause(norm); ok {
				out.Cause = cause
			}
		}
		return out
	}
	if c.isFinished(norm) {
		return Classification{Category: rules.CategoryFinished}
	}
	if cause, ok := c.dnfCause(norm); ok {
		return Classification{Category: rules.CategoryDNF, Cause: cause}
	}
	return Classification{Category: rules.CategoryUnclassified}
}

// IsPositionException reports whether a null position without DNF is documented for label
func (c *StatusClassifier) IsPositionException(label string) bool {
	return c.exceptions[NormalizeLabel(label)]
}

// LabelCount is the number of result rows carrying one label
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Cause string `json:"cause,omitempty"`
}

// DNFCrossCheck compares the classifier against the precomputed is_dnf flag
type DNFCrossCheck struct {
	FlaggedNotClassified int `json:"flagged_not_classified"` // is_dnf=1, classifier Finished/Unclassified
	ClassifiedNotFlagged int `json:"classified_not_flagged"` // classifier DNF, is_dnf=0
	ClassifierDNF        int `json:"classifier_dnf"`
	FlagDNF              int `json:"flag_dnf"`
	Delta                int `json:"delta"` // ClassifierDNF - FlagDNF
	UnknownFlag          int `json:"unknown_flag"`
}

// PositionConsistency cross-tabulates position nullness against is_dnf
type PositionConsistency struct {
	NullPositionDNF    int          `json:"null_position_dnf"`
	NullPositionNotDNF int          `json:"null_position_not_dnf"`
	PositionDNF        int          `json:"position_dnf"`
	PositionNotDNF     int          `json:"position_not_dnf"`
	Explained          int          `json:"explained"`   // null position, not DNF, documented label
	Unexplained        int          `json:"unexplained"` // null position, not DNF, other label
	UnexplainedLabels  []LabelCount `json:"unexplained_labels"`
}

// StatusReport is the outcome of the status check
type StatusReport struct {
	TotalRows      int      `json:"total_rows"`
	Mapped         int      `json:"mapped"`
	Unmapped       int      `json:"unmapped"`
	NullStatusIDs  int      `json:"null_status_ids"`
	UnmappedSample []string `json:"unmapped_sample,omitempty"`

	Finished     int `json:"finished"`
	DNF          int `json:"dnf"`
	Unclassified int `json:"unclassified"`

	DNFByCause         []LabelCount `json:"dnf_by_cause"`
	UnclassifiedLabels []LabelCount `json:"unclassified_labels"`
	TopDNFCauses       []LabelCount `json:"top_dnf_causes"`
	FinishedLabels     []LabelCount `json:"finished_labels"`

	CrossCheck *DNFCrossCheck       `json:"cross_check,omitempty"`
	Position   *PositionConsistency `json:"position,omitempty"`

	Note   string `json:"note,omitempty"`
	Passed bool   `json:"passed"`
}

// parseFlag reads a 0/1 or true/false cell
func parseFlag(v contracts.Value) (bool, bool) {
	if v.Null {
		return false, false
	}
	if n, ok := v.Int(); ok && (n == 0 || n == 1) {
		return n == 1, true
	}
	switch strings.ToLower(strings.TrimSpace(v.Raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// sortedCounts flattens a label->count map, most frequent first
func sortedCounts(m map[string]int, causes map[string]string) []LabelCount {
	out := make([]LabelCount, 0, len(m))
	for label, n := range m {
		out = append(out, LabelCount{Label: label, Count: n, Cause: causes[label]})
	}
	slices.SortFunc(out, func(a, b LabelCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// CheckStatus joins results to status labels, classifies each row and cross-checks is_dnf.
// It passes iff every results.statusId, null included, maps to a status row.
func CheckStatus(ds *contracts.Dataset, cfg rules.StatusClassifier) *StatusReport {
	report := &StatusReport{}

	statusRel, ok := ds.Get(contracts.TableStatus)
	if !ok {
		report.Note = "status table not loaded"
		return report
	}
	results, ok := ds.Get(contracts.TableResults)
	if !ok {
		report.Note = "results table not loaded"
		return report
	}
	sidIdx, ok1 := statusRel.ColumnIndex("statusId")
	labelIdx, ok2 := statusRel.ColumnIndex("status")
	if !ok1 || !ok2 {
		report.Note = "status table missing statusId/status columns"
		return report
	}
	rsidIdx, ok := results.ColumnIndex("statusId")
	if !ok {
		report.Note = "results table missing statusId column"
		return report
	}

	labels := make(map[string]string, statusRel.Len())
	for _, row := range statusRel.Rows {
		if row[sidIdx].Null {
			continue
		}
		label := ""
		if !row[labelIdx].Null {
			label = row[labelIdx].Raw
		}
		labels[row[sidIdx].Key()] = label
	}

	classifier := NewStatusClassifier(cfg)
	dnfIdx, hasFlag := results.ColumnIndex("is_dnf")
	posIdx, hasPos := results.ColumnIndex("position")
	if hasFlag {
		report.CrossCheck = &DNFCrossCheck{}
	}
	if hasFlag && hasPos {
		report.Position = &PositionConsistency{}
	}

	finished := make(map[string]int)
	dnf := make(map[string]int)
	unclassified := make(map[string]int)
	causeOf := make(map[string]string)
	byCause := make(map[string]int)
	unmapped := make(map[string]bool)
	unexplainedPos := make(map[string]int)
	classes := make(map[string]Classification)

	report.TotalRows = results.Len()
	for _, row := range results.Rows {
		sid := row[rsidIdx]
		label, mapped := labels[sid.Key()]
		if sid.Null || !mapped {
			report.Unmapped++
			if sid.Null {
				report.NullStatusIDs++
			} else {
				unmapped[sid.Key()] = true
			}
			continue
		}
		report.Mapped++

		class, ok := classes[label]
		if !ok {
			class = classifier.Classify(label)
			classes[label] = class
		}
		switch class.Category {
		case rules.CategoryFinished:
			report.Finished++
			finished[label]++
		case rules.CategoryDNF:
			report.DNF++
			dnf[label]++
			causeOf[label] = class.Cause
			byCause[class.Cause]++
		default:
			report.Unclassified++
			unclassified[label]++
		}

		if !hasFlag {
			continue
		}
		flag, known := parseFlag(row[dnfIdx])
		cc := report.CrossCheck
		if class.Category == rules.CategoryDNF {
			cc.ClassifierDNF++
		}
		if !known {
			cc.UnknownFlag++
			continue
		}
		if flag {
			cc.FlagDNF++
			if class.Category != rules.CategoryDNF {
				cc.FlaggedNotClassified++
			}
		} else if class.Category == rules.CategoryDNF {
			cc.ClassifiedNotFlagged++
		}

		if report.Position == nil {
			continue
		}
		pc := report.Position
		nullPos := row[posIdx].Null
		switch {
		case nullPos && flag:
			pc.NullPositionDNF++
		case nullPos:
			pc.NullPositionNotDNF++
			if classifier.IsPositionException(label) {
				pc.Explained++
			} else {
				pc.Unexplained++
				unexplainedPos[label]++
			}
		case flag:
			pc.PositionDNF++
		default:
			pc.PositionNotDNF++
		}
	}

	if report.CrossCheck != nil {
		report.CrossCheck.Delta = report.CrossCheck.ClassifierDNF - report.CrossCheck.FlagDNF
	}
	if report.Position != nil {
		report.Position.UnexplainedLabels = sortedCounts(unexplainedPos, nil)
	}

	for id := range unmapped {
		report.UnmappedSample = append(report.UnmappedSample, id)
	}
	sortKeys(report.UnmappedSample)
	if len(report.UnmappedSample) > maxOrphanSample {
		report.UnmappedSample = report.UnmappedSample[:maxOrphanSample]
	}

	for _, cause := range []string{CauseMechanical, CauseCrash, CauseOther} {
		report.DNFByCause = append(report.DNFByCause, LabelCount{Label: cause, Count: byCause[cause]})
	}
	report.UnclassifiedLabels = sortedCounts(unclassified, nil)
	report.FinishedLabels = sortedCounts(finished, nil)
	report.TopDNFCauses = sortedCounts(dnf, causeOf)
	if cfg.TopCauses > 0 && len(report.TopDNFCauses) > cfg.TopCauses {
		report.TopDNFCauses = report.TopDNFCauses[:cfg.TopCauses]
	}

	report.Passed = report.Unmapped == 0
	if report.NullStatusIDs > 0 {
		report.Note = fmt.Sprintf("%d result rows have a null statusId", report.NullStatusIDs)
	}
	return report
}
