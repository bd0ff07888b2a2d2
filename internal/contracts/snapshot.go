package contracts

import "time"

// CheckOutcome is one scorecard line as persisted in run history
type CheckOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// QualitySnapshot is the persisted summary of one validation run
// SSOT: validate -> history handoff
type QualitySnapshot struct {
	RunID       string         `json:"run_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Fingerprint string         `json:"fingerprint"`
	RulesHash   string         `json:"rules_hash"`
	Source      string         `json:"source"`
	TotalRows   int            `json:"total_rows"`
	Checks      []CheckOutcome `json:"checks"`
	Passed      bool           `json:"passed"`
}

// PassedCount returns the number of passing checks
func (s *QualitySnapshot) PassedCount() int {
	n := 0
	for _, c := range s.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// PassRate returns passing checks over total checks
func (s *QualitySnapshot) PassRate() float64 {
	if len(s.Checks) == 0 {
		return 0.0
	}
	return float64(s.PassedCount()) / float64(len(s.Checks))
}

// FailedChecks returns the names of failing checks in scorecard order
func (s *QualitySnapshot) FailedChecks() []string {
	var out []string
	for _, c := range s.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}
