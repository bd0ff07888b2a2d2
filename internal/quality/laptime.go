package quality

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// Outlier causes
const (
	CauseExpectedSlow = "expected slow lap"
	CauseHardFail     = "hard fail"
	CauseUnexplained  = "unexplained"
)

// LapStats are descriptive statistics over non-null lap times (ms)
type LapStats struct {
	Count  int     `json:"count"`
	Nulls  int     `json:"nulls"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
}

// LapOutlier is one value whose |z| exceeds the threshold
type LapOutlier struct {
	RaceID   string  `json:"race_id"`
	DriverID string  `json:"driver_id"`
	Lap      string  `json:"lap"`
	ValueMs  float64 `json:"value_ms"`
	Z        float64 `json:"z"`
	Cause    string  `json:"cause"`
}

// LapTimeReport is the outcome of the lap-time check
type LapTimeReport struct {
	Table       string         `json:"table"`
	Column      string         `json:"column"`
	Thresholds  rules.LapTimes `json:"thresholds"`
	TotalRows   int            `json:"total_rows"`
	Unparseable int            `json:"unparseable"`
	Stats       LapStats       `json:"stats"`

	Negative int `json:"negative"`
	TooFast  int `json:"too_fast"`
	Warning  int `json:"warning"`
	Corrupt  int `json:"corrupt"`
	HardFail int `json:"hard_fail"`

	ZOutliers        int          `json:"z_outliers"`
	ExpectedSlow     int          `json:"expected_slow"`
	HardFailOutliers int          `json:"hard_fail_outliers"`
	UnexplainedOut   int          `json:"unexplained_outliers"`
	TopOutliers      []LapOutlier `json:"top_outliers"`

	Note   string `json:"note,omitempty"`
	Passed bool   `json:"passed"`
}

// Quantile returns the q-quantile of sorted values with linear interpolation between closest ranks
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// DescribeLaps computes LapStats; Std is the sample standard deviation (n-1)
func DescribeLaps(values []float64, nulls int) LapStats {
	s := LapStats{Count: len(values), Nulls: nulls}
	if len(values) == 0 {
		return s
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(len(sorted))

	if len(sorted) > 1 {
		ss := 0.0
		for _, v := range sorted {
			d := v - s.Mean
			ss += d * d
		}
		s.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}

	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Median = Quantile(sorted, 0.5)
	s.P5 = Quantile(sorted, 0.05)
	s.P95 = Quantile(sorted, 0.95)
	return s
}

// isHardFail reports negative, too-fast or corrupt values
func isHardFail(v float64, cfg rules.LapTimes) bool {
	return v < cfg.MinMs || v > cfg.CorruptMs
}

// inWarningBand reports values in (warn, corrupt]
func inWarningBand(v float64, cfg rules.LapTimes) bool {
	return v > cfg.WarnMs && v <= cfg.CorruptMs
}

// lapColumn picks the configured column, then the first fallback present
func lapColumn(rel *contracts.Relation, cfg rules.LapTimes) (string, bool) {
	for _, c := range append([]string{cfg.Column}, cfg.FallbackColumns...) {
		if rel.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// CheckLapTimes validates the lap-time column against the thresholds
func CheckLapTimes(ds *contracts.Dataset, cfg rules.LapTimes) *LapTimeReport {
	report := &LapTimeReport{Table: cfg.Table, Column: cfg.Column, Thresholds: cfg}

	rel, ok := ds.Get(cfg.Table)
	if !ok {
		report.Note = fmt.Sprintf("table %s not loaded", cfg.Table)
		return report
	}
	col, ok := lapColumn(rel, cfg)
	if !ok {
		report.Note = fmt.Sprintf("column %s not found in %s", strings.Join(append([]string{cfg.Column}, cfg.FallbackColumns...), " / "), cfg.Table)
		return report
	}
	report.Column = col
	report.TotalRows = rel.Len()

	valIdx, _ := rel.ColumnIndex(col)
	raceIdx, hasRace := rel.ColumnIndex(colRaceID)
	driverIdx, hasDriver := rel.ColumnIndex("driverId")
	lapIdx, hasLap := rel.ColumnIndex("lap")

	values := make([]float64, 0, rel.Len())
	rowOf := make([]int, 0, rel.Len())
	nulls := 0
	for i, row := range rel.Rows {
		v := row[valIdx]
		if v.Null {
			nulls++
			continue
		}
		f, ok := v.Float()
		if !ok {
			report.Unparseable++
			continue
		}
		values = append(values, f)
		rowOf = append(rowOf, i)
	}

	report.Stats = DescribeLaps(values, nulls)

	for _, v := range values {
		switch {
		case v < 0:
			report.Negative++
		case v < cfg.MinMs:
			report.TooFast++
		case v > cfg.CorruptMs:
			report.Corrupt++
		case v > cfg.WarnMs:
			report.Warning++
		}
	}
	report.HardFail = report.Negative + report.TooFast + report.Corrupt + report.Unparseable
	report.Passed = report.HardFail == 0

	if report.Stats.Std <= 0 {
		return report
	}

	var outliers []LapOutlier
	for j, v := range values {
		z := (v - report.Stats.Mean) / report.Stats.Std
		if math.Abs(z) <= cfg.ZThreshold {
			continue
		}
		o := LapOutlier{ValueMs: v, Z: z}
		switch {
		case isHardFail(v, cfg):
			o.Cause = CauseHardFail
			report.HardFailOutliers++
		case inWarningBand(v, cfg):
			o.Cause = CauseExpectedSlow
			report.ExpectedSlow++
		default:
			o.Cause = CauseUnexplained
			report.UnexplainedOut++
		}

		row := rel.Rows[rowOf[j]]
		if hasRace {
			o.RaceID = row[raceIdx].Key()
		}
		if hasDriver {
			o.DriverID = row[driverIdx].Key()
		}
		if hasLap {
			o.Lap = row[lapIdx].Key()
		}
		outliers = append(outliers, o)
	}
	report.ZOutliers = len(outliers)

	slices.SortStableFunc(outliers, func(a, b LapOutlier) int {
		return cmp.Compare(math.Abs(b.Z), math.Abs(a.Z))
	})
	if cfg.TopOutliers > 0 && len(outliers) > cfg.TopOutliers {
		outliers = outliers[:cfg.TopOutliers]
	}
	report.TopOutliers = outliers

	return report
}
