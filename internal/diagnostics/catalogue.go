// Package diagnostics runs the root-cause SQL catalogue against the SQLite store.
// Each block explains one scorecard failure as a data issue, a rule issue,
// or an expected property of the dataset.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/wonny/f1dq/internal/quality"
	"github.com/wonny/f1dq/internal/rules"
	"github.com/wonny/f1dq/internal/store"
)

// Query is one catalogue entry
type Query struct {
	Block          string `json:"block"`
	ID             string `json:"id"`
	Title          string `json:"title"`
	Question       string `json:"question"`
	Interpretation string `json:"interpretation"`
	SQL            string `json:"sql"`
	Limit          int    `json:"limit"` // 0 = all rows

	// Transform post-processes the fetched rows before the limit is applied
	Transform func(*store.Rows) *store.Rows `json:"-"`
}

// Block is a titled group of queries
type Block struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// duplicateRaces selects every raceId holding a repeated (raceId, driverId) key
const duplicateRaces = `SELECT raceId FROM results GROUP BY raceId, driverId HAVING COUNT(*) > 1`

// worstDuplicateRace selects the race with the most surplus rows
const worstDuplicateRace = `SELECT raceId FROM (
        SELECT raceId, COUNT(*) - COUNT(DISTINCT driverId) AS surplus
        FROM results
        GROUP BY raceId
        HAVING COUNT(*) > COUNT(DISTINCT driverId)
        ORDER BY surplus DESC, raceId
        LIMIT 1
    )`

// worstLap selects the single slowest lap
const worstLap = `SELECT raceId, lap FROM lap_times WHERE lap_time_ms IS NOT NULL ORDER BY lap_time_ms DESC LIMIT 1`

const fullName = `COALESCE(d.full_name, d.forename || ' ' || d.surname)`

// Blocks returns the block headings in report order
func Blocks(cfg *rules.Config) []Block {
	return []Block{
		{"A", "BLOCK A — `results.position` null (Scorecard Check 1)"},
		{"B", "BLOCK B — `results.grid` null (Scorecard Check 1 secondary)"},
		{"C", "BLOCK C — Duplicate `raceId × driverId` (Scorecard Check 4)"},
		{"D", fmt.Sprintf("BLOCK D — Lap times > %ss (Scorecard Check 5)", seconds(cfg.LapTimes.CorruptMs))},
		{"E", "BLOCK E — Unclassified status labels (Scorecard Check 6)"},
		{"F", "BLOCK F — `qualifying.q1_ms` null"},
		{"G", "BLOCK G — `pit_stops` null duration"},
	}
}

// BlockLabel returns the heading of block id
func BlockLabel(cfg *rules.Config, id string) string {
	for _, b := range Blocks(cfg) {
		if b.ID == id {
			return b.Label
		}
	}
	return "BLOCK " + id
}

func seconds(ms float64) string {
	return fmt.Sprintf("%g", ms/1000)
}

// Catalogue builds the query list; thresholds and the status classifier come from cfg
func Catalogue(cfg *rules.Config) []Query {
	warn := fmt.Sprintf("%.0f", cfg.LapTimes.WarnMs)
	corrupt := fmt.Sprintf("%.0f", cfg.LapTimes.CorruptMs)
	classifier := quality.NewStatusClassifier(cfg.Status)

	return []Query{
		// Block A
		{
			Block:    "A",
			ID:       "A1",
			Title:    "Position null vs is_dnf cross-tab",
			Question: "Is the null rate in results.position legitimate?",
			Interpretation: "**Data fine** if 'null position + NOT DNF' is 0 or tiny.\n" +
				"**Data problem** if 'null position + NOT DNF' or 'has position + DNF' counts are large.",
			SQL: `
SELECT
    CASE
        WHEN position IS NULL AND is_dnf = 1 THEN 'null position + DNF (correct)'
        WHEN position IS NULL AND is_dnf = 0 THEN 'null position + NOT DNF (investigate)'
        WHEN position IS NOT NULL AND is_dnf = 1 THEN 'has position + DNF (investigate)'
        WHEN position IS NOT NULL AND is_dnf = 0 THEN 'has position + finished (correct)'
    END AS case_type,
    COUNT(*) AS row_count
FROM results
GROUP BY case_type
ORDER BY row_count DESC`,
		},
		{
			Block:    "A",
			ID:       "A2",
			Title:    "Status labels for null-position, non-DNF rows",
			Question: "What statuses explain rows where position is null but is_dnf = 0?",
			Interpretation: "'Not classified' is the expected answer: drivers who completed laps but " +
				"were not awarded a finishing position. Any other label here is missing from the DNF keywords.",
			SQL: `
SELECT
    s.status,
    COUNT(*) AS count
FROM results r
JOIN status s ON r.statusId = s.statusId
WHERE r.position IS NULL
  AND r.is_dnf = 0
GROUP BY s.status
ORDER BY count DESC`,
		},
		{
			Block:    "A",
			ID:       "A3",
			Title:    "Null position count vs DNF flag count",
			Question: "Does null_count(position) ≈ count(is_dnf = 1)?",
			Interpretation: "Small difference → the gap is explained by 'Not classified' entries; the check " +
				"failure is a **rule issue**, not a data problem.\n" +
				"Large difference → genuine data integrity issue.",
			SQL: `
SELECT
    SUM(CASE WHEN position IS NULL THEN 1 ELSE 0 END) AS position_null_count,
    SUM(CASE WHEN is_dnf = 1       THEN 1 ELSE 0 END) AS dnf_flag_count,
    SUM(CASE WHEN position IS NULL THEN 1 ELSE 0 END) -
    SUM(CASE WHEN is_dnf = 1       THEN 1 ELSE 0 END) AS difference
FROM results`,
		},

		// Block B
		{
			Block:    "B",
			ID:       "B1",
			Title:    "Status of drivers with null grid",
			Question: "What were null-grid drivers doing? Did they actually start?",
			Interpretation: "Dominated by 'Did not qualify / prequalify' → pit-lane start conversion " +
				"(grid=0 → NULL) is working.\n" +
				"Finished drivers here → data gap, grid was never recorded.",
			SQL: `
SELECT
    s.status,
    COUNT(*) AS count
FROM results r
JOIN status s ON r.statusId = s.statusId
WHERE r.grid IS NULL
GROUP BY s.status
ORDER BY count DESC
LIMIT 20`,
		},
		{
			Block:    "B",
			ID:       "B2",
			Title:    "Era breakdown of null-grid rows",
			Question: "Are null grid positions concentrated in a specific era?",
			Interpretation: "Concentration before 1980 → historic gap, expected.\n" +
				"Significant counts in the modern era → unexplained data issue.",
			SQL: `
SELECT
    ra.year,
    COUNT(*) AS null_grid_count
FROM results r
JOIN races ra ON r.raceId = ra.raceId
WHERE r.grid IS NULL
GROUP BY ra.year
ORDER BY ra.year DESC
LIMIT 30`,
		},
		{
			Block:    "B",
			ID:       "B3",
			Title:    "Null-grid rows that scored points",
			Question: "How many null-grid drivers scored championship points?",
			Interpretation: "0 → every null grid is a DNS/DNQ entry, which has no grid.\n" +
				"> 0 → drivers started but grid was not recorded: genuine data gap.",
			SQL: `
SELECT
    COUNT(*) AS null_grid_with_points,
    SUM(points) AS total_points_from_null_grid
FROM results
WHERE grid IS NULL
  AND points > 0`,
		},

		// Block C
		{
			Block:    "C",
			ID:       "C1",
			Title:    "Year and name of races with duplicate rows",
			Question: "Which seasons do the duplicated races belong to?",
			Interpretation: "Years from " + fmt.Sprint(cfg.Duplicates.SprintStartYear) + " on → sprint weekends; the sprint rule should explain them.\n" +
				"Years before " + fmt.Sprint(cfg.Duplicates.SharedDriveCutoffYear) + " → shared drives and dual entries of the early championship.\n" +
				"raceId is not chronological, so only year and round order these rows.",
			SQL: `
SELECT
    ra.raceId,
    ra.year,
    ra.round,
    ra.name,
    COUNT(DISTINCT r.driverId) AS distinct_drivers,
    COUNT(*) AS total_rows,
    COUNT(*) - COUNT(DISTINCT r.driverId) AS duplicate_rows
FROM results r
JOIN races ra ON r.raceId = ra.raceId
WHERE ra.raceId IN (` + duplicateRaces + `)
GROUP BY ra.raceId, ra.year, ra.round, ra.name
ORDER BY ra.year, ra.round`,
		},
		{
			Block:    "C",
			ID:       "C2",
			Title:    "Full detail on the race with the most duplicate rows",
			Question: "What exactly differs between the duplicate rows of this race?",
			Interpretation: "Different constructorId across rows → dual-constructor entry.\n" +
				"Different laps across rows → shared drive or sprint + main race.\n" +
				"Identical across all columns → true duplicate, data error.",
			SQL: `
SELECT
    r.resultId,
    r.driverId,
    ` + fullName + ` AS full_name,
    r.constructorId,
    c.name AS constructor,
    r.grid,
    r.position,
    r.laps,
    r.points,
    s.status,
    r.positionText
FROM results r
LEFT JOIN drivers d ON r.driverId = d.driverId
LEFT JOIN constructors c ON r.constructorId = c.constructorId
LEFT JOIN status s ON r.statusId = s.statusId
WHERE r.raceId = (` + worstDuplicateRace + `)
ORDER BY r.driverId, r.resultId`,
			Limit: 60,
		},
		{
			Block:    "C",
			ID:       "C3",
			Title:    "Rule inputs for every duplicate pair",
			Question: "For each duplicate pair, do rows differ by constructor, laps, or neither?",
			Interpretation: "distinct_constructors > 1 → dual-constructor entry.\n" +
				"laps_difference > 0 → shared drive or sprint vs main race.\n" +
				"Both 0 → identical rows, genuine data corruption.",
			SQL: `
SELECT
    ra.year,
    ra.round,
    ra.name AS race_name,
    r.raceId,
    r.driverId,
    ` + fullName + ` AS full_name,
    COUNT(*) AS occurrences,
    COUNT(DISTINCT r.constructorId) AS distinct_constructors,
    MAX(r.laps) - MIN(r.laps) AS laps_difference,
    MAX(r.points) AS max_points,
    GROUP_CONCAT(c.name, ' / ') AS constructors,
    GROUP_CONCAT(r.laps, ' / ') AS laps_values,
    GROUP_CONCAT(s.status, ' / ') AS statuses
FROM results r
LEFT JOIN races ra ON r.raceId = ra.raceId
LEFT JOIN drivers d ON r.driverId = d.driverId
LEFT JOIN constructors c ON r.constructorId = c.constructorId
LEFT JOIN status s ON r.statusId = s.statusId
GROUP BY r.raceId, r.driverId
HAVING COUNT(*) > 1
ORDER BY ra.year, ra.round, r.raceId, r.driverId`,
			Limit: 100,
		},
		{
			Block:    "C",
			ID:       "C4",
			Title:    "Circuit info for duplicate races",
			Question: "Are the duplicate races held at circuits that could explain dual entries?",
			Interpretation: "Indianapolis → the Indy 500 counted as a championship round 1950-1960 and carries dual entries.\n" +
				"Other circuits → check the sprint calendar or historic shared drives.",
			SQL: `
SELECT
    ra.raceId,
    ra.year,
    ra.round,
    ra.name AS race_name,
    ci.name AS circuit_name,
    ci.location,
    ci.country
FROM races ra
JOIN circuits ci ON ra.circuitId = ci.circuitId
WHERE ra.raceId IN (` + duplicateRaces + `)
ORDER BY ra.year, ra.round`,
		},

		// Block D
		{
			Block:    "D",
			ID:       "D1",
			Title:    "All laps over the corrupt threshold with context",
			Question: "Show every corrupt lap with race, driver, lap number and ratio to the driver's own average.",
			Interpretation: "ratio_to_own_avg > 6 in an old race → likely corrupt early timing data.\n" +
				"ratio_to_own_avg 3-6 in a recent race → probable red-flag suspension with the clock running.",
			SQL: `
SELECT
    ra.year,
    ra.round,
    ra.name AS race_name,
    lt.raceId,
    lt.driverId,
    ` + fullName + ` AS full_name,
    lt.lap,
    ROUND(lt.lap_time_ms / 1000.0, 1) AS lap_time_seconds,
    lt.position AS track_position,
    ROUND(
        lt.lap_time_ms / NULLIF((
            SELECT AVG(lt2.lap_time_ms)
            FROM lap_times lt2
            WHERE lt2.raceId = lt.raceId
              AND lt2.driverId = lt.driverId
              AND lt2.lap_time_ms < ` + warn + `
        ), 0),
        1
    ) AS ratio_to_own_avg
FROM lap_times lt
LEFT JOIN races ra ON lt.raceId = ra.raceId
LEFT JOIN drivers d ON lt.driverId = d.driverId
WHERE lt.lap_time_ms > ` + corrupt + `
ORDER BY lt.lap_time_ms DESC`,
		},
		{
			Block:    "D",
			ID:       "D2",
			Title:    "Drivers affected on the same lap number",
			Question: "Was the slow lap isolated to one driver or did the whole field slow down?",
			Interpretation: "drivers_affected > 3 on one lap → red flag or safety car period, a real event.\n" +
				"drivers_affected = 1 → isolated to one driver, more likely corrupt timing.",
			SQL: `
SELECT
    ra.year,
    ra.round,
    ra.name AS race_name,
    lt.raceId,
    lt.lap AS lap_number,
    COUNT(*) AS drivers_affected,
    ROUND(MIN(lt.lap_time_ms) / 1000.0, 1) AS min_s,
    ROUND(MAX(lt.lap_time_ms) / 1000.0, 1) AS max_s
FROM lap_times lt
LEFT JOIN races ra ON lt.raceId = ra.raceId
WHERE lt.lap_time_ms > ` + corrupt + `
GROUP BY lt.raceId, lt.lap
ORDER BY drivers_affected DESC, ra.year, ra.round`,
		},
		{
			Block:    "D",
			ID:       "D3",
			Title:    "All driver lap times around the slowest lap (±2 laps)",
			Question: "Was the slowest lap isolated or did several drivers slow on that lap?",
			Interpretation: "Several drivers with very high times on the same lap → red flag event.\n" +
				"Only one driver with a high time → corrupt data point for that driver.",
			SQL: `
WITH worst AS (` + worstLap + `)
SELECT
    lt.raceId,
    lt.lap,
    lt.driverId,
    ` + fullName + ` AS full_name,
    ROUND(lt.lap_time_ms / 1000.0, 1) AS lap_time_seconds,
    lt.position
FROM lap_times lt
JOIN worst w ON lt.raceId = w.raceId
LEFT JOIN drivers d ON lt.driverId = d.driverId
WHERE lt.lap BETWEEN w.lap - 2 AND w.lap + 2
ORDER BY lt.lap, lt.lap_time_ms DESC`,
			Limit: 50,
		},
		{
			Block:    "D",
			ID:       "D4",
			Title:    "Lap time distribution of the race holding the slowest lap",
			Question: "What is the normal pace of this race, to put the outlier in context?",
			Interpretation: "An average near 90s with a maximum many times higher is either a long red flag " +
				"or corrupt data. D3 tells which.",
			SQL: `
SELECT
    raceId,
    ROUND(MIN(lap_time_ms) / 1000.0, 1) AS min_s,
    ROUND(AVG(lap_time_ms) / 1000.0, 1) AS avg_s,
    ROUND(MAX(lap_time_ms) / 1000.0, 1) AS max_s,
    COUNT(*) AS total_laps,
    SUM(CASE WHEN lap_time_ms > ` + warn + ` AND lap_time_ms <= ` + corrupt + `
             THEN 1 ELSE 0 END) AS sc_vsc_laps,
    SUM(CASE WHEN lap_time_ms > ` + corrupt + `
             THEN 1 ELSE 0 END) AS over_corrupt_threshold
FROM lap_times
WHERE raceId = (SELECT raceId FROM (` + worstLap + `))
GROUP BY raceId`,
		},

		// Block E
		{
			Block:    "E",
			ID:       "E1",
			Title:    "Status labels the classifier leaves unclassified",
			Question: "Which status labels are falling through the classifier?",
			Interpretation: "positionText in (R, D, E, W, F, N) and no position → clearly a DNF, " +
				"**rule issue** (missing keyword or override).\n" +
				"Filled position or points > 0 → the driver finished; check whether the label is correct.",
			SQL: `
SELECT
    s.status,
    COUNT(*) AS occurrences,
    GROUP_CONCAT(DISTINCT r.positionText) AS position_texts,
    SUM(CASE WHEN r.position IS NOT NULL THEN 1 ELSE 0 END) AS rows_with_position,
    SUM(CASE WHEN r.points > 0 THEN 1 ELSE 0 END) AS rows_with_points
FROM results r
JOIN status s ON r.statusId = s.statusId
GROUP BY s.status
ORDER BY occurrences DESC, s.status`,
			Transform: unclassifiedOnly(classifier),
		},
		{
			Block:    "E",
			ID:       "E2",
			Title:    "Encoding check on Excluded / Disqualified labels",
			Question: "Is a label failing to match because of whitespace or encoding?",
			Interpretation: "label_length above the visible length, or first_3_bytes_hex other than the expected " +
				"letters → hidden characters, **data issue** in the status table.\n" +
				"Normal lengths → the label is matched as configured.",
			SQL: `
SELECT
    s.statusId,
    s.status,
    LENGTH(s.status) AS label_length,
    HEX(SUBSTR(s.status, 1, 3)) AS first_3_bytes_hex,
    COUNT(r.resultId) AS result_count
FROM status s
LEFT JOIN results r ON s.statusId = r.statusId
WHERE LOWER(s.status) LIKE '%exclu%'
   OR LOWER(s.status) LIKE '%disqual%'
GROUP BY s.statusId, s.status
ORDER BY s.statusId`,
		},
		{
			Block:    "E",
			ID:       "E3",
			Title:    "Classifier outcome per status label",
			Question: "How does the configured classifier treat each label in use?",
			Interpretation: "'Unclassified' labels that are really retirements need a keyword or override.\n" +
				"'Unclassified' labels such as Not classified or 107% Rule are intentionally left out of both groups.",
			SQL: `
SELECT
    s.status,
    COUNT(*) AS count
FROM results r
JOIN status s ON r.statusId = s.statusId
GROUP BY s.status
ORDER BY count DESC, s.status`,
			Transform: withClassification(classifier),
		},

		// Block F
		{
			Block:    "F",
			ID:       "F1",
			Title:    "Sample of null q1_ms qualifying rows",
			Question: "Are these DNS entries, DQ entries, or data gaps?",
			Interpretation: "race_status 'Did not qualify' / 'Did not prequalify' → no time was set, null is correct.\n" +
				"race_status 'Finished' with null q1 → genuine data gap.",
			SQL: `
SELECT
    ra.year,
    ra.round,
    ra.name AS race_name,
    q.raceId,
    q.driverId,
    ` + fullName + ` AS full_name,
    q.position AS quali_position,
    q.q1_ms,
    q.q2_ms,
    q.q3_ms,
    s.status AS race_status,
    r.grid,
    r.laps AS race_laps
FROM qualifying q
LEFT JOIN races ra ON q.raceId = ra.raceId
LEFT JOIN drivers d ON q.driverId = d.driverId
LEFT JOIN results r ON q.raceId = r.raceId AND q.driverId = r.driverId
LEFT JOIN status s ON r.statusId = s.statusId
WHERE q.q1_ms IS NULL
ORDER BY ra.year, ra.round, q.position
LIMIT 30`,
		},
		{
			Block:    "F",
			ID:       "F2",
			Title:    "Year distribution of null q1_ms",
			Question: "Are null qualifying times concentrated in a specific era?",
			Interpretation: "All before 2006 → expected, the qualifying format was different.\n" +
				"Later entries present → gaps in modern qualifying records.",
			SQL: `
SELECT
    ra.year,
    COUNT(*) AS null_q1_count
FROM qualifying q
JOIN races ra ON q.raceId = ra.raceId
WHERE q.q1_ms IS NULL
GROUP BY ra.year
ORDER BY ra.year`,
		},

		// Block G
		{
			Block:    "G",
			ID:       "G1",
			Title:    "Year breakdown of null pit durations",
			Question: "Are null pit durations an early timing gap or spread across all years?",
			Interpretation: "Concentrated in 2011-2012 → early pit stop data collection had gaps, expected.\n" +
				"Spread across many years → systematic issue worth investigating.",
			SQL: `
SELECT
    ra.year,
    COUNT(*) AS null_duration_count,
    COUNT(DISTINCT p.raceId) AS races_affected
FROM pit_stops p
JOIN races ra ON p.raceId = ra.raceId
WHERE p.pit_duration_ms IS NULL
GROUP BY ra.year
ORDER BY ra.year`,
		},
		{
			Block:    "G",
			ID:       "G2",
			Title:    "Races most affected by null pit durations",
			Question: "Are nulls from whole-race feed failures or random individual stops?",
			Interpretation: "null_duration_stops ≈ total_stops_in_race → the whole race had no timing data.\n" +
				"null_duration_stops far below total → individual stops missing, random gaps.",
			SQL: `
SELECT
    ra.year,
    ra.round,
    ra.name AS race_name,
    p.raceId,
    COUNT(*) AS null_duration_stops,
    (SELECT COUNT(*) FROM pit_stops p2 WHERE p2.raceId = p.raceId) AS total_stops_in_race,
    ROUND(
        100.0 * COUNT(*) /
        (SELECT COUNT(*) FROM pit_stops p2 WHERE p2.raceId = p.raceId),
        1
    ) AS pct_null
FROM pit_stops p
LEFT JOIN races ra ON p.raceId = ra.raceId
WHERE p.pit_duration_ms IS NULL
GROUP BY p.raceId, ra.year, ra.round, ra.name
ORDER BY null_duration_stops DESC
LIMIT 20`,
		},
	}
}

// unclassifiedOnly keeps rows whose first column is a label the classifier cannot place
func unclassifiedOnly(c *quality.StatusClassifier) func(*store.Rows) *store.Rows {
	return func(rows *store.Rows) *store.Rows {
		out := &store.Rows{Columns: rows.Columns}
		for _, row := range rows.Values {
			label, _ := row[0].(string)
			if c.Classify(label).Category == rules.CategoryUnclassified {
				out.Values = append(out.Values, row)
			}
		}
		return out
	}
}

// withClassification appends category and cause columns for the label in the first column
func withClassification(c *quality.StatusClassifier) func(*store.Rows) *store.Rows {
	return func(rows *store.Rows) *store.Rows {
		out := &store.Rows{Columns: append(append([]string{}, rows.Columns...), "category", "cause")}
		for _, row := range rows.Values {
			label, _ := row[0].(string)
			cl := c.Classify(label)
			var cause any
			if cl.Cause != "" {
				cause = cl.Cause
			}
			out.Values = append(out.Values, append(append([]any{}, row...), cl.Category, cause))
		}
		return out
	}
}

// BlockIDs returns the distinct blocks of queries in first-seen order
func BlockIDs(queries []Query) []string {
	var out []string
	for _, q := range queries {
		if len(out) == 0 || out[len(out)-1] != q.Block {
			out = append(out, q.Block)
		}
	}
	return out
}

// Select keeps queries whose block or id is listed; an empty filter keeps everything
func Select(queries []Query, filter []string) []Query {
	if len(filter) == 0 {
		return queries
	}
	want := make(map[string]bool, len(filter))
	for _, f := range filter {
		want[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	var out []Query
	for _, q := range queries {
		if want[q.Block] || want[q.ID] {
			out = append(out, q)
		}
	}
	return out
}
