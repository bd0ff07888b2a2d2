package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/internal/rules"
)

// relation builds a relation from string cells; "" is a null cell
func relation(t *testing.T, name string, columns []string, rows ...[]string) *contracts.Relation {
	t.Helper()
	rel := contracts.NewRelation(name, columns)
	for _, r := range rows {
		row := make([]contracts.Value, len(r))
		for i, raw := range r {
			if raw == "" {
				row[i] = contracts.NullValue()
			} else {
				row[i] = contracts.V(raw)
			}
		}
		require.NoError(t, rel.Append(row))
	}
	return rel
}

func dataset(rels ...*contracts.Relation) *contracts.Dataset {
	ds := contracts.NewDataset()
	for _, r := range rels {
		ds.Add(r)
	}
	return ds
}

func defaultRules(t *testing.T) *rules.Config {
	t.Helper()
	cfg, _, err := rules.Default()
	require.NoError(t, err)
	return cfg
}

// cleanDataset is a small, fully consistent dataset that passes every default check
func cleanDataset(t *testing.T) *contracts.Dataset {
	t.Helper()
	return dataset(
		relation(t, "circuits", []string{"circuitId", "circuitRef", "name"},
			[]string{"1", "albert_park", "Albert Park"},
			[]string{"14", "monza", "Monza"},
		),
		relation(t, "drivers", []string{"driverId", "driverRef", "forename", "surname", "nationality", "code"},
			[]string{"1", "hamilton", "Lewis", "Hamilton", "British", "HAM"},
			[]string{"427", "fangio", "Juan", "Fangio", "Argentine", ""},
		),
		relation(t, "constructors", []string{"constructorId", "constructorRef", "name", "nationality"},
			[]string{"1", "mclaren", "McLaren", "British"},
			[]string{"6", "ferrari", "Ferrari", "Italian"},
		),
		relation(t, "races", []string{"raceId", "year", "round", "circuitId", "name", "date"},
			[]string{"1", "2009", "1", "1", "Australian Grand Prix", "2009-03-29"},
			[]string{"792", "1956", "8", "14", "Italian Grand Prix", "1956-09-02"},
		),
		relation(t, "results", []string{"resultId", "raceId", "driverId", "constructorId", "statusId", "grid", "position", "points", "laps", "is_dnf"},
			[]string{"1", "1", "1", "1", "1", "1", "1", "10", "58", "0"},
			[]string{"2", "792", "427", "6", "3", "2", "2", "0", "30", "1"},
		),
		relation(t, "qualifying", []string{"qualifyId", "raceId", "driverId", "q1_ms", "q2_ms", "q3_ms"},
			[]string{"1", "1", "1", "85000", "84500", "84000"},
		),
		relation(t, "pit_stops", []string{"raceId", "driverId", "stop", "lap", "pit_duration_ms"},
			[]string{"1", "1", "1", "20", "22500"},
		),
		relation(t, "lap_times", []string{"raceId", "driverId", "lap", "position", "lap_time_ms"},
			[]string{"1", "1", "1", "1", "90600"},
			[]string{"1", "1", "2", "1", "89400"},
			[]string{"792", "427", "1", "2", "155400"},
		),
		relation(t, "status", []string{"statusId", "status"},
			[]string{"1", "Finished"},
			[]string{"3", "Engine"},
			[]string{"11", "+1 Lap"},
		),
	)
}
