package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/f1dq/internal/rules"
)

func TestMatchesWordPrefix(t *testing.T) {
	tests := []struct {
		label, kw string
		want      bool
	}{
		{"oil leak", "oil", true},
		{"spoiler", "oil", false},
		{"oil pressure", "oil", true},
		{"broken oil line", "oil", true},
		{"fuel pump", "fuel", true},
		{"refuelling", "fuel", false},
		{"ers", "ers", true},
		{"drivers ill", "ers", false},
		{"rear wing", "rear wing", true},
		{"engine", "", false},
		{"spoiler oil", "oil", true},
	}

	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.kw, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesWordPrefix(tt.label, tt.kw))
		})
	}
}

func TestStatusClassifier_Classify(t *testing.T) {
	c := NewStatusClassifier(defaultRules(t).Status)

	tests := []struct {
		label    string
		category string
		cause    string
	}{
		{"Finished", rules.CategoryFinished, ""},
		{"+1 Lap", rules.CategoryFinished, ""},
		{"+12 Laps", rules.CategoryFinished, ""},
		{"  +2   Laps ", rules.CategoryFinished, ""},
		{"Engine", rules.CategoryDNF, CauseMechanical},
		{"Oil leak", rules.CategoryDNF, CauseMechanical},
		{"Rear wing", rules.CategoryDNF, CauseMechanical},
		{"Accident", rules.CategoryDNF, CauseCrash},
		{"Collision damage", rules.CategoryDNF, CauseCrash},
		{"Spun off", rules.CategoryDNF, CauseCrash},
		{"Retired", rules.CategoryDNF, CauseOther},
		{"Disqualified", rules.CategoryDNF, CauseOther},
		{"Did not qualify", rules.CategoryDNF, CauseOther},
		{"Excluded", rules.CategoryDNF, CauseOther},
		{"Not classified", rules.CategoryUnclassified, ""},
		{"107% Rule", rules.CategoryUnclassified, ""},
		{"Launch control", rules.CategoryUnclassified, ""},
		{"", rules.CategoryUnclassified, ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := c.Classify(tt.label)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.cause, got.Cause)
		})
	}
}

func TestStatusClassifier_OverrideWins(t *testing.T) {
	cfg := defaultRules(t).Status
	cfg.Overrides = map[string]string{"Engine": rules.CategoryUnclassified}
	c := NewStatusClassifier(cfg)

	assert.Equal(t, rules.CategoryUnclassified, c.Classify("engine").Category)
	assert.True(t, c.IsPositionException("NOT CLASSIFIED"))
	assert.False(t, c.IsPositionException("Engine"))
}

func TestCheckStatus(t *testing.T) {
	status := relation(t, "status", []string{"statusId", "status"},
		[]string{"1", "Finished"},
		[]string{"3", "Engine"},
		[]string{"4", "Collision"},
		[]string{"11", "+1 Lap"},
		[]string{"62", "Not classified"},
		[]string{"90", "Launch control"},
	)
	results := relation(t, "results", []string{"resultId", "statusId", "position", "is_dnf"},
		[]string{"1", "1", "1", "0"},
		[]string{"2", "11", "2", "0"},
		[]string{"3", "3", "", "1"},
		[]string{"4", "3.0", "", "1"},
		[]string{"5", "4", "", "0"},  // classifier DNF, flag not set, null position
		[]string{"6", "62", "", "0"}, // documented exception
		[]string{"7", "90", "", "1"}, // flagged, classifier Unclassified
		[]string{"8", "1", "3", ""},  // unknown flag
	)

	report := CheckStatus(dataset(results, status), defaultRules(t).Status)

	assert.True(t, report.Passed)
	assert.Equal(t, 8, report.TotalRows)
	assert.Equal(t, 8, report.Mapped)
	assert.Equal(t, 3, report.Finished)
	assert.Equal(t, 3, report.DNF)
	assert.Equal(t, 2, report.Unclassified)

	assert.Equal(t, []LabelCount{
		{Label: CauseMechanical, Count: 2},
		{Label: CauseCrash, Count: 1},
		{Label: CauseOther, Count: 0},
	}, report.DNFByCause)
	require.NotEmpty(t, report.TopDNFCauses)
	assert.Equal(t, LabelCount{Label: "Engine", Count: 2, Cause: CauseMechanical}, report.TopDNFCauses[0])
	assert.Equal(t, []LabelCount{{Label: "Finished", Count: 2}, {Label: "+1 Lap", Count: 1}}, report.FinishedLabels)
	assert.Equal(t, []LabelCount{{Label: "Launch control", Count: 1}, {Label: "Not classified", Count: 1}}, report.UnclassifiedLabels)

	require.NotNil(t, report.CrossCheck)
	cc := report.CrossCheck
	assert.Equal(t, 3, cc.ClassifierDNF)
	assert.Equal(t, 3, cc.FlagDNF)
	assert.Equal(t, 0, cc.Delta)
	assert.Equal(t, 1, cc.FlaggedNotClassified)
	assert.Equal(t, 1, cc.ClassifiedNotFlagged)
	assert.Equal(t, 1, cc.UnknownFlag)

	require.NotNil(t, report.Position)
	pc := report.Position
	assert.Equal(t, 3, pc.NullPositionDNF)
	assert.Equal(t, 2, pc.NullPositionNotDNF)
	assert.Equal(t, 1, pc.Explained)
	assert.Equal(t, 1, pc.Unexplained)
	assert.Equal(t, []LabelCount{{Label: "Collision", Count: 1}}, pc.UnexplainedLabels)
	assert.Equal(t, 0, pc.PositionDNF)
	assert.Equal(t, 2, pc.PositionNotDNF)
}

func TestCheckStatus_Unmapped(t *testing.T) {
	status := relation(t, "status", []string{"statusId", "status"}, []string{"1", "Finished"})
	results := relation(t, "results", []string{"resultId", "statusId"},
		[]string{"1", "1"},
		[]string{"2", "999"},
		[]string{"3", ""},
	)

	report := CheckStatus(dataset(results, status), defaultRules(t).Status)
	assert.False(t, report.Passed)
	assert.Equal(t, 2, report.Unmapped)
	assert.Equal(t, 1, report.NullStatusIDs)
	assert.Equal(t, []string{"999"}, report.UnmappedSample)
	assert.Equal(t, "1 result rows have a null statusId", report.Note)
	assert.Nil(t, report.CrossCheck, "no is_dnf column")
	assert.Nil(t, report.Position)
}

func TestCheckStatus_MissingTables(t *testing.T) {
	report := CheckStatus(dataset(), defaultRules(t).Status)
	assert.False(t, report.Passed)
	assert.Equal(t, "status table not loaded", report.Note)
}

func TestCheckStatus_CleanDatasetPasses(t *testing.T) {
	report := CheckStatus(cleanDataset(t), defaultRules(t).Status)
	assert.True(t, report.Passed)
	assert.Equal(t, 1, report.Finished)
	assert.Equal(t, 1, report.DNF)
	assert.Equal(t, 0, report.CrossCheck.Delta)
}
