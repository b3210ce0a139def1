package penalty_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/pkg/penalty"
)

func TestParseRules(t *testing.T) {
	doc := []byte(`
- week: 3
  assignment: W3 PA
  penalty:
    - days-late: 1
      frac-deduction: 0.1
    - days-late: 3
      frac-deduction: 0.3
- week: 4
  student: jdoe3
- week: 5
  penalty: []
`)
	rules, err := penalty.ParseRules(doc, "rules.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.True(t, rules[0].HasPenalty)
	assert.Len(t, rules[0].Penalty, 2)
	assert.Equal(t, 0.1, rules[0].Penalty[0].FracDeduction)

	assert.False(t, rules[1].HasPenalty, "absent penalty key is a waiver")
	assert.Equal(t, "jdoe3", rules[1].Student)

	assert.True(t, rules[2].HasPenalty, "empty list is not a waiver")
	assert.Empty(t, rules[2].Penalty)
}

func TestParseRulesRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing week", "- student: jdoe3\n"},
		{"negative days-late", "- week: 3\n  penalty:\n    - days-late: -1\n      frac-deduction: 0.1\n"},
		{"deduction above one", "- week: 3\n  penalty:\n    - days-late: 1\n      frac-deduction: 1.5\n"},
		{"not yaml", ": : :\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := penalty.ParseRules([]byte(tt.doc), "rules.yaml")
			assert.Error(t, err)
		})
	}
}

func TestEvaluateAppliesDeduction(t *testing.T) {
	rules := []penalty.Rule{
		{
			Week:       3,
			HasPenalty: true,
			Penalty: []penalty.Step{
				{DaysLate: 1, FracDeduction: 0.1},
				{DaysLate: 3, FracDeduction: 0.3},
			},
		},
	}

	rec := penalty.Record{Week: 3, Score: 80, DaysLate: 0.5}
	score, out := penalty.Evaluate(rec, rules)
	assert.InDelta(t, 72.0, score, 1e-9)
	assert.True(t, out.Matched)
	assert.Equal(t, 0.1, out.FracDeduction)
}

func TestEvaluateStepBoundaryIsInclusive(t *testing.T) {
	rules := []penalty.Rule{
		{
			Week:       3,
			HasPenalty: true,
			Penalty: []penalty.Step{
				{DaysLate: 1, FracDeduction: 0.1},
				{DaysLate: 3, FracDeduction: 0.3},
			},
		},
	}

	score, out := penalty.Evaluate(penalty.Record{Week: 3, Score: 100, DaysLate: 1}, rules)
	assert.InDelta(t, 90.0, score, 1e-9)
	assert.Equal(t, 0.1, out.FracDeduction)

	score, out = penalty.Evaluate(penalty.Record{Week: 3, Score: 100, DaysLate: 1.1}, rules)
	assert.InDelta(t, 70.0, score, 1e-9)
	assert.Equal(t, 0.3, out.FracDeduction)
}

func TestEvaluateBeyondLastStepKeepsScore(t *testing.T) {
	rules := []penalty.Rule{
		{Week: 3, HasPenalty: true, Penalty: []penalty.Step{{DaysLate: 1, FracDeduction: 0.1}}},
	}

	// A rule whose steps all fall short of the lateness decides nothing.
	score, out := penalty.Evaluate(penalty.Record{Week: 3, Score: 100, DaysLate: 10}, rules)
	assert.Equal(t, 100.0, score)
	assert.False(t, out.Matched)
	assert.Equal(t, 0.0, out.FracDeduction)
}

func TestEvaluateUncoveredLatenessFallsThrough(t *testing.T) {
	rules := []penalty.Rule{
		{Week: 1, Assignment: "PA", HasPenalty: true, Penalty: []penalty.Step{
			{DaysLate: 1, FracDeduction: 0.1},
			{DaysLate: 2, FracDeduction: 0.2},
		}},
		{Week: 1, Assignment: "PA"}, // waiver
	}

	// Five days late is beyond every step of the first rule, so the
	// later waiver for the same scope still fires.
	score, out := penalty.Evaluate(penalty.Record{Week: 1, Assignment: "PA", Score: 80, DaysLate: 5}, rules)
	assert.Equal(t, 80.0, score)
	assert.True(t, out.Matched)
	assert.Contains(t, out.Rule, "no penalty")

	// Within the covered range the first rule still wins.
	score, out = penalty.Evaluate(penalty.Record{Week: 1, Assignment: "PA", Score: 80, DaysLate: 1.5}, rules)
	assert.InDelta(t, 64.0, score, 1e-9)
	assert.NotContains(t, out.Rule, "no penalty")
}

func TestEvaluateFirstRuleInFileOrderWins(t *testing.T) {
	// The broad rule precedes the specific one; file order wins even
	// though the second rule is more specific.
	rules := []penalty.Rule{
		{Week: 3, HasPenalty: true, Penalty: []penalty.Step{{DaysLate: 99, FracDeduction: 0.5}}},
		{Week: 3, Student: "jdoe3", HasPenalty: true, Penalty: []penalty.Step{{DaysLate: 99, FracDeduction: 0.1}}},
	}

	rec := penalty.Record{Week: 3, Student: "jdoe3", Score: 100, DaysLate: 2}
	score, out := penalty.Evaluate(rec, rules)
	assert.InDelta(t, 50.0, score, 1e-9)
	assert.Equal(t, 0.5, out.FracDeduction)
	assert.NotContains(t, out.Rule, "jdoe3")
}

func TestEvaluateWaiverShortCircuits(t *testing.T) {
	rules := []penalty.Rule{
		{Week: 3, Student: "jdoe3"}, // waiver
		{Week: 3, HasPenalty: true, Penalty: []penalty.Step{{DaysLate: 99, FracDeduction: 0.5}}},
	}

	rec := penalty.Record{Week: 3, Student: "JDoe3", Score: 100, DaysLate: 5}
	score, out := penalty.Evaluate(rec, rules)
	assert.Equal(t, 100.0, score)
	assert.True(t, out.Matched)
	assert.Contains(t, out.Rule, "no penalty")
}

func TestEvaluateScopeFilters(t *testing.T) {
	rules := []penalty.Rule{
		{Week: 3, Assignment: "W3 PA", HasPenalty: true, Penalty: []penalty.Step{{DaysLate: 99, FracDeduction: 0.5}}},
	}

	// Different week
	score, out := penalty.Evaluate(penalty.Record{Week: 4, Assignment: "W3 PA", Score: 100, DaysLate: 1}, rules)
	assert.Equal(t, 100.0, score)
	assert.False(t, out.Matched)

	// Different assignment
	score, out = penalty.Evaluate(penalty.Record{Week: 3, Assignment: "W3 IL", Score: 100, DaysLate: 1}, rules)
	assert.Equal(t, 100.0, score)
	assert.False(t, out.Matched)

	// Assignment comparison is case-insensitive
	score, _ = penalty.Evaluate(penalty.Record{Week: 3, Assignment: "w3 pa", Score: 100, DaysLate: 1}, rules)
	assert.InDelta(t, 50.0, score, 1e-9)
}
