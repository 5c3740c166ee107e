package speechtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules_Order(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules)

	for i := 1; i < len(rules); i++ {
		assert.LessOrEqual(t, int(rules[i-1].Stage), int(rules[i].Stage),
			"rule %q runs after %q", rules[i].Name, rules[i-1].Name)
	}

	last := rules[len(rules)-1]
	assert.Equal(t, StageWhitespace, last.Stage)
	assert.Equal(t, "trim", last.Name)
}

func TestDefaultRules_Coverage(t *testing.T) {
	rules := DefaultRules()

	counts := map[Stage]int{
		StageExponents:  3,
		StageSubscripts: 3,
		StageFractions:  2,
		StageIntegrals:  2,
		StageSummations: 2,
		StageGreek:      15,
		StageFunctions:  6,
		StageOperators:  5,
		StageRelations:  5,
		StageArrows:     3,
		StageSets:       7,
		StageLimits:     2,
		StageDelimiters: 4,
		StageWhitespace: 2,
	}
	for stage, want := range counts {
		assert.Len(t, rules.Stage(stage), want, "stage %s", stage)
	}
}

func TestDefaultRules_CopyIsIndependent(t *testing.T) {
	rules := DefaultRules()
	rules[0].Replacement = "broken"

	assert.Equal(t, "x to the power of 2", ConvertLatexToSpeech("x^2"))
}

func TestFractionOverRuleIsSuperseded(t *testing.T) {
	fractions := DefaultRules().Stage(StageFractions)
	require.Len(t, fractions, 2)

	assert.False(t, fractions[0].Superseded)
	assert.True(t, fractions[1].Superseded)

	// On its own the superseded rule still works...
	assert.Equal(t, "a over b", fractions[1].Apply(`\frac{a}{b}`))
	// ...but in table order "divided by" always wins.
	assert.Equal(t, "(a) divided by (b)", fractions.Apply(`\frac{a}{b}`))
}

func TestRuleSet_Stage(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		stage Stage
		in    string
		want  string
	}{
		{StageExponents, "x^2 + y^{ab}", "x to the power of 2 + y to the power of ab"},
		{StageSubscripts, "a_1 + b_{k}", "a sub 1 + b sub k"},
		{StageIntegrals, `\int_a^b`, "integral from a to b"},
		{StageSummations, `\sum_i^n`, "sum from i to n"},
		{StageGreek, `\theta\lambda`, "thetalambda"},
		{StageRelations, `a \neq b`, "a not equal to b"},
		{StageLimits, `\infty`, "infinity"},
		{StageWhitespace, "  a  b  ", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Stage(tt.stage).Apply(tt.in))
		})
	}
}

func TestRuleSet_Through(t *testing.T) {
	rules := DefaultRules()

	// Stopping after the subscripts stage leaves commands untouched and
	// whitespace as inserted.
	assert.Equal(t, `\int sub a to the b`, rules.Through(StageSubscripts).Apply(`\int_a^b`))

	// In full table order the exponent and subscript rules consume the
	// bounds before the bounded integral rule is reached.
	assert.Equal(t, "integral sub a to the b", rules.Apply(`\int_a^b`))
}

func TestElementOfDoesNotConsumeInfinity(t *testing.T) {
	sets := DefaultRules().Stage(StageSets)
	assert.Equal(t, `\infty`, sets.Apply(`\infty`))
	assert.Equal(t, "infinity", ConvertLatexToSpeech(`\infty`))
}

func TestRepeatedRuleCatchesAdjacentMatches(t *testing.T) {
	sets := DefaultRules().Stage(StageSets)
	assert.Equal(t, "is an element ofis an element of S", sets.Apply(`\in\in S`))
	assert.Equal(t, `is an element of\infty`, sets.Apply(`\in\infty`))

	once := rule(StageSets, "in", `\\in([^A-Za-z]|$)`, "is an element of${1}")
	assert.Equal(t, `is an element of\in S`, once.Apply(`\in\in S`))
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "exponents", StageExponents.String())
	assert.Equal(t, "whitespace", StageWhitespace.String())
	assert.Equal(t, "unknown", Stage(99).String())
}
