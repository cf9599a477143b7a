package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/pkg/errors"
)

func TestValidateAcceptsGoodRules(t *testing.T) {
	rules := []Rule{
		{Filter: Filter{Events: []string{"BREAKS", "fixed"}, Function: "test.yes"}, Actions: []string{"mailto:a@example.com"}},
		{Filter: Filter{Function: "test.pipeline_is", Args: []interface{}{"p1"}}, Actions: []string{"slack:#ci"}},
	}

	assert.Empty(t, Validate(rules, testRegistry()))
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	rules := []Rule{
		{Name: "unknown-ns", Filter: Filter{Function: "nope.fn"}, Actions: []string{"mailto:a@example.com"}},
		{Name: "bad-args", Filter: Filter{Function: "test.pipeline_is"}, Actions: []string{"mailto:a@example.com"}},
		{Name: "bad-event", Filter: Filter{Events: []string{"EXPLODES"}, Function: "test.yes"}, Actions: []string{"mailto:a@example.com"}},
		{Name: "no-actions", Filter: Filter{Function: "test.yes"}},
		{Name: "no-function", Actions: []string{"mailto:a@example.com"}},
	}

	errs := Validate(rules, testRegistry())

	require.Len(t, errs, 5)
	for i, e := range errs {
		assert.Equal(t, i, e.Index)
		assert.True(t, errors.IsConfiguration(e), e.Error())
	}
	assert.Contains(t, errs[2].Error(), "EXPLODES")
}

func TestNormalizeEvents(t *testing.T) {
	rules := NormalizeEvents([]Rule{
		{Filter: Filter{Events: []string{"breaks", " Fixed "}}},
		{Filter: Filter{}},
	})

	assert.Equal(t, []string{"BREAKS", "FIXED"}, rules[0].Filter.Events)
	assert.Nil(t, rules[1].Filter.Events)
}

func TestRuleLabel(t *testing.T) {
	assert.Equal(t, "n", Rule{Name: "n", Owner: "o"}.Label())
	assert.Equal(t, "o", Rule{Owner: "o"}.Label())
	assert.Equal(t, "test.yes", Rule{Filter: Filter{Function: "test.yes"}}.Label())
}
