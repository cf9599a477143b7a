package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/models"
)

func constNamespace() Namespace {
	return Namespace{
		"yes": func(args []interface{}) (Predicate, error) {
			return func(context.Context, *models.Message) (bool, error) { return true, nil }, nil
		},
		"no": func(args []interface{}) (Predicate, error) {
			return func(context.Context, *models.Message) (bool, error) { return false, nil }, nil
		},
		"pipeline_is": func(args []interface{}) (Predicate, error) {
			names, err := ExactStringArgs(args, 1)
			if err != nil {
				return nil, err
			}
			return func(_ context.Context, msg *models.Message) (bool, error) {
				return msg.Pipeline == names[0], nil
			}, nil
		},
	}
}

func testRegistry() *Registry {
	return NewRegistry().Register("test", constNamespace())
}

func message(pipeline string, event models.Event) *models.Message {
	msg := models.NewMessage("id", "from@example.com", "subject", nil)
	msg.Pipeline = pipeline
	msg.Event = event
	return msg
}

func TestEngineConcatenatesMatchingRulesInOrder(t *testing.T) {
	rules := []Rule{
		{Filter: Filter{Function: "test.yes"}, Actions: []string{"mailto:a@example.com", "slack:#ci"}},
		{Filter: Filter{Function: "test.no"}, Actions: []string{"mailto:never@example.com"}},
		{Filter: Filter{Function: "test.yes"}, Actions: []string{"mailto:a@example.com"}},
	}
	engine := NewEngine("gocd", rules, "", logger.NopLogger())

	actions, err := engine.Evaluate(context.Background(), message("p1", models.EventFails), testRegistry())

	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:a@example.com", "slack:#ci", "mailto:a@example.com"}, actions)
}

func TestRuleWithoutEventsMatchesAnyEvent(t *testing.T) {
	rule := Rule{Filter: Filter{Function: "test.yes"}, Actions: []string{"mailto:a@example.com"}}

	for _, e := range append(models.Events(), models.EventNone) {
		matched, err := Check(context.Background(), rule, message("p1", e), testRegistry())
		require.NoError(t, err)
		assert.True(t, matched, "event %q", e.String())
	}
}

func TestEventGate(t *testing.T) {
	rule := Rule{
		Filter:  Filter{Events: []string{"BREAKS", "FIXED"}, Function: "test.yes"},
		Actions: []string{"mailto:a@example.com"},
	}

	tests := []struct {
		event models.Event
		want  bool
	}{
		{models.EventBreaks, true},
		{models.EventFixed, true},
		{models.EventFails, false},
		{models.EventNone, false},
	}

	for _, tt := range tests {
		matched, err := Check(context.Background(), rule, message("p1", tt.event), testRegistry())
		require.NoError(t, err)
		assert.Equal(t, tt.want, matched, "event %q", tt.event.String())
	}
}

func TestEmptyEventListMatchesNothing(t *testing.T) {
	rule := Rule{Filter: Filter{Events: []string{}, Function: "test.yes"}}

	matched, err := Check(context.Background(), rule, message("p1", models.EventBreaks), testRegistry())

	require.NoError(t, err)
	assert.False(t, matched)
}

func TestEventGateRunsBeforeResolution(t *testing.T) {
	rule := Rule{Filter: Filter{Events: []string{"PASSES"}, Function: "missing.fn"}}

	matched, err := Check(context.Background(), rule, message("p1", models.EventFails), testRegistry())

	require.NoError(t, err)
	assert.False(t, matched)
}

func TestUnknownFunctionSkipsRuleByDefault(t *testing.T) {
	rules := []Rule{
		{Filter: Filter{Function: "nope.fn"}, Actions: []string{"mailto:bad@example.com"}},
		{Filter: Filter{Function: "test.nope"}, Actions: []string{"mailto:bad@example.com"}},
		{Filter: Filter{Function: "test.yes"}, Actions: []string{"mailto:good@example.com"}},
	}
	engine := NewEngine("gocd", rules, constants.ErrorHandlingSkipRule, logger.NopLogger())

	actions, err := engine.Evaluate(context.Background(), message("p1", models.EventFails), testRegistry())

	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:good@example.com"}, actions)
}

func TestUnknownFunctionFailsEvaluationWithFailPolicy(t *testing.T) {
	rules := []Rule{
		{Filter: Filter{Function: "test.yes"}, Actions: []string{"mailto:good@example.com"}},
		{Filter: Filter{Function: "nope.fn"}, Actions: []string{"mailto:bad@example.com"}},
	}
	engine := NewEngine("gocd", rules, constants.ErrorHandlingFail, logger.NopLogger())

	actions, err := engine.Evaluate(context.Background(), message("p1", models.EventFails), testRegistry())

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Nil(t, actions)
}

func TestBadArgumentsAreConfigurationErrors(t *testing.T) {
	rule := Rule{Filter: Filter{Function: "test.pipeline_is"}}

	_, err := Check(context.Background(), rule, message("p1", models.EventFails), testRegistry())

	assert.True(t, errors.IsConfiguration(err))
}

func TestSetRulesReplacesList(t *testing.T) {
	engine := NewEngine("gocd", nil, "", logger.NopLogger())
	engine.SetRules([]Rule{{Filter: Filter{Function: "test.pipeline_is", Args: []interface{}{"p1"}}, Actions: []string{"mailto:x@example.com"}}})

	actions, err := engine.Evaluate(context.Background(), message("p1", models.EventNone), testRegistry())

	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:x@example.com"}, actions)
}

func TestSplitFunction(t *testing.T) {
	ns, method, err := SplitFunction("pipelines.in_group")
	require.NoError(t, err)
	assert.Equal(t, "pipelines", ns)
	assert.Equal(t, "in_group", method)

	for _, bad := range []string{"", "pipelines", ".in_group", "pipelines.", "a.b.c"} {
		_, _, err := SplitFunction(bad)
		assert.True(t, errors.IsConfiguration(err), bad)
	}
}

func TestStringArgs(t *testing.T) {
	got, err := StringArgs([]interface{}{"alpha", 42, true})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "42", "true"}, got)

	_, err = StringArgs([]interface{}{map[string]interface{}{"a": 1}})
	assert.Error(t, err)

	_, err = ExactStringArgs([]interface{}{"a"}, 2)
	assert.Error(t, err)
}
