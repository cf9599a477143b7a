package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail2alert/pkg/models"
)

func testMessage() *models.Message {
	msg := models.NewMessage("id-1", "gocd@ci.example.com", "Stage [release-api/12/build/1] failed", nil)
	msg.Pipeline = "release-api"
	msg.Stage = "build"
	msg.Event = models.EventFails
	return msg
}

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateFilterExpression(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid bool expression", expr: `pipeline == "api"`},
		{name: "valid string function", expr: `subject.contains("failed")`},
		{name: "non-bool expression", expr: `pipeline`, wantError: true},
		{name: "invalid syntax", expr: `pipeline ==`, wantError: true},
		{name: "undefined variable", expr: `payload.status == "x"`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateFilterExpression(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluateFilter(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "pipeline prefix", expr: `pipeline.startsWith("release-")`, want: true},
		{name: "event name", expr: `event in ["BREAKS", "FAILS"]`, want: true},
		{name: "event mismatch", expr: `event == "PASSES"`, want: false},
		{name: "stage", expr: `stage == "build"`, want: true},
		{name: "sender", expr: `from.endsWith("@ci.example.com")`, want: true},
		{name: "combined", expr: `pipeline == "release-api" && !subject.contains("passed")`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := eval.CompileFilter(tt.expr)
			require.NoError(t, err)

			got, err := eval.EvaluateFilter(context.Background(), program, testMessage())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateFilterAbsentFields(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	program, err := eval.CompileFilter(`pipeline == "" && event == ""`)
	require.NoError(t, err)

	got, err := eval.EvaluateFilter(context.Background(), program, models.NewMessage("id", "", "hello", nil))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestFilterExpressionExamplesCompile(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	for name, expr := range FilterExpressionExamples {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, eval.ValidateFilterExpression(expr))
		})
	}
}
