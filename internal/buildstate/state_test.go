package buildstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mail2alert/pkg/models"
)

func TestAfterTransitionTable(t *testing.T) {
	tests := []struct {
		newState State
		old      State
		want     models.Event
	}{
		{Success, Success, models.EventPasses},
		{Success, Failure, models.EventFixed},
		{Success, Unknown, models.EventFixed},
		{Failure, Success, models.EventBreaks},
		{Failure, Failure, models.EventFails},
		{Failure, Unknown, models.EventBreaks},
	}

	for _, tt := range tests {
		t.Run(tt.newState.String()+"_after_"+tt.old.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.newState.After(tt.old))
		})
	}
}

func TestUnknownAfterIsAbsent(t *testing.T) {
	assert.Equal(t, models.EventNone, Unknown.After(Unknown))
	assert.Equal(t, models.EventNone, Unknown.After(Success))
	assert.Equal(t, models.EventNone, Unknown.After(Failure))
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, Success, StateFor(models.EventPasses))
	assert.Equal(t, Success, StateFor(models.EventFixed))
	assert.Equal(t, Failure, StateFor(models.EventBreaks))
	assert.Equal(t, Failure, StateFor(models.EventFails))
	assert.Equal(t, Unknown, StateFor(models.EventCancelled))
	assert.Equal(t, Unknown, StateFor(models.EventNone))
}

func TestParseState(t *testing.T) {
	assert.Equal(t, Success, ParseState("Success"))
	assert.Equal(t, Failure, ParseState("Failure"))
	assert.Equal(t, Unknown, ParseState("Exception"))
}

func TestExpectedPolicy(t *testing.T) {
	tests := []struct {
		name    string
		old     State
		literal models.Event
		want    models.Event
	}{
		{name: "unknown history accepts literal", old: Unknown, literal: models.EventFails, want: models.EventFails},
		{name: "failed after success becomes breaks", old: Success, literal: models.EventFails, want: models.EventBreaks},
		{name: "passed after failure becomes fixed", old: Failure, literal: models.EventPasses, want: models.EventFixed},
		{name: "broken after failure is kept", old: Failure, literal: models.EventBreaks, want: models.EventBreaks},
		{name: "consistent report is kept", old: Success, literal: models.EventPasses, want: models.EventPasses},
		// Mismatches that would downgrade a transition into a steady-state report are
		// deliberately left alone.
		{name: "fixed after success stays fixed", old: Success, literal: models.EventFixed, want: models.EventFixed},
		{name: "cancelled is never corrected", old: Failure, literal: models.EventCancelled, want: models.EventCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expected(tt.old, tt.literal))
		})
	}
}
