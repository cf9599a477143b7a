// Package buildstate tracks the last known health of every pipeline stage and uses it to
// correct events whose wording disagrees with that history.
package buildstate

import "mail2alert/pkg/models"

// State is the build health of one pipeline stage.
type State int

const (
	Unknown State = iota
	Success
	Failure
)

func (s State) String() string {
	switch s {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// ParseState accepts the cctray lastBuildStatus vocabulary. Anything else is Unknown.
func ParseState(status string) State {
	switch status {
	case "Success":
		return Success
	case "Failure":
		return Failure
	default:
		return Unknown
	}
}

// After returns the event that describes moving from old to s.
// Unknown is never a destination, so Unknown.After always returns EventNone.
func (s State) After(old State) models.Event {
	switch s {
	case Success:
		if old == Success {
			return models.EventPasses
		}
		return models.EventFixed
	case Failure:
		if old == Failure {
			return models.EventFails
		}
		return models.EventBreaks
	default:
		return models.EventNone
	}
}

// StateFor maps an event to the state it leaves the stage in. CANCELLED and absent
// events leave nothing to record and map to Unknown.
func StateFor(e models.Event) State {
	switch e {
	case models.EventPasses, models.EventFixed:
		return Success
	case models.EventBreaks, models.EventFails:
		return Failure
	default:
		return Unknown
	}
}
