package models

import "strings"

// Event classifies the outcome of a single stage run.
type Event int

const (
	EventNone Event = iota
	EventBreaks
	EventCancelled
	EventFails
	EventFixed
	EventPasses
)

var eventNames = map[Event]string{
	EventBreaks:    "BREAKS",
	EventCancelled: "CANCELLED",
	EventFails:     "FAILS",
	EventFixed:     "FIXED",
	EventPasses:    "PASSES",
}

// Events returns every event in declaration order.
func Events() []Event {
	return []Event{EventBreaks, EventCancelled, EventFails, EventFixed, EventPasses}
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return ""
}

func (e Event) IsNone() bool {
	return e == EventNone
}

// ParseEvent maps an event name such as "BREAKS" to its Event. Matching is case-insensitive.
func ParseEvent(name string) (Event, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for event, eventName := range eventNames {
		if eventName == upper {
			return event, true
		}
	}
	return EventNone, false
}

// EventNames returns the names of every event in declaration order.
func EventNames() []string {
	events := Events()
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.String())
	}
	return names
}
