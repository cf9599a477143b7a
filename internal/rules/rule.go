// Package rules evaluates configured routing rules against extracted messages.
//
// A rule pairs a filter with a list of raw action strings. The filter names a
// predicate factory as "namespace.method" which is looked up in a Registry
// supplied per evaluation, so namespaces can close over per-evaluation data
// such as the current pipeline topology.
package rules

import (
	"slices"

	"mail2alert/pkg/models"
)

type Filter struct {
	Events   []string      `mapstructure:"events" json:"events,omitempty"`
	Function string        `mapstructure:"function" json:"function"`
	Args     []interface{} `mapstructure:"args" json:"args,omitempty"`
}

type Rule struct {
	Owner   string   `mapstructure:"owner" json:"owner,omitempty"`
	Name    string   `mapstructure:"name" json:"name,omitempty"`
	Filter  Filter   `mapstructure:"filter" json:"filter"`
	Actions []string `mapstructure:"actions" json:"actions"`
}

// Label identifies the rule in logs and metrics.
func (r Rule) Label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Owner != "":
		return r.Owner
	default:
		return r.Filter.Function
	}
}

// HasEventGate reports whether the filter restricts events. A nil list means any
// event, including an absent one; an empty list matches nothing.
func (r Rule) HasEventGate() bool {
	return r.Filter.Events != nil
}

func (r Rule) PassesEventGate(e models.Event) bool {
	if !r.HasEventGate() {
		return true
	}
	if e.IsNone() {
		return false
	}
	return slices.Contains(r.Filter.Events, e.String())
}
