package rules

import (
	"fmt"

	"mail2alert/pkg/errors"
	"mail2alert/pkg/models"
)

type ValidationError struct {
	Index int
	Rule  string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rules[%d] (%s): %v", e.Index, e.Rule, e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// Validate builds every rule's predicate once against registry and checks event
// names and actions. All problems are returned, not just the first.
func Validate(rules []Rule, registry *Registry) []ValidationError {
	var errs []ValidationError
	for i, rule := range rules {
		fail := func(err error) {
			errs = append(errs, ValidationError{Index: i, Rule: rule.Label(), Err: err})
		}

		if rule.Filter.Function == "" {
			fail(errors.ErrConfiguration.WithMessage("filter.function is required"))
		} else if _, err := registry.Build(rule.Filter.Function, rule.Filter.Args); err != nil {
			fail(err)
		}

		for _, name := range rule.Filter.Events {
			if _, ok := models.ParseEvent(name); !ok {
				fail(errors.ErrConfiguration.WithMessage("unknown event %q, expected one of %v", name, models.EventNames()))
			}
		}

		if len(rule.Actions) == 0 {
			fail(errors.ErrConfiguration.WithMessage("at least one action is required"))
		}
	}
	return errs
}

// NormalizeEvents rewrites event names to their canonical upper case spelling so
// the event gate can compare by string.
func NormalizeEvents(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, rule := range rules {
		out[i] = rule
		if rule.Filter.Events == nil {
			continue
		}
		events := make([]string, 0, len(rule.Filter.Events))
		for _, name := range rule.Filter.Events {
			if e, ok := models.ParseEvent(name); ok {
				events = append(events, e.String())
			} else {
				events = append(events, name)
			}
		}
		out[i].Filter.Events = events
	}
	return out
}
