package rules

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/pkg/metrics"
	"mail2alert/pkg/models"
	"mail2alert/pkg/tracing"
)

// Engine evaluates an ordered rule list. Every matching rule contributes its
// actions in declaration order; nothing is deduplicated.
type Engine struct {
	manager string
	onError string
	logger  logger.Logger

	rules   []Rule
	rulesMu sync.RWMutex
}

func NewEngine(manager string, rules []Rule, onError string, log logger.Logger) *Engine {
	if onError == "" {
		onError = constants.ErrorHandlingSkipRule
	}
	return &Engine{
		manager: manager,
		onError: onError,
		logger:  log,
		rules:   rules,
	}
}

func (e *Engine) Rules() []Rule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()

	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// SetRules swaps the rule list; evaluations already running keep the old one.
func (e *Engine) SetRules(rules []Rule) {
	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()
}

// Evaluate returns the concatenated raw actions of all matching rules. With the
// fail policy the first rule error aborts the evaluation and no actions are returned.
func (e *Engine) Evaluate(ctx context.Context, msg *models.Message, registry *Registry) ([]string, error) {
	ctx, span := tracing.GetTracer("rules").Start(ctx, "rules.evaluate")
	defer span.End()

	var actions []string
	for _, rule := range e.Rules() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matched, err := Check(ctx, rule, msg, registry)
		if err != nil {
			if e.onError == constants.ErrorHandlingFail {
				metrics.RuleErrorsTotal.WithLabelValues(e.manager, constants.ErrorHandlingFail).Inc()
				span.RecordError(err)
				span.SetStatus(codes.Error, "rule evaluation failed")
				e.logger.ErrorwCtx(ctx, "Rule evaluation error, aborting evaluation",
					"rule", rule.Label(),
					"function", rule.Filter.Function,
					"error", err,
				)
				return nil, fmt.Errorf("rule %q: %w", rule.Label(), err)
			}

			metrics.RuleErrorsTotal.WithLabelValues(e.manager, constants.ErrorHandlingSkipRule).Inc()
			e.logger.ErrorwCtx(ctx, "Rule evaluation error, skipping rule",
				"rule", rule.Label(),
				"function", rule.Filter.Function,
				"error", err,
			)
			continue
		}

		if !matched {
			continue
		}

		metrics.RuleMatchesTotal.WithLabelValues(e.manager, rule.Label()).Inc()
		e.logger.DebugwCtx(ctx, "Rule match",
			"rule", rule.Label(),
			"actions", rule.Actions,
		)
		actions = append(actions, rule.Actions...)
	}

	span.SetAttributes(attribute.Int("rules.actions", len(actions)))
	return actions, nil
}

// Check evaluates a single rule: event gate, predicate resolution, predicate.
func Check(ctx context.Context, rule Rule, msg *models.Message, registry *Registry) (bool, error) {
	if !rule.PassesEventGate(msg.Event) {
		return false, nil
	}

	pred, err := registry.Build(rule.Filter.Function, rule.Filter.Args)
	if err != nil {
		return false, err
	}

	return pred(ctx, msg)
}
