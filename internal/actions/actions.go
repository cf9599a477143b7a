// Package actions turns raw "kind:rest" action strings from matched rules into
// typed delivery instructions.
package actions

import (
	"context"
	"strings"

	"mail2alert/internal/constants"
	"mail2alert/internal/logger"
	"mail2alert/pkg/errors"
	"mail2alert/pkg/metrics"
)

type Mailto struct {
	Destination string
}

// Slack posts to a channel or user. Style is validated by the notifier, not here.
type Slack struct {
	Destination string
	Style       string
}

type Set struct {
	Mailto []Mailto
	Slack  []Slack
}

// Recipients lists mailto destinations in order, duplicates included.
func (s Set) Recipients() []string {
	out := make([]string, 0, len(s.Mailto))
	for _, m := range s.Mailto {
		out = append(out, m.Destination)
	}
	return out
}

func (s Set) Empty() bool {
	return len(s.Mailto) == 0 && len(s.Slack) == 0
}

// Parse decodes one raw action. The returned value is a Mailto or a Slack.
func Parse(raw string) (interface{}, error) {
	kind, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, errors.ErrAction.WithMessage("action %q has no kind", raw)
	}

	switch kind {
	case constants.ActionKindMailto:
		dest := strings.TrimSpace(rest)
		if dest == "" {
			return nil, errors.ErrAction.WithMessage("action %q has no destination", raw)
		}
		return Mailto{Destination: dest}, nil

	case constants.ActionKindSlack:
		parts := strings.Split(rest, ":")
		if len(parts) > 2 {
			return nil, errors.ErrAction.WithMessage("action %q has too many fields", raw)
		}
		dest := strings.TrimSpace(parts[0])
		if dest == "" {
			return nil, errors.ErrAction.WithMessage("action %q has no destination", raw)
		}
		style := constants.SlackStyleBrief
		if len(parts) == 2 && parts[1] != "" {
			style = parts[1]
		}
		return Slack{Destination: dest, Style: style}, nil

	default:
		return nil, errors.ErrAction.WithMessage("unexpected action kind %q in %q", kind, raw)
	}
}

type Resolver struct {
	manager string
	logger  logger.Logger
}

func NewResolver(manager string, log logger.Logger) *Resolver {
	return &Resolver{manager: manager, logger: log}
}

// Resolve parses every raw action. Malformed entries are logged and dropped.
func (r *Resolver) Resolve(ctx context.Context, raw []string) Set {
	var set Set
	for _, text := range raw {
		action, err := Parse(text)
		if err != nil {
			metrics.ActionsDroppedTotal.WithLabelValues(r.manager, "malformed").Inc()
			r.logger.ErrorwCtx(ctx, "Unexpected action",
				"action", text,
				"error", err,
			)
			continue
		}

		switch a := action.(type) {
		case Mailto:
			set.Mailto = append(set.Mailto, a)
		case Slack:
			set.Slack = append(set.Slack, a)
		}
	}
	return set
}
