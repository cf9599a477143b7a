package gocd

import (
	"context"
	"fmt"
	"regexp"

	"mail2alert/internal/rules"
	"mail2alert/internal/topology"
	"mail2alert/pkg/models"
)

// PipelinesNamespace exposes the "pipelines" filter functions over one topology
// snapshot. Absent pipelines and unknown groups never match.
func PipelinesNamespace(snap *topology.Snapshot) rules.Namespace {
	p := pipelines{snap: snap}
	return rules.Namespace{
		"any":                p.any,
		"all":                p.any,
		"in_group":           p.inGroup,
		"name_like_in_group": p.nameLikeInGroup,
	}
}

type pipelines struct {
	snap *topology.Snapshot
}

func (p pipelines) any(args []interface{}) (rules.Predicate, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("expected no arguments, got %d", len(args))
	}
	return func(context.Context, *models.Message) (bool, error) {
		return true, nil
	}, nil
}

func (p pipelines) inGroup(args []interface{}) (rules.Predicate, error) {
	strArgs, err := rules.ExactStringArgs(args, 1)
	if err != nil {
		return nil, err
	}
	group := strArgs[0]

	return func(_ context.Context, msg *models.Message) (bool, error) {
		return p.snap.Contains(group, msg.Pipeline), nil
	}, nil
}

// nameLikeInGroup searches the pipeline name with pattern and checks whether
// the first capture group names a member of group.
func (p pipelines) nameLikeInGroup(args []interface{}) (rules.Predicate, error) {
	strArgs, err := rules.ExactStringArgs(args, 2)
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(strArgs[0])
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", strArgs[0], err)
	}
	group := strArgs[1]

	return func(_ context.Context, msg *models.Message) (bool, error) {
		if !msg.HasPipeline() {
			return false, nil
		}
		m := re.FindStringSubmatch(msg.Pipeline)
		if len(m) < 2 {
			return false, nil
		}
		return p.snap.Contains(group, m[1]), nil
	}, nil
}
