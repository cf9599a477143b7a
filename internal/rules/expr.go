package rules

import (
	"context"
	"fmt"
	"sync"

	celgo "github.com/google/cel-go/cel"

	"mail2alert/pkg/cel"
	"mail2alert/pkg/models"
)

// ExprNamespace exposes expr.match(expression). Compiled programs are cached by
// source text since registries are rebuilt per evaluation.
type ExprNamespace struct {
	evaluator *cel.Evaluator
	programs  sync.Map
}

func NewExprNamespace() (*ExprNamespace, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	return &ExprNamespace{evaluator: evaluator}, nil
}

func (x *ExprNamespace) Namespace() Namespace {
	return Namespace{"match": x.match}
}

func (x *ExprNamespace) match(args []interface{}) (Predicate, error) {
	strArgs, err := ExactStringArgs(args, 1)
	if err != nil {
		return nil, err
	}

	program, err := x.compile(strArgs[0])
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, msg *models.Message) (bool, error) {
		return x.evaluator.EvaluateFilter(ctx, program, msg)
	}, nil
}

func (x *ExprNamespace) compile(expression string) (celgo.Program, error) {
	if cached, ok := x.programs.Load(expression); ok {
		return cached.(celgo.Program), nil
	}

	program, err := x.evaluator.CompileFilter(expression)
	if err != nil {
		return nil, err
	}
	x.programs.Store(expression, program)
	return program, nil
}
