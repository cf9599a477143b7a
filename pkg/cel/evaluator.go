package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"mail2alert/pkg/models"
)

// Evaluator compiles boolean CEL expressions over the routing fields of a message:
// pipeline, stage, event, subject and from. Absent fields are empty strings.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("pipeline", cel.StringType),
		cel.Variable("stage", cel.StringType),
		cel.Variable("event", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("from", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.CompileFilter(expression)
	return err
}

// CompileFilter compiles expression and checks that it yields a bool.
func (e *Evaluator) CompileFilter(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func (e *Evaluator) EvaluateFilter(ctx context.Context, program cel.Program, msg *models.Message) (bool, error) {
	result, _, err := program.ContextEval(ctx, msg.Fields())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
