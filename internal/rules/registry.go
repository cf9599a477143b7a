package rules

import (
	"context"
	"fmt"
	"strings"

	"mail2alert/pkg/errors"
	"mail2alert/pkg/models"
)

// Predicate decides whether a message matches. Only configuration problems
// surface as errors; absent message fields are a plain false.
type Predicate func(ctx context.Context, msg *models.Message) (bool, error)

// Factory builds a predicate from the rule's args.
type Factory func(args []interface{}) (Predicate, error)

// Namespace maps method names to factories.
type Namespace map[string]Factory

type Registry struct {
	namespaces map[string]Namespace
}

func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]Namespace)}
}

// Register adds or replaces a namespace and returns the registry for chaining.
func (r *Registry) Register(name string, ns Namespace) *Registry {
	r.namespaces[name] = ns
	return r
}

func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	return names
}

func (r *Registry) Resolve(function string) (Factory, error) {
	nsName, method, err := SplitFunction(function)
	if err != nil {
		return nil, err
	}

	ns, ok := r.namespaces[nsName]
	if !ok {
		return nil, errors.ErrConfiguration.WithMessage("unknown filter namespace %q in %q", nsName, function)
	}

	factory, ok := ns[method]
	if !ok {
		return nil, errors.ErrConfiguration.WithMessage("unknown filter method %q in namespace %q", method, nsName)
	}

	return factory, nil
}

// Build resolves function and applies args to its factory.
func (r *Registry) Build(function string, args []interface{}) (Predicate, error) {
	factory, err := r.Resolve(function)
	if err != nil {
		return nil, err
	}

	pred, err := factory(args)
	if err != nil {
		return nil, errors.ErrConfiguration.
			WithMessage("invalid arguments for %s", function).
			WithCause(err)
	}
	return pred, nil
}

func SplitFunction(function string) (string, string, error) {
	nsName, method, ok := strings.Cut(function, ".")
	if !ok || nsName == "" || method == "" || strings.Contains(method, ".") {
		return "", "", errors.ErrConfiguration.WithMessage("filter function %q is not of the form namespace.method", function)
	}
	return nsName, method, nil
}

// StringArgs converts scalar args to strings. YAML may decode bare words such as
// group names made of digits into numbers, so those are accepted too.
func StringArgs(args []interface{}) ([]string, error) {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			out = append(out, v)
		case int, int64, float64, bool:
			out = append(out, fmt.Sprint(v))
		default:
			return nil, fmt.Errorf("argument %d must be a scalar, got %T", i, arg)
		}
	}
	return out, nil
}

// ExactStringArgs is StringArgs with an arity check.
func ExactStringArgs(args []interface{}, n int) ([]string, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return StringArgs(args)
}
