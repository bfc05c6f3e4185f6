// Package query evaluates boolean predicates over item snapshots. Three
// engines are available: expr (default), CEL, and JavaScript through goja
// when built with the js_eval tag. All engines see the snapshot keys as
// top-level variables plus `now`, `args` and a `call(name, ...)` helper
// backed by a FunctionRegistry.
package query

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoEvaluator is returned when no evaluator could be configured.
var ErrNoEvaluator = errors.New("query: evaluator not configured")

// ErrNotBoolean is returned by Match when an expression yields a non-boolean.
var ErrNotBoolean = errors.New("query: expression did not yield a boolean")

// Env carries the inputs of one evaluation.
type Env struct {
	// Vars holds the subject snapshot, one variable per key.
	Vars map[string]any
	// Args holds caller supplied arguments exposed as `args`.
	Args map[string]any
	// Now pins the `now` variable; time.Now() is used when nil.
	Now *time.Time
	// Subject labels the evaluated item in errors and logs.
	Subject string
}

func (env Env) withDefaults() Env {
	if env.Now == nil {
		now := time.Now()
		env.Now = &now
	}
	if env.Args == nil {
		env.Args = map[string]any{}
	}
	if env.Vars == nil {
		env.Vars = map[string]any{}
	}
	return env
}

func (env Env) subject() string {
	if env.Subject == "" {
		return "unknown"
	}
	return env.Subject
}

// Evaluator runs expressions against an Env.
type Evaluator interface {
	Evaluate(env Env, expr string) (any, error)
	Compile(expr string) (Program, error)
}

// Program is a compiled expression that can run many times.
type Program interface {
	Run(env Env) (any, error)
}

// Match evaluates expr and requires a boolean result. A nil result counts
// as false.
func Match(e Evaluator, env Env, expr string) (bool, error) {
	if e == nil {
		return false, ErrNoEvaluator
	}
	value, err := e.Evaluate(env, expr)
	if err != nil {
		return false, err
	}
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, wrapEvaluationError(EngineName(e), expr, env.subject(), fmt.Errorf("%w: got %T", ErrNotBoolean, value))
	}
}

// EngineName reports which engine backs e.
func EngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}

func emptyExpression(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
}
