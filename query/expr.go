package query

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	engineConfig
}

// NewExprEvaluator returns an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...Option) Evaluator {
	return &exprEvaluator{engineConfig: applyOptions(opts)}
}

func (e *exprEvaluator) Evaluate(env Env, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression("expr")
	}
	program, err := e.loadOrCompile(expression, env.subject())
	if err != nil {
		return nil, err
	}
	return e.run(program, expression, env)
}

func (e *exprEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("expr")
	}
	program, err := e.loadOrCompile(expression, "")
	if err != nil {
		return nil, err
	}
	return &exprProgram{evaluator: e, program: program, expression: expression}, nil
}

// loadOrCompile caches programs per function table, since compiled programs
// hold the registry functions they were built with.
func (e *exprEvaluator) loadOrCompile(expression, subject string) (*exprvm.Program, error) {
	key := "expr:" + e.registry.scope() + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		fn := name
		options = append(options, exprlang.Function(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}))
	}
	if e.registry != nil {
		options = append(options, exprlang.Function("call", func(arguments ...any) (any, error) {
			if len(arguments) == 0 {
				return nil, fmt.Errorf("call requires a function name")
			}
			name, ok := arguments[0].(string)
			if !ok {
				return nil, fmt.Errorf("call name must be a string, got %T", arguments[0])
			}
			return e.registry.Call(name, arguments[1:]...)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, subject, err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEvaluator) run(program *exprvm.Program, expression string, env Env) (any, error) {
	env = env.withDefaults()
	result, err := exprlang.Run(program, e.environment(env))
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, env.subject(), err)
	}
	return result, nil
}

func (e *exprEvaluator) environment(env Env) map[string]any {
	vars := make(map[string]any, len(env.Vars)+3)
	for key, value := range env.Vars {
		vars[key] = value
	}
	vars["now"] = *env.Now
	vars["args"] = env.Args
	return vars
}

type exprProgram struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (p *exprProgram) Run(env Env) (any, error) {
	return p.evaluator.run(p.program, p.expression, env)
}
