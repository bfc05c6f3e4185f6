//go:build js_eval

package query

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	engineConfig
}

// NewJSEvaluator returns an Evaluator backed by goja.
func NewJSEvaluator(opts ...Option) Evaluator {
	return &jsEvaluator{engineConfig: applyOptions(opts)}
}

func (e *jsEvaluator) Evaluate(env Env, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression("js")
	}
	program, err := e.loadOrCompile(expression, env.subject())
	if err != nil {
		return nil, err
	}
	return e.run(program, expression, env)
}

func (e *jsEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("js")
	}
	program, err := e.loadOrCompile(expression, "")
	if err != nil {
		return nil, err
	}
	return &jsProgram{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression, subject string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, subject, err)
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(program *goja.Program, expression string, env Env) (any, error) {
	env = env.withDefaults()
	vm := goja.New()
	for key, value := range env.Vars {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapEvaluationError("js", expression, env.subject(), err)
		}
	}
	_ = vm.Set("now", *env.Now)
	_ = vm.Set("args", env.Args)
	if e.registry != nil {
		_ = vm.Set("call", e.callHelper())
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, env.subject(), err)
	}
	return value.Export(), nil
}

type jsProgram struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (p *jsProgram) Run(env Env) (any, error) {
	return p.evaluator.run(p.program, p.expression, env)
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(*jsEvaluator)
	return ok
}

func jsAvailable() bool {
	return true
}
