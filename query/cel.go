package query

import (
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	engineConfig
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// NewCELEvaluator returns an Evaluator backed by cel-go. Snapshot variables
// are declared dynamically typed; registry functions are reachable through
// `call(name, [args])`.
func NewCELEvaluator(opts ...Option) Evaluator {
	return &celEvaluator{engineConfig: applyOptions(opts)}
}

func (e *celEvaluator) Evaluate(env Env, expression string) (any, error) {
	if expression == "" {
		return nil, emptyExpression("cel")
	}
	env = env.withDefaults()
	program, err := e.loadOrCompile(expression, env.Vars)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, env.subject(), err)
	}
	return e.run(program, expression, env)
}

// Compile defers compilation to the first Run, because the CEL environment
// depends on the snapshot variables.
func (e *celEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, emptyExpression("cel")
	}
	return &celCompiled{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) run(program *celProgram, expression string, env Env) (any, error) {
	out, _, err := program.program.Eval(e.activation(env))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, env.subject(), err)
	}
	return out.Value(), nil
}

func cacheKey(scope, expression string, vars map[string]any) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return "cel:" + scope + ":" + expression + "|" + strings.Join(names, ",")
}

func (e *celEvaluator) loadOrCompile(expression string, vars map[string]any) (*celProgram, error) {
	key := cacheKey(e.registry.scope(), expression, vars)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(vars)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(vars map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding),
			),
		))
	}
	for key := range vars {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(env Env) map[string]any {
	activation := make(map[string]any, len(env.Vars)+2)
	for key, value := range env.Vars {
		activation[key] = value
	}
	activation["now"] = *env.Now
	activation["args"] = env.Args
	return activation
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) callBinding(name, list ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("query: call name must be a string")
	}
	native, err := list.ConvertToNative(anySliceType)
	if err != nil {
		return types.NewErr("query: call arguments: %v", err)
	}
	result, err := e.registry.Call(fn, native.([]any)...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiled struct {
	evaluator  *celEvaluator
	expression string
}

func (p *celCompiled) Run(env Env) (any, error) {
	return p.evaluator.Evaluate(env, p.expression)
}
