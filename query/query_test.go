package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personVars() map[string]any {
	return map[string]any{
		"id":      3,
		"kind":    "Person",
		"name":    "p1",
		"tags":    []string{"here", "you"},
		"itemPos": map[string]any{"x": 200.0, "y": 10.0},
		"color":   nil,
	}
}

func TestExprEvaluatorMatchesSnapshot(t *testing.T) {
	e := NewExprEvaluator()
	env := Env{Vars: personVars(), Subject: "Person#3"}

	ok, err := Match(e, env, `kind == "Person" && "here" in tags && itemPos.x > 100`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(e, env, `name == "p2"`)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Match(e, env, `missing == nil`)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchRejectsNonBoolean(t *testing.T) {
	_, err := Match(NewExprEvaluator(), Env{Vars: personVars(), Subject: "Person#3"}, `name`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotBoolean))

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "expr", evalErr.Engine)
	assert.Equal(t, "Person#3", evalErr.Subject)
}

func TestMatchWithoutEvaluator(t *testing.T) {
	_, err := Match(nil, Env{}, "true")
	assert.ErrorIs(t, err, ErrNoEvaluator)
}

func TestEvaluatorsRejectEmptyExpression(t *testing.T) {
	for _, e := range []Evaluator{NewExprEvaluator(), NewCELEvaluator()} {
		_, err := e.Evaluate(Env{}, "")
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "query:"), err.Error())
		_, err = e.Compile("")
		require.Error(t, err)
	}
}

func TestExprProgramCacheAndFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("Upper", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	}))
	cache := NewMemoryCache()
	e := NewExprEvaluator(WithProgramCache(cache), WithFunctionRegistry(registry))

	program, err := e.Compile(`upper(name) == "P1" && call("upper", kind) == "PERSON"`)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	value, err := program.Run(Env{Vars: personVars()})
	require.NoError(t, err)
	assert.Equal(t, true, value)

	_, err = e.Evaluate(Env{Vars: personVars()}, `upper(name) == "P1" && call("upper", kind) == "PERSON"`)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestCELEvaluator(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("double", func(args ...any) (any, error) {
		return args[0].(int64) * 2, nil
	}))
	cache := NewMemoryCache()
	e := NewCELEvaluator(WithProgramCache(cache), WithFunctionRegistry(registry))
	env := Env{Vars: personVars(), Args: map[string]any{"min": 100}}

	ok, err := Match(e, env, `'here' in tags && itemPos.x > 100.0 && call('double', [id]) == 6`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(e, env, `color == null`)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Match(e, env, `undeclared == 1`)
	require.Error(t, err)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "cel", evalErr.Engine)
}

func TestCELCompiledProgramUsesNow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	program, err := NewCELEvaluator().Compile(`now.getFullYear() == 2024`)
	require.NoError(t, err)
	value, err := program.Run(Env{Now: &now})
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestFunctionRegistryGuards(t *testing.T) {
	registry := NewFunctionRegistry()
	require.Error(t, registry.Register("", func(...any) (any, error) { return nil, nil }))
	require.Error(t, registry.Register("nilfn", nil))
	require.NoError(t, registry.Register("One", func(...any) (any, error) { return 1, nil }))
	require.ErrorIs(t, registry.Register("one", func(...any) (any, error) { return 2, nil }), ErrFunctionExists)

	clone := registry.Clone()
	require.NoError(t, registry.Register("two", func(...any) (any, error) { return 2, nil }))
	assert.Equal(t, []string{"one"}, clone.Names())
	assert.Equal(t, []string{"one", "two"}, registry.Names())

	_, err := registry.Call("missing")
	assert.Error(t, err)
	var none *FunctionRegistry
	_, err = none.Call("one")
	assert.Error(t, err)
}

func TestDrawingRegistry(t *testing.T) {
	registry := NewDrawingRegistry()
	assert.Equal(t, []string{"distance", "hastag", "within"}, registry.Names())
	e := NewExprEvaluator(WithFunctionRegistry(registry))
	env := Env{Vars: personVars()}

	ok, err := Match(e, env, `hastag(tags, "here") && !hastag(tags, "there")`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(e, env, `distance(itemPos, {"x": 200, "y": 0}) == 10 && within(itemPos, 0, 0, 250, 50)`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Match(e, env, `within(itemPos, 0, 0, 100, 100)`)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = registry.Call("distance", personVars()["itemPos"])
	assert.Error(t, err)
	_, err = registry.Call("distance", "nowhere", personVars()["itemPos"])
	assert.Error(t, err)
	value, err := registry.Call("hasTag", nil, "here")
	require.NoError(t, err)
	assert.Equal(t, false, value)
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "expr", EngineName(NewExprEvaluator()))
	assert.Equal(t, "cel", EngineName(NewCELEvaluator()))
	assert.Equal(t, "unknown", EngineName(nil))
	if !jsAvailable() {
		assert.Nil(t, NewJSEvaluator())
	}
}

func TestZerologLoggerAdapter(t *testing.T) {
	var seen []LogEvent
	logger := LoggerFunc(func(event LogEvent) { seen = append(seen, event) })
	logger.LogEvaluation(LogEvent{Engine: "expr", Expr: "true"})
	NopLogger{}.LogEvaluation(LogEvent{})
	require.Len(t, seen, 1)
	assert.Equal(t, "expr", seen[0].Engine)
}

func TestSharedProgramCacheKeepsRegistriesApart(t *testing.T) {
	constant := func(value string) *FunctionRegistry {
		registry := NewFunctionRegistry()
		require.NoError(t, registry.Register("pick", func(args ...any) (any, error) {
			return value, nil
		}))
		return registry
	}
	cache := NewMemoryCache()
	a := NewExprEvaluator(WithProgramCache(cache), WithFunctionRegistry(constant("a")))
	b := NewExprEvaluator(WithProgramCache(cache), WithFunctionRegistry(constant("b")))

	value, err := a.Evaluate(Env{}, `pick()`)
	require.NoError(t, err)
	assert.Equal(t, "a", value)
	value, err = b.Evaluate(Env{}, `pick()`)
	require.NoError(t, err)
	assert.Equal(t, "b", value)
	assert.Equal(t, 2, cache.Len())

	celA := NewCELEvaluator(WithProgramCache(cache), WithFunctionRegistry(constant("a")))
	celB := NewCELEvaluator(WithProgramCache(cache), WithFunctionRegistry(constant("b")))
	value, err = celA.Evaluate(Env{}, `call('pick', [1])`)
	require.NoError(t, err)
	assert.Equal(t, "a", value)
	value, err = celB.Evaluate(Env{}, `call('pick', [1])`)
	require.NoError(t, err)
	assert.Equal(t, "b", value)
}

func TestRegistryScopeFollowsRegistrations(t *testing.T) {
	registry := NewFunctionRegistry()
	clone := registry.Clone()
	assert.Equal(t, registry.scope(), clone.scope())

	require.NoError(t, clone.Register("extra", func(args ...any) (any, error) { return nil, nil }))
	assert.NotEqual(t, registry.scope(), clone.scope())
	assert.Equal(t, NewDrawingRegistry().scope(), NewDrawingRegistry().scope())
	assert.Empty(t, (*FunctionRegistry)(nil).scope())
}

func TestExprCompileErrorCarriesSubject(t *testing.T) {
	_, err := NewExprEvaluator().Evaluate(Env{Vars: personVars(), Subject: "Person#3"}, `name ==`)
	require.Error(t, err)

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "expr", evalErr.Engine)
	assert.Equal(t, "Person#3", evalErr.Subject)
}
