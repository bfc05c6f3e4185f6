//go:build js_eval

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSEvaluator(t *testing.T) {
	e := NewJSEvaluator(WithProgramCache(NewMemoryCache()))
	require.NotNil(t, e)
	assert.Equal(t, "js", EngineName(e))

	ok, err := Match(e, Env{Vars: personVars()}, `name === "p1" && tags.indexOf("you") >= 0`)
	require.NoError(t, err)
	assert.True(t, ok)
}
