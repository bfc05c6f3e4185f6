package layering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y float64
}

func TestCloneIsolatesNestedCollections(t *testing.T) {
	src := map[string]any{
		"tags":  []string{"a", "b"},
		"inner": map[string]any{"n": 1},
		"pos":   point{X: 1, Y: 2},
	}

	out := Clone(src)
	require.Equal(t, src, out)

	out["tags"].([]string)[0] = "changed"
	out["inner"].(map[string]any)["n"] = 2

	assert.Equal(t, "a", src["tags"].([]string)[0])
	assert.Equal(t, 1, src["inner"].(map[string]any)["n"])
}

func TestCloneAnyKeepsDynamicType(t *testing.T) {
	var value any = point{X: 3, Y: 4}
	out := Clone(value)
	assert.Equal(t, point{X: 3, Y: 4}, out)

	var none any
	assert.Nil(t, Clone(none))
}

func TestEqualTreatsEmptyCollectionsAsEqual(t *testing.T) {
	assert.True(t, Equal(nil, []string{}))
	assert.True(t, Equal([]string(nil), []string{}))
	assert.True(t, Equal(map[string]any{}, nil))
	assert.False(t, Equal([]string{}, map[string]any{}))
	assert.False(t, Equal([]string{"a"}, nil))
	assert.True(t, Equal(point{1, 2}, point{1, 2}))
	assert.False(t, Equal(1, 1.0))
	assert.False(t, Equal(nil, ""))
}

func TestMergeChunksStrongestFirst(t *testing.T) {
	weak := map[string]any{"id": 1, "legacy": "keep", "color": "#000"}
	strong := map[string]any{"id": 1, "color": "#fff"}

	merged := MergeChunks(strong, weak)

	assert.Equal(t, map[string]any{"id": 1, "legacy": "keep", "color": "#fff"}, merged)

	merged["legacy"] = "mutated"
	assert.Equal(t, "keep", weak["legacy"])
}

func TestMergeChunksEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, MergeChunks())
}
