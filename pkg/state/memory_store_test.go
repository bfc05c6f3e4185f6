package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-layerdoc"
	"github.com/goliatone/go-layerdoc/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefIdentifier(t *testing.T) {
	key, err := state.Ref{DocumentID: "abc"}.Identifier()
	require.NoError(t, err)
	assert.Equal(t, "documents/abc", key)

	for _, id := range []string{"", "  ", "a/b", "a b"} {
		_, err := state.Ref{DocumentID: id}.Identifier()
		assert.Error(t, err, "id %q", id)
	}
}

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(nil)
	ref := state.Ref{DocumentID: "doc-1"}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	meta := state.Meta{SnapshotID: "s1", ETag: "e1", UpdatedAt: time.Unix(10, 0).UTC(), Extra: map[string]string{"by": "ana"}}
	saved, err := store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1", "items": []any{}}, meta)
	require.NoError(t, err)
	assert.Equal(t, meta, saved)

	saved.Extra["by"] = "mutated"
	chunk, loaded, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-1", chunk["uuid"])
	assert.Equal(t, "ana", loaded.Extra["by"])
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreIsolatesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(nil)
	ref := state.Ref{DocumentID: "doc-1"}
	chunk := layerdoc.Chunk{"tags": []any{"a"}}

	_, err := store.Save(ctx, ref, chunk, state.Meta{})
	require.NoError(t, err)
	chunk["tags"] = []any{"b"}

	loaded, _, _, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, loaded["tags"])

	loaded["tags"] = []any{"c"}
	again, _, _, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again["tags"])
}

func TestMemoryStoreRejectsInvalidRefs(t *testing.T) {
	store := state.NewMemoryStore(nil)
	_, err := store.Save(context.Background(), state.Ref{}, layerdoc.Chunk{}, state.Meta{})
	assert.Error(t, err)
	_, _, _, err = store.Load(context.Background(), state.Ref{DocumentID: "a/b"})
	assert.Error(t, err)
}
