package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-layerdoc"
	"github.com/goliatone/go-layerdoc/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, opts ...state.RedisOption) (*state.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := state.NewRedisStore("redis://"+s.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	_, err := state.NewRedisStore("not a url")
	assert.Error(t, err)
}

func TestRedisStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, s := setupRedisStore(t)
	ref := state.Ref{DocumentID: "doc-1"}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	meta := state.Meta{SnapshotID: "s1", ETag: "e1", UpdatedAt: time.Unix(10, 0).UTC(), Extra: map[string]string{"by": "ana"}}
	_, err = store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1", "count": 2}, meta)
	require.NoError(t, err)
	assert.True(t, s.Exists("layerdoc:documents/doc-1"))
	assert.Equal(t, "json", s.HGet("layerdoc:documents/doc-1", "codec"))

	chunk, loaded, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-1", chunk["uuid"])
	assert.Equal(t, 2.0, chunk["count"])
	assert.True(t, meta.UpdatedAt.Equal(loaded.UpdatedAt))
	assert.Equal(t, "e1", loaded.ETag)
	assert.Equal(t, map[string]string{"by": "ana"}, loaded.Extra)

	require.NoError(t, store.Delete(ctx, ref))
	_, _, ok, err = store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreOptions(t *testing.T) {
	ctx := context.Background()
	codec, err := state.NewCBORCodec()
	require.NoError(t, err)
	store, s := setupRedisStore(t, state.WithRedisPrefix("test:"), state.WithRedisCodec(codec), state.WithRedisTTL(time.Minute))
	ref := state.Ref{DocumentID: "doc-1"}

	_, err = store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1"}, state.Meta{})
	require.NoError(t, err)
	assert.Equal(t, "cbor", s.HGet("test:documents/doc-1", "codec"))
	assert.Equal(t, time.Minute, s.TTL("test:documents/doc-1"))

	s.FastForward(2 * time.Minute)
	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreWithClientOpensDocuments(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	store := state.NewRedisStoreWithClient(client)
	t.Cleanup(func() { _ = store.Close() })

	repo := state.NewRepository(store)
	doc := sampleDocument(t, "doc-redis")
	_, err := repo.Commit(ctx, doc, state.Meta{})
	require.NoError(t, err)

	loaded, _, err := repo.Open(ctx, state.Ref{DocumentID: "doc-redis"})
	require.NoError(t, err)
	assertSample(t, loaded, "doc-redis")
}
