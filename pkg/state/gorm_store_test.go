package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/goliatone/go-layerdoc"
	"github.com/goliatone/go-layerdoc/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupGormStore opens an in-memory SQLite database. One connection keeps
// every query on the same database.
func setupGormStore(t *testing.T, codec state.Codec) (*state.GormStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := state.NewGormStore(db, codec)
	require.NoError(t, store.Migrate(context.Background()))
	return store, db
}

func TestGormStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, db := setupGormStore(t, nil)
	ref := state.Ref{DocumentID: "doc-1"}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	meta := state.Meta{SnapshotID: "s1", ETag: "e1", UpdatedAt: time.Unix(10, 0).UTC(), Extra: map[string]string{"by": "ana"}}
	_, err = store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1"}, meta)
	require.NoError(t, err)

	meta.ETag = "e2"
	_, err = store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1", "rev": 2}, meta)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&state.DocumentSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	chunk, loaded, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, chunk["rev"])
	assert.Equal(t, "s1", loaded.SnapshotID)
	assert.Equal(t, "e2", loaded.ETag)
	assert.True(t, meta.UpdatedAt.Equal(loaded.UpdatedAt))
	assert.Equal(t, map[string]string{"by": "ana"}, loaded.Extra)

	require.NoError(t, store.Delete(ctx, ref))
	_, _, ok, err = store.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStoreRejectsForeignCodec(t *testing.T) {
	ctx := context.Background()
	store, db := setupGormStore(t, nil)
	ref := state.Ref{DocumentID: "doc-1"}
	_, err := store.Save(ctx, ref, layerdoc.Chunk{"uuid": "doc-1"}, state.Meta{})
	require.NoError(t, err)

	codec, err := state.NewCBORCodec()
	require.NoError(t, err)
	cborStore := state.NewGormStore(db, codec)
	_, _, _, err = cborStore.Load(ctx, ref)
	assert.Error(t, err)
}

func TestGormStoreOpensDocuments(t *testing.T) {
	ctx := context.Background()
	codec, err := state.NewCBORCodec()
	require.NoError(t, err)
	store, _ := setupGormStore(t, codec)

	repo := state.NewRepository(store)
	doc := sampleDocument(t, "doc-gorm")
	_, err = repo.Commit(ctx, doc, state.Meta{Extra: map[string]string{"source": "test"}})
	require.NoError(t, err)

	loaded, meta, err := repo.Open(ctx, state.Ref{DocumentID: "doc-gorm"})
	require.NoError(t, err)
	assertSample(t, loaded, "doc-gorm")
	assert.Equal(t, "test", meta.Extra["source"])
}
