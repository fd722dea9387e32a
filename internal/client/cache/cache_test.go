package cache

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todosutiles/kitsync/internal/client/localstore"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"

	_ "modernc.org/sqlite"
)

func setupCache(t *testing.T) (*Cache, *localstore.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE kv (slot TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)

	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	store := localstore.New(db, log)
	return New(store, log), store
}

func TestRefreshFromRemote_DeduplicatesIdenticalKeys(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	records := []models.Record{
		{Name: "Ana", School: "A", RegisteredAt: "2024-01-01T10:00:00Z"},
		{Name: "Ana", School: "B", RegisteredAt: "2024-01-01T10:00:00Z"},
	}

	require.NoError(t, c.RefreshFromRemote(ctx, records))

	got := c.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].School, "first occurrence in remote order wins")
}

func TestRefreshFromRemote_SortsNewestFirst(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	records := []models.Record{
		{Name: "Jan", RegisteredAt: "2024-01-01T10:00:00Z"},
		{Name: "Feb", RegisteredAt: "2024-02-01T10:00:00Z"},
	}

	require.NoError(t, c.RefreshFromRemote(ctx, records))

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "Feb", got[0].Name)
	assert.Equal(t, "Jan", got[1].Name)
}

func TestRefreshFromRemote_PersistsDeduplicatedSet(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.RefreshFromRemote(ctx, []models.Record{
		{Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"},
		{Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"},
	}))

	stored, ok, err := localstore.Load[[]models.Record](ctx, store, common.CacheSlot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored, 1)
}

func TestLoadFromLocal_RepublishesPersistedCache(t *testing.T) {
	c, store := setupCache(t)
	ctx := context.Background()

	seed := []models.Record{
		{Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"},
		{Name: "Luis", RegisteredAt: "2024-02-01T10:00:00Z"},
	}
	require.NoError(t, store.Save(ctx, common.CacheSlot, seed))

	require.NoError(t, c.LoadFromLocal(ctx))

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "Luis", got[0].Name)
}

func TestLoadFromLocal_EmptyStore(t *testing.T) {
	c, _ := setupCache(t)

	require.NoError(t, c.LoadFromLocal(context.Background()))
	assert.Empty(t, c.Snapshot())
}

func TestMergeLocal_AddsAndSkipsDuplicates(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	r := models.Record{Name: "Ana", Age: 7, School: "A", Sector: "S1", RegisteredAt: "2024-01-01T10:00:00Z"}

	added, err := c.MergeLocal(ctx, r)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.MergeLocal(ctx, r)
	require.NoError(t, err)
	assert.False(t, added, "same submission must not be merged twice")

	assert.Len(t, c.Snapshot(), 1)
}

func TestMergeLocal_KeepsSortOrder(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.RefreshFromRemote(ctx, []models.Record{
		{Name: "Feb", RegisteredAt: "2024-02-01T10:00:00Z"},
	}))

	_, err := c.MergeLocal(ctx, models.Record{Name: "Mar", RegisteredAt: "2024-03-01T10:00:00Z"})
	require.NoError(t, err)

	got := c.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "Mar", got[0].Name)
}

func TestSubscribe_NotifiedOnPublish(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	var published [][]models.Record
	unsubscribe := c.Subscribe(func(records []models.Record) {
		published = append(published, records)
	})

	require.NoError(t, c.RefreshFromRemote(ctx, []models.Record{
		{Name: "Ana", RegisteredAt: "2024-01-01T10:00:00Z"},
	}))
	require.Len(t, published, 1)
	assert.Len(t, published[0], 1)

	unsubscribe()
	require.NoError(t, c.RefreshFromRemote(ctx, nil))
	assert.Len(t, published, 1, "no notifications after unsubscribe")
}

func TestFilterRange(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.RefreshFromRemote(ctx, []models.Record{
		{Name: "Jan", RegisteredAt: "2024-01-15T10:00:00Z"},
		{Name: "Feb", RegisteredAt: "2024-02-15T10:00:00Z"},
		{Name: "Mar", RegisteredAt: "2024-03-15T10:00:00Z"},
	}))

	got := c.FilterRange("2024-02-01T00:00:00Z", "2024-02-28T23:59:59Z")
	require.Len(t, got, 1)
	assert.Equal(t, "Feb", got[0].Name)
}
