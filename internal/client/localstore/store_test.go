package localstore

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todosutiles/kitsync/internal/logging"

	_ "modernc.org/sqlite"
)

func setupStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE kv (slot TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)

	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	return New(db, log), db
}

type entry struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestStore_SaveAndLoad(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	want := []entry{{Name: "Ana", Age: 7}, {Name: "Luis", Age: 9}}
	require.NoError(t, s.Save(ctx, "registrosLocalCache", want))

	got, ok, err := Load[[]entry](ctx, s, "registrosLocalCache")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "slot", entry{Name: "first"}))
	require.NoError(t, s.Save(ctx, "slot", entry{Name: "second"}))

	got, ok, err := Load[entry](ctx, s, "slot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got.Name)
}

func TestStore_LoadMissing(t *testing.T) {
	s, _ := setupStore(t)

	got, ok, err := Load[[]entry](context.Background(), s, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_LoadCorruptTreatedAsMissing(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO kv (slot, value) VALUES ('bad', '{not json')`)
	require.NoError(t, err)

	got, ok, err := Load[entry](ctx, s, "bad")
	require.NoError(t, err, "corruption must not surface as an error")
	assert.False(t, ok)
	assert.Equal(t, entry{}, got)
}

func TestStore_Remove(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "slot", entry{Name: "x"}))
	require.NoError(t, s.Remove(ctx, "slot"))

	_, ok, err := Load[entry](ctx, s, "slot")
	require.NoError(t, err)
	assert.False(t, ok)

	// removing again is a no-op
	require.NoError(t, s.Remove(ctx, "slot"))
}

func TestOpen_RunsMigrations(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
	assert.Equal(t, 0, n)
}
