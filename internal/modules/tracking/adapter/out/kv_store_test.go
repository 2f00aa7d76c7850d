package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackingout "watchtime/internal/modules/tracking/adapter/out"
	port "watchtime/internal/modules/tracking/port/out"
	apperrors "watchtime/internal/platform/errors"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func exerciseKVStore(t *testing.T, store port.KVStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "tracker")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.Put(ctx, "tracker", []byte(`{"name":"one"}`)))
	require.NoError(t, store.Put(ctx, "tracker.corrupt", []byte(`{oops`)))
	got, err := store.Get(ctx, "tracker")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"one"}`, string(got))

	require.NoError(t, store.Put(ctx, "tracker", []byte(`{"name":"two"}`)))
	got, err = store.Get(ctx, "tracker")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"two"}`, string(got))

	got, err = store.Get(ctx, "tracker.corrupt")
	require.NoError(t, err)
	assert.Equal(t, `{oops`, string(got))
}

func TestSQLiteKVStore(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "watchtime.db")
	store, err := trackingout.NewSQLiteKVStore(dbPath, fixedClock{now: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseKVStore(t, store)
}

func TestSQLiteKVStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "watchtime.db")
	clk := fixedClock{now: time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)}
	store, err := trackingout.NewSQLiteKVStore(dbPath, clk)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "tracker", []byte("payload")))
	require.NoError(t, store.Close())

	reopened, err := trackingout.NewSQLiteKVStore(dbPath, clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Get(context.Background(), "tracker")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestFileKVStore(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "snapshots")
	store := trackingout.NewFileKVStore(dir)

	exerciseKVStore(t, store)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"tracker.json", "tracker.corrupt.json"}, names)
}

func TestFileKVStoreRejectsPathKeys(t *testing.T) {
	t.Parallel()
	store := trackingout.NewFileKVStore(t.TempDir())
	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.ErrorIs(t, store.Put(context.Background(), key, []byte("x")), apperrors.ErrInvalidInput, key)
		_, err := store.Get(context.Background(), key)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, key)
	}
}
