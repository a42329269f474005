package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/internal/database/testutil"
)

func newDatabaseStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	store := NewDatabaseStore(db)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestNewDatabaseStoreNil(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	_, _, err := store.IncrementWithTTL(context.Background(), "k", time.Minute)
	require.Error(t, err)
}

func TestDatabaseStoreIncrementFixedWindow(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "notify:abc", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Hour, ttl)

	*now = now.Add(10 * time.Minute)
	count, ttl, err = store.IncrementWithTTL(ctx, "notify:abc", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 50*time.Minute, ttl, "window is not extended by later increments")

	*now = now.Add(time.Hour)
	count, ttl, err = store.IncrementWithTTL(ctx, "notify:abc", time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "expired window restarts")
	require.Equal(t, time.Hour, ttl)
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), value)

	*now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))
	require.NoError(t, store.Delete(ctx, "forever"))
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "long", []byte("1"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("1"), 0))

	*now = now.Add(5 * time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	_, ok, err := store.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}
