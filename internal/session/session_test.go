package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chxlky/contract-kanban/internal/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	user := uuid.New()

	token, err := store.Create(ctx, user)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	got, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	require.NoError(t, store.Delete(ctx, token))
	_, err = store.Lookup(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Lookup(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDBStore(t *testing.T) {
	exerciseStore(t, NewDBStore(testutil.DB(t), time.Hour))
}

func TestDBStoreExpiry(t *testing.T) {
	store := NewDBStore(testutil.DB(t), time.Hour)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	token, err := store.Create(context.Background(), uuid.New())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = store.Lookup(context.Background(), token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis session tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseStore(t, NewRedisStore(rdb, time.Minute))
}
