package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Init(ctx), "init must be idempotent")

	_, ok, err := store.Get(ctx, "username")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetMany(ctx, map[string]string{
		"isLoggedIn": "true",
		"username":   "alice",
	}))
	require.NoError(t, store.SetMany(ctx, map[string]string{"username": "bob"}))

	v, ok, err := store.Get(ctx, "username")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", v)

	got, err := store.GetMany(ctx, "isLoggedIn", "username", "missing")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"isLoggedIn": "true", "username": "bob"}, got)

	empty, err := store.GetMany(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.DeleteMany(ctx, "isLoggedIn", "username", "missing"))
	got, err = store.GetMany(ctx, "isLoggedIn", "username")
	require.NoError(t, err)
	assert.Empty(t, got)
}
