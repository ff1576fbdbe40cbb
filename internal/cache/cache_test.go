package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGet(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryClient_MissReturnsErrCacheMiss(t *testing.T) {
	c := NewMemoryClient(10)
	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_TTLExpiry(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Delete(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, PageKey("doc-1", 1), []byte("a"), 0))
	require.NoError(t, c.Set(ctx, PageKey("doc-1", 2), []byte("b"), 0))
	require.NoError(t, c.Set(ctx, PageKey("doc-2", 1), []byte("c"), 0))

	require.NoError(t, c.DeleteByPrefix(ctx, "page:doc-1:"))

	_, err := c.Get(ctx, PageKey("doc-1", 1))
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, PageKey("doc-2", 1))
	assert.NoError(t, err)
}

func TestPageKey(t *testing.T) {
	assert.Equal(t, "page:doc-1:12", PageKey("doc-1", 12))
}
