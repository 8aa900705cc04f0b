package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestGetSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:abc", "7", 0))
	v, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ttl_key", "val", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "ttl_key")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := c.Exists(ctx, "ttl_key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelAndExists(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", 0)
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	_ = c.Del(ctx, "k")
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZSetRanking(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, m := range []string{"alice", "bob", "bob", "carol", "bob", "carol"} {
		_, err := c.ZIncrBy(ctx, "ranking:kills", 1, m)
		require.NoError(t, err)
	}
	require.NoError(t, c.ZAdd(ctx, "ranking:kills", 2, "dave"))

	top, err := c.ZRevRangeWithScores(ctx, "ranking:kills", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []Z{
		{Member: "bob", Score: 3},
		{Member: "dave", Score: 2},
		{Member: "carol", Score: 2},
		{Member: "alice", Score: 1},
	}, top)

	top, _ = c.ZRevRangeWithScores(ctx, "ranking:kills", 0, 1)
	assert.Len(t, top, 2)
	top, _ = c.ZRevRangeWithScores(ctx, "ranking:kills", 10, 20)
	assert.Empty(t, top)

	score, err := c.ZScore(ctx, "ranking:kills", "carol")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
	_, err = c.ZScore(ctx, "ranking:kills", "zed")
	assert.ErrorIs(t, err, ErrNotFound)

	n, _ := c.ZCard(ctx, "ranking:kills")
	assert.Equal(t, int64(4), n)
}

func TestList(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "l", "c", "b", "a"))
	items, err := c.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	require.NoError(t, c.LPush(ctx, "l", "z"))
	require.NoError(t, c.LTrim(ctx, "l", 0, 1))
	items, _ = c.LRange(ctx, "l", 0, -1)
	assert.Equal(t, []string{"z", "a"}, items)

	items, _ = c.LRange(ctx, "l", -1, -1)
	assert.Equal(t, []string{"a"}, items)
	items, _ = c.LRange(ctx, "missing", 0, -1)
	assert.Empty(t, items)
}

func TestDelRemovesAnyType(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.ZAdd(ctx, "z", 1, "a"))
	require.NoError(t, c.LPush(ctx, "l", "x"))

	require.NoError(t, c.Del(ctx, "z", "l"))
	n, _ := c.ZCard(ctx, "z")
	assert.Zero(t, n)
	items, _ := c.LRange(ctx, "l", 0, -1)
	assert.Empty(t, items)
}
