package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := New[string]("test", 10, time.Minute)

	c.Set("k", "v", 0)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_MissOnAbsent(t *testing.T) {
	c := New[int]("test", 10, time.Minute)

	_, ok := c.Get("nope")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(0), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New[string]("test", 10, time.Minute)

	c.Set("k", "v", 20*time.Millisecond)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry should have expired")
	// The expired entry is evicted at access, not merely hidden.
	assert.Zero(t, c.Len())
}

func TestCache_EvictsExactlyLRU(t *testing.T) {
	c := New[int]("test", 3, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// Touch a and c so b becomes least recently used.
	_, _ = c.Get("a")
	_, _ = c.Get("c")

	c.Set("d", 4, 0)

	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"), "b was LRU and must be the one evicted")
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
}

func TestCache_NeverExceedsMaxSize(t *testing.T) {
	c := New[int]("test", 5, time.Minute)

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, 0)
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestCache_SetExistingUpdatesInPlace(t *testing.T) {
	c := New[int]("test", 2, time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("a", 10, 0) // update, not insert: no eviction

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, got)
	assert.True(t, c.Has("b"))
}

func TestCache_HasDoesNotTouchStats(t *testing.T) {
	c := New[int]("test", 10, time.Minute)
	c.Set("a", 1, 0)

	c.Has("a")
	c.Has("missing")

	s := c.Stats()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)
}

func TestCache_HitRate(t *testing.T) {
	c := New[int]("test", 10, time.Minute)
	c.Set("a", 1, 0)

	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
}

func TestCache_Sweep(t *testing.T) {
	c := New[int]("test", 10, 10*time.Millisecond)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, time.Minute)

	time.Sleep(20 * time.Millisecond)
	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("b"))
}
