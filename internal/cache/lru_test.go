package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[[]string](2, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", []string{"GOA"})
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"GOA"}, got)

	c.Set("a", []string{"BIHAR"})
	got, _ = c.Get("a")
	assert.Equal(t, []string{"BIHAR"}, got)
	assert.Equal(t, 1, c.Size())

	assert.Equal(t, Stats{Size: 1, Hits: 2, Misses: 1}, c.Stats())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now least recently used
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[int](10, 20*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 0, c.CleanExpired())
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	c.Delete("k0")
	c.Delete("nope")
	assert.Equal(t, 4, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("k1")
	assert.False(t, ok)

	c.Set("k9", 9)
	assert.Equal(t, 1, c.Size())
}

func TestManager(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(context.Background(), 5*time.Millisecond)
	m.StartCleanup(context.Background(), 5*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}

func TestManagerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil)
	m.StartCleanup(ctx, time.Hour)
	cancel()
	m.Stop()
}

func TestManagerRestartsAfterStop(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	m := NewManager(nil)
	m.Register(c)

	for i := 0; i < 3; i++ {
		c.Set("a", i)
		m.StartCleanup(context.Background(), 5*time.Millisecond)
		assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
		assert.NotPanics(t, m.Stop)
	}
}

func TestManagerRestartsAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(nil)
	m.StartCleanup(ctx, time.Hour)
	cancel()

	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	m.Register(c)

	// The first routine may still be winding down; retry until a fresh one runs.
	assert.Eventually(t, func() bool {
		m.StartCleanup(context.Background(), 5*time.Millisecond)
		return c.Size() == 0
	}, time.Second, 10*time.Millisecond)
	m.Stop()
}
