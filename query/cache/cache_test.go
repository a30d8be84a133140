package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Evictions)
	assert.Equal(t, int64(3), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 2, s.Size)
	assert.InDelta(t, 75.0, s.HitRate(), 1e-9)
}

func TestLRUUpdateAndInvalidate(t *testing.T) {
	c := New[string](3)
	c.Set("a", "x")
	c.Set("a", "y")
	assert.Equal(t, 1, c.Len())

	v, _ := c.Get("a")
	assert.Equal(t, "y", v)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", "1")
	c.Set("c", "2")
	c.Clear()
	assert.Zero(t, c.Len())
}

func TestLRUSingleEntry(t *testing.T) {
	c := New[int](0)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestLRUConcurrentUse(t *testing.T) {
	c := New[int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := Key("q", string(rune('a'+(i+j)%26)))
				c.Set(k, j)
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("ab"), Key("a", "b"))
	assert.Len(t, Key("x"), 64)
}
