// ABOUTME: Tests for the dedupe cache used to collapse retried IPC requests.
// ABOUTME: Validates TTL expiration, size limits, eviction and concurrency safety.

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
)

func TestCache_Get_NotSeen(t *testing.T) {
	cache := New[int](5*time.Minute, 100, nil)

	_, ok := cache.Get("never-seen-key")
	assert.False(t, ok)
}

func TestCache_LoadOrStore(t *testing.T) {
	cache := New[string](5*time.Minute, 100, nil)

	v, loaded := cache.LoadOrStore("key", func() string { return "first" })
	assert.False(t, loaded)
	assert.Equal(t, "first", v)

	// Second store returns the original value without calling create
	v, loaded = cache.LoadOrStore("key", func() string {
		t.Fatal("create called for a live key")
		return "second"
	})
	assert.True(t, loaded)
	assert.Equal(t, "first", v)
}

func TestCache_Expired(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	cache := New[string](time.Minute, 100, clk)

	cache.LoadOrStore("expiring-key", func() string { return "a" })

	clk.Advance(59 * time.Second)
	_, ok := cache.Get("expiring-key")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = cache.Get("expiring-key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())

	v, loaded := cache.LoadOrStore("expiring-key", func() string { return "b" })
	assert.False(t, loaded)
	assert.Equal(t, "b", v)
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New[int](5*time.Minute, 3, nil)

	for i, key := range []string{"key-1", "key-2", "key-3", "key-4"} {
		cache.LoadOrStore(key, func() int { return i })
	}

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("key-1")
	assert.False(t, ok, "oldest key should be evicted")
	for _, key := range []string{"key-2", "key-3", "key-4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, key)
	}
}

func TestCache_ConcurrentLoadOrStore(t *testing.T) {
	cache := New[int](5*time.Minute, 100, nil)
	var created atomic.Int32

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.LoadOrStore("shared", func() int {
				return int(created.Add(1))
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}
