package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string, int](10, time.Minute)

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok {
		t.Fatal("Get() should find key after Set()")
	}
	if v != 1 {
		t.Errorf("Get() = %d, want 1", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() should miss for unknown key")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New[string, string](10, 50*time.Millisecond)

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should be live before TTL elapses")
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("entry should have expired after TTL")
	}
}

func TestCache_BoundedEviction(t *testing.T) {
	c := New[int, int](3, 0)

	for i := 0; i < 5; i++ {
		c.Set(i, i)
	}

	if c.Len() > 3 {
		t.Errorf("Len() = %d, want at most 3", c.Len())
	}

	stats := c.GetStats()
	if stats.Evictions < 2 {
		t.Errorf("Evictions = %d, want at least 2", stats.Evictions)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New[string, int](10, time.Minute)

	c.Set("a", 1)
	if !c.Invalidate("a") {
		t.Error("Invalidate() should report true for present key")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get() should miss after Invalidate()")
	}
	if c.Invalidate("a") {
		t.Error("Invalidate() should report false for absent key")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string, int](10, time.Minute)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.GetStats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[string, int](128, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", i%32)
				c.Set(key, g)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() == 0 {
		t.Error("cache should retain entries after concurrent writes")
	}
}

func TestNew_DefaultSize(t *testing.T) {
	c := New[string, int](0, time.Minute)

	// Should not panic and should accept entries.
	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Error("cache with default size should store entries")
	}
}
