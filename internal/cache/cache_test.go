package cache

import (
	"sync"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c := New[string](time.Minute, 10)
	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, "v")
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c := New[int](20*time.Millisecond, 10)
	c.Set("k", 1)
	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("entry still present after TTL")
	}
}

func TestCacheCapEvictsOldest(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry missing")
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	t.Parallel()

	var c *Cache[string]
	c.Set("k", "v")
	c.Evict("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("nil cache returned a value")
	}
	if c.Len() != 0 {
		t.Fatal("nil cache has nonzero length")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute, 100)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := Key("worker", string(rune('a'+n)))
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}

func TestKeyStability(t *testing.T) {
	t.Parallel()

	if Key("a", "b") != Key("a", "b") {
		t.Fatal("same parts produced different keys")
	}
	if Key("a", "b") == Key("ab") {
		t.Fatal("part boundaries are not separated")
	}
}
