package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestShardedSetGetDelete(t *testing.T) {
	c := NewSharded[[]int]()
	c.Set("a", []int{1, 2})

	v, ok := c.Get("a")
	if !ok || len(v) != 2 {
		t.Fatalf("Get(a)=%v,%v expected [1 2],true", v, ok)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
}

func TestShardedExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSharded[string]()
	c.now = func() time.Time { return now }

	c.Set("old", "x")
	now = now.Add(2 * time.Minute)
	c.Set("new", "y")

	if _, ok := c.GetFresh("old", time.Minute); ok {
		t.Fatalf("old entry should be stale")
	}
	if _, ok := c.GetFresh("new", time.Minute); !ok {
		t.Fatalf("new entry should be fresh")
	}
	if removed := c.Cleanup(time.Minute); removed != 1 {
		t.Fatalf("Cleanup removed %d, expected 1", removed)
	}
	if stats := c.Stats(); stats.TotalItems != 1 || stats.OldestAge != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestShardedConcurrentWriters(t *testing.T) {
	c := NewSharded[int]()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Set(fmt.Sprintf("%d-%d", w, i), i)
			}
		}(w)
	}
	wg.Wait()
	if c.Len() != 800 {
		t.Fatalf("Len=%d, expected 800", c.Len())
	}
}
