package cache

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// =============================================================================
// GET / SET / TTL
// =============================================================================

func TestGetMissingKey(t *testing.T) {
	c := New()
	if _, ok := c.Get("nothing"); ok {
		t.Error("expected miss for key that was never set")
	}
}

func TestSetThenGet(t *testing.T) {
	c := New()
	c.Set("k", 42, time.Minute)

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestEntryExpires(t *testing.T) {
	// GIVEN: An entry stored with a 1 minute TTL
	// WHEN: The clock moves past the TTL
	// THEN: Get misses and the entry is evicted

	c := New()
	start := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	c.now = fixedClock(start)
	c.Set("k", "value", time.Minute)

	c.now = fixedClock(start.Add(59 * time.Second))
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired early")
	}

	c.now = fixedClock(start.Add(61 * time.Second))
	if _, ok := c.Get("k"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, size %d", c.Len())
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	c := New()
	start := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	c.now = fixedClock(start)
	c.Set("k", "value", 0)

	c.now = fixedClock(start.Add(DefaultTTL - time.Second))
	if _, ok := c.Get("k"); !ok {
		t.Error("entry with default TTL expired early")
	}

	c.now = fixedClock(start.Add(DefaultTTL + time.Second))
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire after the default TTL")
	}
}

func TestSetRefreshesExisting(t *testing.T) {
	c := New()
	start := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	c.now = fixedClock(start)
	c.Set("k", "old", time.Minute)

	c.now = fixedClock(start.Add(50 * time.Second))
	c.Set("k", "new", time.Minute)

	c.now = fixedClock(start.Add(90 * time.Second))
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("refreshed entry should still be live")
	}
	if v.(string) != "new" {
		t.Errorf("expected refreshed value, got %v", v)
	}
}

// =============================================================================
// INVALIDATION
// =============================================================================

func TestClearSingleKey(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Clear("a")

	if _, ok := c.Get("a"); ok {
		t.Error("cleared key should miss")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("other key should survive")
	}
}

func TestClearAll(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.ClearAll()

	if c.Len() != 0 {
		t.Errorf("expected empty cache, size %d", c.Len())
	}
}

func TestInvalidatePatternScopedToClient(t *testing.T) {
	// GIVEN: Cached views for two clients plus the shared client list
	// WHEN: One client's entries are invalidated after a write
	// THEN: The other client's entries survive

	c := New()
	c.Set(DashboardKey("client-1"), "d1", time.Minute)
	c.Set(ComplianceKey("client-1"), "l1", time.Minute)
	c.Set(SummaryKey("client-1", 2025), "s1", time.Minute)
	c.Set(DashboardKey("client-2"), "d2", time.Minute)

	c.InvalidatePattern("client-1")

	for _, key := range []string{
		DashboardKey("client-1"),
		ComplianceKey("client-1"),
		SummaryKey("client-1", 2025),
	} {
		if _, ok := c.Get(key); ok {
			t.Errorf("key %q should have been invalidated", key)
		}
	}
	if _, ok := c.Get(DashboardKey("client-2")); !ok {
		t.Error("unrelated client's entry should survive")
	}
}

// =============================================================================
// SWEEP / JANITOR
// =============================================================================

func TestSweepRemovesOnlyExpired(t *testing.T) {
	c := New()
	start := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	c.now = fixedClock(start)
	c.Set("short", 1, time.Minute)
	c.Set("long", 2, time.Hour)

	c.now = fixedClock(start.Add(5 * time.Minute))
	removed := c.Sweep()

	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("unexpired entry should survive the sweep")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", c.Len())
	}
}

func TestJanitorSweepsInBackground(t *testing.T) {
	c := New()
	start := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	c.now = fixedClock(start)
	c.Set("k", 1, time.Minute)

	// Everything is now expired from the cache's point of view.
	c.now = fixedClock(start.Add(5 * time.Minute))

	j := NewJanitor(c)
	j.SweepInterval = 5 * time.Millisecond
	j.Start()
	defer j.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor never swept the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJanitorStopIsIdempotentAndWaits(t *testing.T) {
	j := NewJanitor(New())
	j.SweepInterval = time.Millisecond
	j.Start()
	j.Stop()
	j.Stop()
}
