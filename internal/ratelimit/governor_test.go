package ratelimit

import (
	"testing"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGovernor() (*Governor, *MemoryStore, *fakeClock) {
	store := NewMemoryStore()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return NewGovernor(store, clock), store, clock
}

func TestCheckAllowsUpToLimit(t *testing.T) {
	g, _, _ := newTestGovernor()

	for i := 0; i < 3; i++ {
		d, err := g.Check("user-1", 3, time.Second)
		if err != nil {
			t.Fatalf("Check %d should be allowed: %v", i+1, err)
		}
		if d.Remaining != 2-i {
			t.Errorf("Check %d: remaining = %d, want %d", i+1, d.Remaining, 2-i)
		}
	}

	d, err := g.Check("user-1", 3, time.Second)
	if err == nil {
		t.Fatal("Fourth check inside the window should be rejected")
	}
	if !scoreerr.IsCode(err, scoreerr.CodeRateLimitExceeded) {
		t.Errorf("Expected RATE_LIMIT_EXCEEDED, got %v", err)
	}
	if d.Remaining != 0 {
		t.Errorf("Rejected decision remaining = %d, want 0", d.Remaining)
	}
	if !scoreerr.IsRecoverable(err) {
		t.Error("Rate limit errors should be recoverable (retry later)")
	}
}

func TestWindowResets(t *testing.T) {
	g, _, clock := newTestGovernor()

	for i := 0; i < 3; i++ {
		if _, err := g.Check("user-1", 3, time.Second); err != nil {
			t.Fatalf("Check %d failed: %v", i+1, err)
		}
	}
	if _, err := g.Check("user-1", 3, time.Second); err == nil {
		t.Fatal("Expected rejection at the limit")
	}

	clock.advance(1001 * time.Millisecond)

	d, err := g.Check("user-1", 3, time.Second)
	if err != nil {
		t.Fatalf("Check after window elapsed should be allowed: %v", err)
	}
	// Fresh window: count replaced with 1, not incremented.
	if d.Remaining != 2 {
		t.Errorf("Remaining after reset = %d, want 2", d.Remaining)
	}
}

func TestIdentitiesAreIndependent(t *testing.T) {
	g, _, _ := newTestGovernor()

	if _, err := g.Check("user-1", 1, time.Second); err != nil {
		t.Fatalf("user-1 first check failed: %v", err)
	}
	if _, err := g.Check("user-1", 1, time.Second); err == nil {
		t.Fatal("user-1 should be limited")
	}
	if _, err := g.Check("user-2", 1, time.Second); err != nil {
		t.Errorf("user-2 should be unaffected by user-1's window: %v", err)
	}
}

func TestExpiredWindowsArePurged(t *testing.T) {
	g, store, clock := newTestGovernor()

	for i := 0; i < 50; i++ {
		identity := string(rune('a' + i%26))
		g.Check(identity+"-suffix", 10, time.Second)
	}
	if store.Len() == 0 {
		t.Fatal("Expected tracked identities")
	}

	clock.advance(2 * time.Second)

	// Any check after the windows expire triggers the purge.
	g.Check("fresh", 10, time.Second)
	if store.Len() != 1 {
		t.Errorf("Expected only the fresh identity to remain, got %d entries", store.Len())
	}
}

func TestDecisionResetTime(t *testing.T) {
	g, _, clock := newTestGovernor()

	d, err := g.Check("user-1", 5, 30*time.Second)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	want := clock.Now().Add(30 * time.Second)
	if !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, want)
	}
}
