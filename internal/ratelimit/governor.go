package ratelimit

import (
	"sync"
	"time"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
)

// Clock abstracts wall-clock reads for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Window is one identity's usage inside the current rolling window. Entries
// are replaced, not incremented, once ResetAt has passed.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Store holds identity -> window state for the governor.
type Store interface {
	Get(identity string) (Window, bool)
	Set(identity string, w Window)
	Delete(identity string)
	Range(fn func(identity string, w Window) bool)
}

// MemoryStore is a mutex-guarded in-memory Store, safe for concurrent
// checks across requests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]Window)}
}

func (s *MemoryStore) Get(identity string) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[identity]
	return w, ok
}

func (s *MemoryStore) Set(identity string, w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[identity] = w
}

func (s *MemoryStore) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, identity)
}

func (s *MemoryStore) Range(fn func(identity string, w Window) bool) {
	s.mu.Lock()
	snapshot := make(map[string]Window, len(s.windows))
	for k, v := range s.windows {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

// Len returns the number of tracked identities.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Decision reports the state of an identity's window after a check.
type Decision struct {
	Remaining int
	ResetAt   time.Time
}

// Governor admits or rejects requests per identity. A single governor
// guards the submission endpoint; checks also purge expired windows so the
// store's memory stays bounded without a background task.
type Governor struct {
	mu    sync.Mutex
	store Store
	clock Clock
}

// NewGovernor creates a governor over the given store and clock. Nil
// arguments fall back to an in-memory store and the system clock.
func NewGovernor(store Store, clock Clock) *Governor {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Governor{store: store, clock: clock}
}

// Check admits one request for identity, allowing at most maxRequests per
// rolling window. A request over the limit fails with RATE_LIMIT_EXCEEDED;
// the Decision is valid either way so callers can always emit rate headers.
func (g *Governor) Check(identity string, maxRequests int, window time.Duration) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.purgeLocked(now)

	w, ok := g.store.Get(identity)
	if !ok || !now.Before(w.ResetAt) {
		// First request from this identity, or the old window elapsed:
		// replace with a fresh window.
		w = Window{Count: 1, ResetAt: now.Add(window)}
		g.store.Set(identity, w)
		return Decision{Remaining: maxRequests - 1, ResetAt: w.ResetAt}, nil
	}

	if w.Count >= maxRequests {
		return Decision{Remaining: 0, ResetAt: w.ResetAt},
			scoreerr.Newf(scoreerr.CodeRateLimitExceeded, true,
				"identity %q exceeded %d requests per %s", identity, maxRequests, window)
	}

	w.Count++
	g.store.Set(identity, w)
	return Decision{Remaining: maxRequests - w.Count, ResetAt: w.ResetAt}, nil
}

// purgeLocked drops windows whose reset time has elapsed. Called
// opportunistically on each check.
func (g *Governor) purgeLocked(now time.Time) {
	var expired []string
	g.store.Range(func(identity string, w Window) bool {
		if !now.Before(w.ResetAt) {
			expired = append(expired, identity)
		}
		return true
	})
	for _, identity := range expired {
		g.store.Delete(identity)
	}
}
