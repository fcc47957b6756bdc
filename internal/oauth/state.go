package oauth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultStateTTL is how long an authorization transaction stays retrievable.
const DefaultStateTTL = 10 * time.Minute

// ErrStateNotFound is returned when a state is unknown or has expired.
var ErrStateNotFound = errors.New("state not found or expired")

// StateStore correlates an in-flight authorization transaction across
// requests. Records are keyed by the opaque OAuth state parameter and expire
// after a TTL measured from Save time.
//
// Callers that may legitimately retry (the callback exchange) must use the
// Peek/Consume pair: Peek leaves the record in place, Consume deletes it once
// the exchange has actually succeeded. Get is the legacy destructive read.
type StateStore interface {
	// Save stores data under state, overwriting any existing record.
	Save(ctx context.Context, state string, data map[string]string) error
	// Peek returns the data for state without deleting it, or
	// ErrStateNotFound if absent or expired.
	Peek(ctx context.Context, state string) (map[string]string, error)
	// Consume deletes state unconditionally and reports whether it was
	// present. Expiry was already checked at Peek time.
	Consume(ctx context.Context, state string) (bool, error)
	// Get atomically returns and deletes the data for state.
	//
	// Deprecated: Get destroys the record on first read even when the rest
	// of the flow fails afterwards. Use Peek and Consume for any flow that
	// may retry.
	Get(ctx context.Context, state string) (map[string]string, error)
}

type stateEntry struct {
	savedAt time.Time
	data    map[string]string
}

// MemoryStateStore is the in-process StateStore. All operations are
// synchronized; expired entries are purged before each operation runs.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStateStore creates a store with the given TTL. A non-positive ttl
// falls back to DefaultStateTTL.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &MemoryStateStore{
		entries: make(map[string]stateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores data under state with the current timestamp.
func (s *MemoryStateStore) Save(_ context.Context, state string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.entries[state] = stateEntry{savedAt: s.now(), data: data}
	return nil
}

// Peek returns the data for state without deleting it.
func (s *MemoryStateStore) Peek(_ context.Context, state string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	entry, ok := s.entries[state]
	if !ok {
		return nil, ErrStateNotFound
	}
	return entry.data, nil
}

// Consume deletes state if present and reports whether it was.
func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	return ok, nil
}

// Get atomically returns and deletes the data for state if not expired.
func (s *MemoryStateStore) Get(_ context.Context, state string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	entry, ok := s.entries[state]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.entries, state)
	return entry.data, nil
}

// sweep removes expired entries. Callers must hold the lock.
func (s *MemoryStateStore) sweep() {
	cutoff := s.now().Add(-s.ttl)
	for key, entry := range s.entries {
		if !entry.savedAt.After(cutoff) {
			delete(s.entries, key)
		}
	}
}
