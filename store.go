package stateguard

import (
	"context"
	"sync"
	"time"
)

// Store holds in-flight state entries. Implementations must be safe for
// concurrent use: BeginFlow inserts, CompleteFlow takes, and the sweep bulk
// deletes, all from independent goroutines.
type Store interface {
	// Insert adds a new entry. It reports whether the token was free; a
	// false return means a live entry already holds the token and the
	// caller should mint a new one.
	Insert(ctx context.Context, entry StateEntry) (bool, error)

	// Take atomically removes and returns the entry for token. Exactly one
	// caller ever observes ok=true for a given token; every other caller,
	// including those racing the sweep, observes ok=false.
	Take(ctx context.Context, token string) (StateEntry, bool, error)

	// SweepExpired removes every entry created at or before now-threshold
	// and returns how many were removed.
	SweepExpired(ctx context.Context, now time.Time, threshold time.Duration) (int, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)
}

// MemoryStore is the default process-local Store. States minted on one
// instance are invisible to another; see store/bunstore for a shared store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]StateEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]StateEntry),
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, entry StateEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Token]; exists {
		return false, nil
	}

	s.entries[entry.Token] = entry
	return true, nil
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, token string) (StateEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return StateEntry{}, false, nil
	}

	delete(s.entries, token)
	return entry, true, nil
}

// SweepExpired implements Store.
func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time, threshold time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > threshold {
			delete(s.entries, token)
			removed++
		}
	}

	return removed, nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
