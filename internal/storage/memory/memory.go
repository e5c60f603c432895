package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodtune/plexbw/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of pairs remembered in memory. A server
// has one pair per account and device, so the default is never reached in
// practice; an evicted pair may re-emit its latest bucket once.
const DefaultCapacity = 1 << 20

// Store is an in-process storage.MarkerStore. Markers live for the lifetime
// of the process. The least recently advanced pair is forgotten once more
// than capacity pairs have been seen.
type Store struct {
	mu      sync.Mutex
	markers *lru.Cache[storage.PairKey, int64]
}

// Open creates a memory store holding at most capacity pairs, or
// DefaultCapacity when capacity is not positive.
func Open(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	markers, err := lru.New[storage.PairKey, int64](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create marker cache: %w", err)
	}

	return &Store{markers: markers}, nil
}

// Advance implements storage.MarkerStore.
func (s *Store) Advance(_ context.Context, key storage.PairKey, at int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, found := s.markers.Get(key)
	if !found || previous < at {
		s.markers.Add(key, at)
	}
	return previous, found, nil
}

// Get implements storage.MarkerStore.
func (s *Store) Get(_ context.Context, key storage.PairKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.markers.Get(key); ok {
		return v, nil
	}
	return 0, storage.ErrNotFound
}

// Len returns the number of pairs currently tracked.
func (s *Store) Len() int {
	return s.markers.Len()
}

// Close implements storage.MarkerStore.
func (s *Store) Close() error {
	s.markers.Purge()
	return nil
}
