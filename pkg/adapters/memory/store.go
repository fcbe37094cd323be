package memory

import (
	"context"
	"slices"
	"sync"
)

// DefaultMaxLen bounds each root's trail when no limit is given.
const DefaultMaxLen = 1000

// TrailStore implements ports.TrailSink in memory.
// Safe for concurrent use.
type TrailStore struct {
	data   map[string][][]byte
	maxLen int
	mu     sync.RWMutex
}

// NewTrailStore creates a new in-memory trail keeping at most maxLen entries
// per root (DefaultMaxLen when maxLen <= 0).
func NewTrailStore(maxLen int) *TrailStore {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &TrailStore{
		data:   make(map[string][][]byte),
		maxLen: maxLen,
	}
}

// Append records a copy of payload, evicting the oldest entry when full.
func (s *TrailStore) Append(ctx context.Context, rootID string, payload []byte) error {
	entry := slices.Clone(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	trail := append(s.data[rootID], entry)
	if over := len(trail) - s.maxLen; over > 0 {
		trail = slices.Delete(trail, 0, over)
	}
	s.data[rootID] = trail
	return nil
}

// Recent returns up to n of the latest entries, oldest first.
func (s *TrailStore) Recent(ctx context.Context, rootID string, n int) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.data[rootID]
	if n > 0 && n < len(trail) {
		trail = trail[len(trail)-n:]
	}

	// Copy on read so callers can't mutate stored entries.
	out := make([][]byte, len(trail))
	for i, entry := range trail {
		out[i] = slices.Clone(entry)
	}
	return out, nil
}

// Delete drops a root's trail.
func (s *TrailStore) Delete(ctx context.Context, rootID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, rootID)
	return nil
}

// Roots returns the ids of roots with a recorded trail.
func (s *TrailStore) Roots(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roots := make([]string, 0, len(s.data))
	for id := range s.data {
		roots = append(roots, id)
	}
	slices.Sort(roots)
	return roots, nil
}
