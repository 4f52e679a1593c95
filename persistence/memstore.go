package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is a Store that keeps the contents in memory. It is useful for
// ephemeral runs and for testing.
type MemStore struct {
	lock     sync.Mutex
	contents map[string][]byte
	saves    int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		contents: make(map[string][]byte),
	}
}

// Load returns a copy of the contents saved under the id.
func (s *MemStore) Load(_ context.Context, id string) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, found := s.contents[id]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return append([]byte(nil), data...), nil
}

// Save stores a copy of the contents under the id.
func (s *MemStore) Save(_ context.Context, id string, contents []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.contents[id] = append([]byte(nil), contents...)
	s.saves++

	return nil
}

// IDs returns the sorted ids that have contents.
func (s *MemStore) IDs() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids := make([]string, 0, len(s.contents))
	for id := range s.contents {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// NumSaves returns how many times Save has been called.
func (s *MemStore) NumSaves() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.saves
}
