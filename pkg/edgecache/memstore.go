package edgecache

import (
	"encoding/json"
	"sync"

	"github.com/tidwall/btree"
)

// MemStore is an in-memory Store backed by an ordered B-tree map. It is
// safe for concurrent use and is the store of choice for tests and for
// sharing one cache across engine instances in the same process.
type MemStore struct {
	mu   sync.RWMutex
	data btree.Map[string, []byte]
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Get returns the record stored under key, if any.
func (s *MemStore) Get(key string) (*Record, bool, error) {
	s.mu.RLock()
	raw, ok := s.data.Get(key)
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// Put stores the record under key, replacing any previous value.
func (s *MemStore) Put(key string, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data.Set(key, raw)
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}
