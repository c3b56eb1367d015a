package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryObjectStore keeps archives in memory, for tests and for runs without
// object storage
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]ArchiveObject
}

var _ ObjectStore = (*MemoryObjectStore)(nil)

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]ArchiveObject)}
}

// Put stores a copy of obj, replacing an archive under the same key
func (s *MemoryObjectStore) Put(_ context.Context, obj ArchiveObject) error {
	if obj.Key == "" {
		return ErrEmptyKey
	}
	obj.Body = append([]byte(nil), obj.Body...)

	s.mu.Lock()
	s.objects[obj.Key] = obj
	s.mu.Unlock()
	return nil
}

func (s *MemoryObjectStore) Get(key string) (ArchiveObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys returns the stored keys under prefix, sorted
func (s *MemoryObjectStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
