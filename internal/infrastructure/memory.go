package infrastructure

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps photos in process memory. Used by tests and the
// memory storage driver.
type MemoryStorage struct {
	mu   sync.RWMutex
	objs map[string][]byte
	// FailUpload makes every Upload fail when set.
	FailUpload error
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objs: make(map[string][]byte)}
}

func (s *MemoryStorage) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if s.FailUpload != nil {
		return "", s.FailUpload
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.objs[key] = cp
	s.mu.Unlock()
	return key, nil
}

func (s *MemoryStorage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objs[key]; !ok {
		return "", fmt.Errorf("photo %s not found", key)
	}
	return "memory://" + key, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objs, key)
	s.mu.Unlock()
	return nil
}

// Get returns the stored bytes for key.
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objs[key]
	return data, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objs)
}
