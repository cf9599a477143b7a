package buildstate

import (
	"context"
	"sort"
	"sync"
)

// Store persists the state of every pipeline stage key.
// Get returns Unknown for keys that were never written.
type Store interface {
	Get(ctx context.Context, key string) (State, error)
	Set(ctx context.Context, key string, state State) error
	All(ctx context.Context) (map[string]State, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key string, state State) error {
	s.mu.Lock()
	s.states[key] = state
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out, nil
}

// Keys returns the stored keys in sorted order.
func Keys(states map[string]State) []string {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
