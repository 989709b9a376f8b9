package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	identity string
	sessions map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) RegisterIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("MemoryStore.RegisterIdentity: empty identity")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = identity
	if _, ok := m.sessions[identity]; !ok {
		m.sessions[identity] = make(map[string][]byte)
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == "" {
		return ErrNoIdentity
	}
	data, ok := m.sessions[m.identity][key]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("MemoryStore.Get: decoding %q: %w", key, err)
	}
	return nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("MemoryStore.Set: encoding %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == "" {
		return ErrNoIdentity
	}
	m.sessions[m.identity][key] = data
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == "" {
		return ErrNoIdentity
	}
	delete(m.sessions[m.identity], key)
	return nil
}
