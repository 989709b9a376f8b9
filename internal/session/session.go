// Package session keeps small per-identity key/value state between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoIdentity is returned when a store is used before RegisterIdentity.
	ErrNoIdentity = errors.New("session: no identity registered")

	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("session: key not found")
)

// Store holds JSON-encodable values under keys scoped to one identity.
type Store interface {
	// RegisterIdentity selects the identity later calls operate on and
	// creates its empty session when none exists.
	RegisterIdentity(ctx context.Context, identity string) error
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// New opens the store for backend. boltPath is used by the bolt backend only.
func New(backend, boltPath string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt:
		s, err := NewBoltStore(boltPath)
		if err != nil {
			return nil, fmt.Errorf("session.New: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("session.New: unknown backend %q", backend)
	}
}
