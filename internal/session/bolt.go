package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore persists sessions in a bbolt file, one bucket per identity.
type BoltStore struct {
	db *bolt.DB

	mu       sync.RWMutex
	identity string
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("NewBoltStore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("NewBoltStore: creating directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("NewBoltStore: failed to open database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) RegisterIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("BoltStore.RegisterIdentity: empty identity")
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(identity))
		return err
	})
	if err != nil {
		return fmt.Errorf("BoltStore.RegisterIdentity: failed to create bucket: %w", err)
	}

	b.mu.Lock()
	b.identity = identity
	b.mu.Unlock()
	return nil
}

func (b *BoltStore) current() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.identity == "" {
		return "", ErrNoIdentity
	}
	return b.identity, nil
}

func (b *BoltStore) Get(ctx context.Context, key string, dest interface{}) error {
	identity, err := b.current()
	if err != nil {
		return err
	}

	return b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(identity))
		if bkt == nil {
			return ErrNotFound
		}
		data := bkt.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("BoltStore.Get: decoding %q: %w", key, err)
		}
		return nil
	})
}

func (b *BoltStore) Set(ctx context.Context, key string, value interface{}) error {
	identity, err := b.current()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("BoltStore.Set: encoding %q: %w", key, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(identity))
		if err != nil {
			return fmt.Errorf("BoltStore.Set: bucket %s: %w", identity, err)
		}
		return bkt.Put([]byte(key), data)
	})
}

func (b *BoltStore) Delete(ctx context.Context, key string) error {
	identity, err := b.current()
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(identity))
		if bkt == nil {
			return nil
		}
		return bkt.Delete([]byte(key))
	})
}
