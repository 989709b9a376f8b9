// Package blob reads and writes small opaque files on local disk or in GCS.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when the blob does not exist.
var ErrNotFound = errors.New("blob: not found")

// Store reads and writes one blob.
type Store interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Location is the path or gs:// URI the store points at.
	Location() string
}

// NewStore picks a GCS store for gs:// paths and a file store otherwise.
func NewStore(path string) (Store, error) {
	if strings.HasPrefix(path, "gs://") {
		bucket, object, err := ParseGCSURI(path)
		if err != nil {
			return nil, fmt.Errorf("NewStore: %w", err)
		}
		return &GCSStore{bucket: bucket, object: object}, nil
	}
	if path == "" {
		return nil, fmt.Errorf("NewStore: empty path")
	}
	return &FileStore{path: path}, nil
}

// FileStore keeps the blob in a local file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Location() string { return f.path }

func (f *FileStore) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("FileStore.Read: reading %q: %w", f.path, err)
	}
	return data, nil
}

func (f *FileStore) Write(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("FileStore.Write: creating directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("FileStore.Write: writing %q: %w", f.path, err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
