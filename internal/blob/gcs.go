package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore keeps the blob in a Cloud Storage object. It assumes Application
// Default Credentials are configured.
type GCSStore struct {
	bucket string
	object string
}

func (g *GCSStore) Location() string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, g.object)
}

func (g *GCSStore) Read(ctx context.Context) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Read: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GCSStore.Read: reading object %s/%s: %w", g.bucket, g.object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Read: reading bytes: %w", err)
	}
	return data, nil
}

func (g *GCSStore) Write(ctx context.Context, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("GCSStore.Write: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSStore.Write: writing object: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCSStore.Write: finalize upload: %w", err)
	}
	return nil
}
