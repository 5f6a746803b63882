// Package objectstore abstracts the binary blob store holding uploaded file
// contents. Blobs are addressed by a storage path generated at upload time;
// reads go through time-limited signed URLs.
package objectstore

import (
	"context"
	"time"
)

// ObjectStore is the interface the vault service uses to talk to blob
// storage. Implementations must make Upload non-overwriting: writing to an
// occupied key fails instead of silently replacing the blob.
type ObjectStore interface {
	// Upload stores body at key. Fails if the key is already occupied.
	Upload(ctx context.Context, key string, body []byte, contentType string) error

	// SignedURL returns a fresh time-limited URL granting read access to key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes the blob at key.
	Delete(ctx context.Context, key string) error
}
