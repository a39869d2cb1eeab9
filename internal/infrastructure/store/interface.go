package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var ErrInvalidKey = errors.New("store: invalid key")

// BlobStore defines raw byte storage used to mirror device-local state
type BlobStore interface {
	// Get returns the blob stored under key; ok is false when nothing is stored
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Put replaces the blob stored under key
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the blob; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// Cache defines a TTL-bounded byte cache for remote responses
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Publisher defines an outbound event stream
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}
