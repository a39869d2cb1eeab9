package cart

import (
	"context"
	"encoding/json"
	"log"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// DefaultMirrorKey names the device-local cart blob
const DefaultMirrorKey = "shoppy_cart.json"

// Fallback mirrors carts into a blob store. The signed-out cart lives under
// the base key and holds only lines that were never merged into an account.
// Each account's last known cart lives under a key of its own.
//
// Nothing here reports errors: failures are logged and loads degrade to an
// empty cart.
type Fallback struct {
	blobs store.BlobStore
	key   string
}

func NewFallback(blobs store.BlobStore, key string) *Fallback {
	if key == "" {
		key = DefaultMirrorKey
	}
	return &Fallback{blobs: blobs, key: key}
}

// Save stores the signed-out cart
func (f *Fallback) Save(ctx context.Context, c Cart) {
	f.save(ctx, f.key, c)
}

// Load returns the signed-out cart
func (f *Fallback) Load(ctx context.Context) Cart {
	return f.load(ctx, f.key)
}

// Discard removes the signed-out cart once its lines belong to an account
func (f *Fallback) Discard(ctx context.Context) {
	if err := f.blobs.Delete(ctx, f.key); err != nil {
		log.Printf("[Cart] Failed to remove cart mirror %s: %v", f.key, err)
	}
}

func (f *Fallback) SaveAccount(ctx context.Context, userID string, c Cart) {
	f.save(ctx, f.accountKey(userID), c)
}

func (f *Fallback) LoadAccount(ctx context.Context, userID string) Cart {
	return f.load(ctx, f.accountKey(userID))
}

func (f *Fallback) accountKey(userID string) string {
	return "account-" + url.PathEscape(userID) + "-" + f.key
}

func (f *Fallback) save(ctx context.Context, key string, c Cart) {
	lines := c.Lines
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		log.Printf("[Cart] %v", errors.Wrap(err, "encode cart mirror"))
		return
	}
	if err := f.blobs.Put(ctx, key, data); err != nil {
		log.Printf("[Cart] %v", errors.Wrapf(err, "save cart mirror %s", key))
	}
}

func (f *Fallback) load(ctx context.Context, key string) Cart {
	data, ok, err := f.blobs.Get(ctx, key)
	if err != nil {
		log.Printf("[Cart] %v", errors.Wrapf(err, "read cart mirror %s", key))
		return NewCart(nil)
	}
	if !ok {
		return NewCart(nil)
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		log.Printf("[Cart] Discarding unreadable cart mirror %s: %v", key, err)
		return NewCart(nil)
	}
	return NewCart(lines)
}
