package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// FileBlobStore keeps blobs as files in a device-local directory.
// Writes go to a temp file first and are renamed into place, so a reader
// never sees a half-written blob.
type FileBlobStore struct {
	mu  sync.RWMutex
	dir string
}

func NewFileBlobStore(dir string) *FileBlobStore {
	return &FileBlobStore{dir: dir}
}

func (fs *FileBlobStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.Wrapf(ErrInvalidKey, "key %q", key)
	}
	return filepath.Join(fs.dir, key), nil
}

// Get reads the blob for key
func (fs *FileBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p, err := fs.path(key)
	if err != nil {
		return nil, false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put atomically replaces the blob for key
func (fs *FileBlobStore) Put(ctx context.Context, key string, data []byte) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.dir, 0o700); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	tmp, err := os.CreateTemp(fs.dir, "."+key+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close blob")
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace blob")
	}
	return nil
}

// Delete removes the blob for key
func (fs *FileBlobStore) Delete(ctx context.Context, key string) error {
	p, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove blob")
	}
	return nil
}
