package auth

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var ErrTokenFileSealed = errors.New("token file cannot be opened with this passphrase")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// FileTokenStore keeps the token in a file. With a passphrase the file is
// sealed with secretbox under a scrypt-derived key: salt | nonce | box.
type FileTokenStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

func NewFileTokenStore(path, passphrase string) *FileTokenStore {
	return &FileTokenStore{path: path, passphrase: passphrase}
}

// Load returns "" when no token has been saved
func (fs *FileTokenStore) Load() (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read token file")
	}

	if fs.passphrase == "" {
		return strings.TrimSpace(string(data)), nil
	}
	return open(data, fs.passphrase)
}

func (fs *FileTokenStore) Save(token string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data := []byte(token)
	if fs.passphrase != "" {
		sealed, err := seal(data, fs.passphrase)
		if err != nil {
			return err
		}
		data = sealed
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "create token directory")
	}
	if err := os.WriteFile(fs.path, data, 0o600); err != nil {
		return errors.Wrap(err, "write token file")
	}
	return nil
}

func (fs *FileTokenStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func seal(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

func open(sealed []byte, passphrase string) (string, error) {
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrTokenFileSealed
	}
	salt := sealed[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}
	plaintext, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrTokenFileSealed
	}
	return string(plaintext), nil
}
