package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenStore_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	tokens := NewFileTokenStore(path, "")

	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, tokens.Save("abc.def.ghi"))
	token, err = tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileTokenStore_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	tokens := NewFileTokenStore(path, "correct horse")

	require.NoError(t, tokens.Save("secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)
}

func TestFileTokenStore_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, NewFileTokenStore(path, "one").Save("secret-token"))

	_, err := NewFileTokenStore(path, "two").Load()

	assert.ErrorIs(t, err, ErrTokenFileSealed)
}

func TestFileTokenStore_TruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := NewFileTokenStore(path, "pass").Load()

	assert.ErrorIs(t, err, ErrTokenFileSealed)
}

func TestFileTokenStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	tokens := NewFileTokenStore(path, "")
	require.NoError(t, tokens.Save("t"))

	require.NoError(t, tokens.Clear())
	require.NoError(t, tokens.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
