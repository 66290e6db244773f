package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreMissingFile(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, credentialsVersion, store.Version)
	assert.NotNil(t, store.Servers)
	assert.Empty(t, store.Servers)
}

func TestOpenStoreInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := OpenStore(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing "+path)
}

func TestStoreSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store, err := OpenStore(path)
	require.NoError(t, err)

	store.Put("http://localhost:3456", "", "tok123")
	store.Put("https://mcp.example.com/mcp", "apikey", "key-9")
	require.NoError(t, store.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := OpenStore(path)
	require.NoError(t, err)

	saved, ok := reopened.Lookup("http://localhost:3456")
	require.True(t, ok)
	assert.Equal(t, "tok123", saved.Token)
	assert.Equal(t, "bearer", saved.Type)
	assert.False(t, saved.SavedAt.IsZero())

	saved, ok = reopened.Lookup("https://mcp.example.com/mcp")
	require.True(t, ok)
	assert.Equal(t, "api_key", saved.Type)

	_, ok = reopened.Lookup("http://other")
	assert.False(t, ok)
}

func TestResolveToken(t *testing.T) {
	t.Setenv("MCPROBE_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials.json"))
	t.Setenv("MCPROBE_AUTH_TOKEN", "")

	path, err := RememberToken("http://srv", "api_key", "from-file")
	require.NoError(t, err)
	assert.Equal(t, CredentialsPath(), path)

	token, typ := ResolveToken("from-flag", "http://srv")
	assert.Equal(t, "from-flag", token)
	assert.Empty(t, typ)

	token, typ = ResolveToken("", "http://srv")
	assert.Equal(t, "from-file", token)
	assert.Equal(t, "api_key", typ)

	token, _ = ResolveToken("", "http://unknown")
	assert.Empty(t, token)

	t.Setenv("MCPROBE_AUTH_TOKEN", "from-env")
	token, typ = ResolveToken("", "http://srv")
	assert.Equal(t, "from-env", token)
	assert.Empty(t, typ)
}

func TestCredentialsPathOverride(t *testing.T) {
	t.Setenv("MCPROBE_CREDENTIALS_FILE", "/tmp/custom.json")
	assert.Equal(t, "/tmp/custom.json", CredentialsPath())
}
