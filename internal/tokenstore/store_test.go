package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testServer = "http://localhost:8000/api"

// exerciseStore runs the shared contract against any Store implementation
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	access, err := s.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access, "fresh store should have no access token")
	assert.False(t, HasSession(s))

	require.NoError(t, s.SetTokens("A1", "R1"))
	access, err = s.AccessToken()
	require.NoError(t, err)
	refresh, err := s.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "A1", access)
	assert.Equal(t, "R1", refresh)
	assert.True(t, HasSession(s))

	require.NoError(t, s.SetAccessToken("A2"))
	access, _ = s.AccessToken()
	refresh, _ = s.RefreshToken()
	assert.Equal(t, "A2", access)
	assert.Equal(t, "R1", refresh, "refreshing the access token must keep the refresh token")

	require.NoError(t, s.Clear())
	access, _ = s.AccessToken()
	refresh, _ = s.RefreshToken()
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	// Clearing twice is fine
	require.NoError(t, s.Clear())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, NewKeyringStore(testServer))
}

func TestKeyringStore_ScopedPerServer(t *testing.T) {
	keyring.MockInit()

	a := NewKeyringStore("http://a.example.com/api")
	b := NewKeyringStore("http://b.example.com/api")

	require.NoError(t, a.SetTokens("A", "RA"))

	access, err := b.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir(), testServer))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewFileStore(dir, testServer).SetTokens("A1", "R1"))
	require.NoError(t, NewFileStore(dir, "http://other/api").SetTokens("A9", "R9"))

	reopened := NewFileStore(dir, testServer)
	access, err := reopened.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "A1", access)

	info, err := os.Stat(filepath.Join(dir, credentialsFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, reopened.Clear())
	other, err := NewFileStore(dir, "http://other/api").AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "A9", other, "clearing one server must not touch another")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, credentialsFileName), []byte("servers: [oops"), 0o600))

	_, err := NewFileStore(dir, testServer).AccessToken()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse credentials file")
}

func TestOpen(t *testing.T) {
	tests := []struct {
		kind    string
		want    any
		wantErr bool
	}{
		{kind: "", want: &KeyringStore{}},
		{kind: "keyring", want: &KeyringStore{}},
		{kind: "FILE", want: &FileStore{}},
		{kind: "memory", want: &MemoryStore{}},
		{kind: "vault", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			s, err := Open(tt.kind, testServer, t.TempDir())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}
