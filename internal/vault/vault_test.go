package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n1/helix/internal/secretstore"
)

type memStore map[string][]byte

func (m memStore) Put(name string, data []byte) error { m[name] = data; return nil }
func (m memStore) Get(name string) ([]byte, error) {
	d, ok := m[name]
	if !ok {
		return nil, assert.AnError
	}
	return d, nil
}
func (m memStore) Delete(name string) error { delete(m, name); return nil }

func withMemStore(t *testing.T) {
	t.Helper()
	prev := secretstore.Default
	secretstore.Default = memStore{}
	t.Cleanup(func() { secretstore.Default = prev })
}

func TestOpenCreatesVaultIDAndMasterKey(t *testing.T) {
	withMemStore(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()

	assert.NotEmpty(t, v.ID())
}

func TestLastIdentifierRoundTripsAcrossReopen(t *testing.T) {
	withMemStore(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, v1.SetLastIdentifier("alice"))
	require.NoError(t, v1.Close())

	v2, err := Open(path)
	require.NoError(t, err)
	defer v2.Close()

	got, err := v2.LastIdentifier()
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, v1.ID(), v2.ID())
}

func TestLastIdentifierEmptyBeforeFirstRegistration(t *testing.T) {
	withMemStore(t)
	path := filepath.Join(t.TempDir(), "vault.db")

	v, err := Open(path)
	require.NoError(t, err)
	defer v.Close()

	got, err := v.LastIdentifier()
	require.NoError(t, err)
	assert.Empty(t, got)
}
