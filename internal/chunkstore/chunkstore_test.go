package chunkstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("t1", 0, []byte("hello")))
	got, err := s.Get("t1", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateChunkIndexOverwrites(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("t1", 0, []byte("first")))
	require.NoError(t, s.Put("t1", 0, []byte("second")))

	got, err := s.Get("t1", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestAllOrderedReassemblesOutOfOrderChunks(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("t1", 1, []byte("BBB")))
	require.NoError(t, s.Put("t1", 0, []byte("AAA")))
	require.NoError(t, s.Put("t1", 2, []byte("CCC")))

	all, err := s.AllOrdered("t1")
	require.NoError(t, err)
	assert.Equal(t, []byte("AAABBBCCC"), all)
}

func TestDeleteTransferRemovesAllItsChunks(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("t1", 0, []byte("a")))
	require.NoError(t, s.Put("t1", 1, []byte("b")))
	require.NoError(t, s.Put("t2", 0, []byte("c")))

	require.NoError(t, s.DeleteTransfer("t1"))

	_, err := s.Get("t1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Get("t2", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

func TestDeleteOrphanedKeepsLiveTransfers(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("live", 0, []byte("a")))
	require.NoError(t, s.Put("dead", 0, []byte("b")))

	n, err := s.DeleteOrphaned(map[string]bool{"live": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get("live", 0)
	assert.NoError(t, err)
	_, err = s.Get("dead", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
