package cryptoengine

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, SessionKeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)

	testCases := []struct {
		name      string
		plaintext []byte
		aad       []byte
	}{
		{name: "Empty plaintext", plaintext: []byte{}, aad: nil},
		{name: "Short plaintext", plaintext: []byte("hi bob"), aad: nil},
		{name: "Medium plaintext with AAD", plaintext: bytes.Repeat([]byte("abcdefgh"), 10), aad: []byte("transfer-aad")},
		{name: "Long plaintext", plaintext: bytes.Repeat([]byte("01234567"), 1000), aad: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := Seal(key, tc.plaintext, tc.aad)
			require.NoError(t, err)
			if len(tc.plaintext) > 0 {
				assert.NotEqual(t, tc.plaintext, []byte(sealed.Ciphertext))
			}

			plaintext, err := Open(key, sealed, tc.aad)
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, plaintext)
		})
	}
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	key := testKey(t)
	sealed, err := Seal(key, []byte("payload"), []byte("right-aad"))
	require.NoError(t, err)

	_, err = Open(key, sealed, []byte("wrong-aad"))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	sealed, err := Seal(key, []byte("payload"), nil)
	require.NoError(t, err)

	_, err = Open(other, sealed, nil)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	key := testKey(t)
	sealed, err := Seal(key, []byte("payload"), nil)
	require.NoError(t, err)
	sealed.Ciphertext = sealed.Ciphertext[:4]

	_, err = Open(key, sealed, nil)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestChunkAADDiffersByIndex(t *testing.T) {
	a := ChunkAAD("transfer-1", 0)
	b := ChunkAAD("transfer-1", 1)
	assert.NotEqual(t, a, b)

	key := testKey(t)
	sealed, err := Seal(key, []byte("chunk bytes"), a)
	require.NoError(t, err)

	// Relocating the chunk to a different index must fail authentication.
	_, err = Open(key, sealed, b)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	plaintext, err := Open(key, sealed, a)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk bytes"), plaintext)
}
