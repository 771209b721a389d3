package cryptoengine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecryptionFailed is returned for any AES-GCM open failure: bad key,
// truncated ciphertext, tag mismatch, or mismatched associated data.
var ErrDecryptionFailed = errors.New("cryptoengine: decryption failed")

// Sealed is an AES-GCM envelope as carried on the wire: IV and ciphertext are
// each independently base64-encoded fields (spec §4.2 — IV transmitted
// alongside ciphertext, both base64), never concatenated into one blob.
type Sealed struct {
	IV         string // base64, 12 bytes decoded
	Ciphertext string // base64, includes the 16-byte GCM tag
}

// Seal encrypts plaintext under key with a fresh random 96-bit IV and
// optional associated data, returning the wire-ready envelope.
func Seal(key, plaintext, aad []byte) (Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Sealed{}, fmt.Errorf("cryptoengine: generate IV: %w", err)
	}
	ct := gcm.Seal(nil, iv, plaintext, aad)
	return Sealed{
		IV:         base64.StdEncoding.EncodeToString(iv),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}, nil
}

// Open decrypts a Sealed envelope under key, verifying the same associated
// data supplied at Seal time.
func Open(key []byte, s Sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv, err := base64.StdEncoding.DecodeString(s.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: bad IV encoding: %v", ErrDecryptionFailed, err)
	}
	ct, err := base64.StdEncoding.DecodeString(s.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding: %v", ErrDecryptionFailed, err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: wrong IV length", ErrDecryptionFailed)
	}
	pt, err := gcm.Open(nil, iv, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if pt == nil {
		pt = []byte{}
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: new GCM: %w", err)
	}
	return gcm, nil
}
