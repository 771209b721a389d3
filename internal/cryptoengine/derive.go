package cryptoengine

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo is the fixed application-specific HKDF info string; empty
// salt per the mandated derivation.
const sessionKeyInfo = "helix-session-key-v1"

// SessionKeySize is the AES-256-GCM key length in bytes.
const SessionKeySize = 32

// DeriveSessionKey turns an ECDH shared secret into a uniformly random
// 256-bit AES-GCM key via HKDF-SHA-256, empty salt, fixed info string.
func DeriveSessionKey(sharedSecret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(sessionKeyInfo))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cryptoengine: derive session key: %w", err)
	}
	return key, nil
}

// DeriveSubKey derives a child key from a session key for a purpose outside
// the session's own AES-GCM channel (e.g. naming a per-transfer key), using
// the same HKDF construction with a caller-supplied info string.
func DeriveSubKey(sessionKey []byte, info string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, sessionKey, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptoengine: derive sub key: %w", err)
	}
	return out, nil
}
