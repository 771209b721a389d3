// Package cryptoengine implements the handshake's cryptographic primitives:
// ephemeral ECDH key agreement, HKDF session-key derivation, AES-GCM framing,
// and SAS digest computation.
package cryptoengine

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// KeyPair is an ephemeral ECDH P-256 key pair, held for the lifetime of a
// single session.
type KeyPair struct {
	Private *ecdh.PrivateKey
	Public  *ecdh.PublicKey
}

// GenerateKeyPair creates a fresh ephemeral ECDH P-256 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: generate key pair: %w", err)
	}
	return &KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}

// ExportSPKI encodes a public key as base64(SubjectPublicKeyInfo DER), the
// wire form exchanged in Type 2/4 payloads.
func ExportSPKI(pub *ecdh.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("cryptoengine: marshal SPKI: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ImportSPKI decodes a base64(SPKI DER) public key received from a peer.
func ImportSPKI(b64 string) (*ecdh.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: decode SPKI base64: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: parse SPKI: %w", err)
	}
	// A P-256 SPKI blob parses as *ecdsa.PublicKey (the NIST-curve OID path);
	// only X25519 keys parse directly as *ecdh.PublicKey. Convert explicitly.
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptoengine: SPKI key is not ECDSA")
	}
	ecdhPub, err := ecdsaPub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: convert to ECDH: %w", err)
	}
	return ecdhPub, nil
}

// SharedSecret computes the raw ECDH shared secret Z from our private key
// and the peer's public key. Callers must feed this through DeriveSessionKey,
// never use it directly as a symmetric key.
func SharedSecret(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey) ([]byte, error) {
	z, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: ECDH agreement: %w", err)
	}
	return z, nil
}
