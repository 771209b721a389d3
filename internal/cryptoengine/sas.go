package cryptoengine

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
)

// sasModulus reduces the leading 4 bytes of the digest to a 6-digit code.
const sasModulus = 1_000_000

// DeriveSAS computes the Short Authentication String shared by both ends of
// a handshake from their two SPKI-base64 public keys. The two strings are
// sorted lexicographically before concatenation so both sides — regardless
// of which one is the initiator — compute byte-identical input to SHA-256.
func DeriveSAS(spkiA, spkiB string) string {
	ordered := []string{spkiA, spkiB}
	sort.Strings(ordered)
	h := sha256.Sum256([]byte(ordered[0] + ordered[1]))
	n := binary.BigEndian.Uint32(h[:4]) % sasModulus
	return fmt.Sprintf("%06d", n)
}

// ChunkAAD builds the associated data bound into a file chunk's AES-GCM
// envelope: transfer_id concatenated with the chunk index as big-endian
// uint32. This authenticates the chunk's claimed position, defeating
// relocation of a genuine chunk to a different index.
func ChunkAAD(transferID string, chunkIndex uint32) []byte {
	aad := make([]byte, len(transferID)+4)
	copy(aad, transferID)
	binary.BigEndian.PutUint32(aad[len(transferID):], chunkIndex)
	return aad
}
