package transfer

import (
	"errors"
	"fmt"

	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/wire"
)

// ErrEmptyFile and ErrFileTooLarge are the sender-side preflight failures
// of §4.6 step 1.
var (
	ErrEmptyFile    = errors.New("transfer: file is empty")
	ErrFileTooLarge = errors.New("transfer: file exceeds maximum size")

	// ErrAssemblyLengthMismatch is the post-assembly integrity failure of
	// §4.6 step 5.
	ErrAssemblyLengthMismatch = errors.New("transfer: assembled length does not match file_size")
)

// ValidateForSend enforces §4.6 step 1: size must be in (0, maxFileSize].
func ValidateForSend(fileSize, maxFileSize int64) error {
	if fileSize <= 0 {
		return ErrEmptyFile
	}
	if fileSize > maxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// Offer builds the Type 12 send action.
func Offer(peerID, localID, transferID, fileName string, fileSize int64, fileType string) action.Action {
	return action.Send(peerID, wire.TypeFileOffer, wire.FileOfferPayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
		FileName:     fileName,
		FileSize:     fileSize,
		FileType:     fileType,
	})
}

// Accept builds the Type 13 send action.
func Accept(peerID, localID, transferID string) action.Action {
	return action.Send(peerID, wire.TypeFileAccept, wire.FileAcceptPayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
	})
}

// Reject builds the Type 14 send action.
func Reject(peerID, localID, transferID string) action.Action {
	return action.Send(peerID, wire.TypeFileReject, wire.FileRejectPayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
	})
}

// Complete builds the Type 16 send action.
func Complete(peerID, localID, transferID string) action.Action {
	return action.Send(peerID, wire.TypeFileComplete, wire.FileCompletePayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
	})
}

// FileErrorMsg builds the Type 17 send action.
func FileErrorMsg(peerID, localID, transferID, reason string) action.Action {
	return action.Send(peerID, wire.TypeFileError, wire.FileErrorPayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
		Error:        reason,
	})
}

// EncryptChunk seals one chunk under sessionKey, binding transfer_id and
// chunk_index as AAD (§9 chunk-index authenticity hardening), and builds
// the Type 15 send action.
func EncryptChunk(sessionKey []byte, peerID, localID, transferID string, chunkIndex uint32, plaintext []byte) (action.Action, error) {
	sealed, err := cryptoengine.Seal(sessionKey, plaintext, cryptoengine.ChunkAAD(transferID, chunkIndex))
	if err != nil {
		return action.Action{}, fmt.Errorf("transfer: encrypt chunk %d: %w", chunkIndex, err)
	}
	return action.Send(peerID, wire.TypeFileChunk, wire.FileChunkPayload{
		PeerEnvelope: wire.NewPeerEnvelope(peerID, localID),
		TransferID:   transferID,
		ChunkIndex:   chunkIndex,
		IV:           sealed.IV,
		Data:         sealed.Ciphertext,
	}), nil
}

// DecryptChunk opens one received chunk, verifying the same transfer_id +
// chunk_index AAD the sender bound, rejecting chunks relocated to a
// different index.
func DecryptChunk(sessionKey []byte, p wire.FileChunkPayload) ([]byte, error) {
	plaintext, err := cryptoengine.Open(
		sessionKey,
		cryptoengine.Sealed{IV: p.IV, Ciphertext: p.Data},
		cryptoengine.ChunkAAD(p.TransferID, p.ChunkIndex),
	)
	if err != nil {
		return nil, fmt.Errorf("transfer: decrypt chunk %d: %w", p.ChunkIndex, err)
	}
	return plaintext, nil
}

// ChunkBounds returns the byte range [start, end) for chunkIndex within a
// file of fileSize bytes and chunkSize-byte chunks (§4.6 step 4).
func ChunkBounds(chunkIndex uint32, fileSize int64, chunkSize int) (start, end int64) {
	start = int64(chunkIndex) * int64(chunkSize)
	end = start + int64(chunkSize)
	if end > fileSize {
		end = fileSize
	}
	return start, end
}

// ChunkReader abstracts reading the receiver's assembled chunk store for
// the assembly step, satisfied by *chunkstore.Store.
type ChunkReader interface {
	AllOrdered(transferID string) ([]byte, error)
}

// Assemble concatenates all staged chunks in order and verifies the result's
// length equals the expected file size (§4.6 step 5). Callers must first
// check st.ReadyToAssemble().
func Assemble(store ChunkReader, st *State) ([]byte, error) {
	data, err := store.AllOrdered(st.TransferID)
	if err != nil {
		return nil, fmt.Errorf("transfer: read chunks for assembly: %w", err)
	}
	if int64(len(data)) != st.FileSize {
		return nil, ErrAssemblyLengthMismatch
	}
	return data, nil
}
