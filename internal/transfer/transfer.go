// Package transfer models a single chunked file transfer (§3 TransferState,
// §4.6). It holds no coordinator or session back-reference — callers pass in
// whatever state they need — so it composes into session.Session without a
// dependency cycle.
package transfer

// Role is which side of the transfer this state represents.
type Role int

const (
	Sender Role = iota
	Receiver
)

// Status is one of the lifecycle states of §3.
type Status int

const (
	Initiating Status = iota
	PendingAcceptance
	Uploading
	Receiving
	AssemblyPending
	Complete
	Rejected
	Cancelled
	Errored
)

func (s Status) String() string {
	switch s {
	case Initiating:
		return "Initiating"
	case PendingAcceptance:
		return "PendingAcceptance"
	case Uploading:
		return "Uploading"
	case Receiving:
		return "Receiving"
	case AssemblyPending:
		return "AssemblyPending"
	case Complete:
		return "Complete"
	case Rejected:
		return "Rejected"
	case Cancelled:
		return "Cancelled"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// MaxFileSize and ChunkSize are the bounds mandated by §4.6; callers may
// override via config but these are the spec defaults.
const (
	MaxFileSize = 100 * 1024 * 1024
	ChunkSize   = 256 * 1024
)

// State is one in-flight file transfer, one per transfer_id.
type State struct {
	TransferID string
	Role       Role
	Status     Status

	FileName string
	FileSize int64
	FileType string

	// Sender side.
	Source       ByteReaderAt // nil for Receiver
	NextChunk    uint32       // next chunk index to send
	CancelUpload func()       // closes the chunk-loop goroutine's cancel channel

	// Receiver side.
	ExpectedChunks           uint32
	ReceivedChunkCount       uint32
	ReceivedChunkIndex       map[uint32]bool
	CompletionSignalReceived bool

	Progress        int
	AssembledArtifactRef string
}

// ByteReaderAt is the narrow interface the sender flow needs over a local
// file handle — satisfied by *os.File.
type ByteReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// ExpectedChunkCount computes ⌈fileSize / chunkSize⌉.
func ExpectedChunkCount(fileSize int64, chunkSize int) uint32 {
	if fileSize <= 0 {
		return 0
	}
	n := fileSize / int64(chunkSize)
	if fileSize%int64(chunkSize) != 0 {
		n++
	}
	return uint32(n)
}

// NewSenderState creates a Sender-role TransferState in Initiating status.
func NewSenderState(transferID, fileName string, fileSize int64, fileType string, src ByteReaderAt) *State {
	return &State{
		TransferID: transferID,
		Role:       Sender,
		Status:     Initiating,
		FileName:   fileName,
		FileSize:   fileSize,
		FileType:   fileType,
		Source:     src,
	}
}

// NewReceiverState creates a Receiver-role TransferState in
// PendingAcceptance status from an inbound Type 12 offer.
func NewReceiverState(transferID, fileName string, fileSize int64, fileType string, chunkSize int) *State {
	return &State{
		TransferID:         transferID,
		Role:               Receiver,
		Status:             PendingAcceptance,
		FileName:           fileName,
		FileSize:           fileSize,
		FileType:           fileType,
		ExpectedChunks:     ExpectedChunkCount(fileSize, chunkSize),
		ReceivedChunkIndex: make(map[uint32]bool),
	}
}

// RecordChunk marks chunkIndex as received (idempotent: duplicate indices
// overwrite, per §4.6 step 3) and returns the updated progress percentage.
func (s *State) RecordChunk(chunkIndex uint32) int {
	if !s.ReceivedChunkIndex[chunkIndex] {
		s.ReceivedChunkIndex[chunkIndex] = true
		s.ReceivedChunkCount++
	}
	if s.ExpectedChunks > 0 {
		s.Progress = int(s.ReceivedChunkCount * 100 / s.ExpectedChunks)
	}
	return s.Progress
}

// ReadyToAssemble reports whether both completion conditions of §4.6 step 5
// hold.
func (s *State) ReadyToAssemble() bool {
	return s.CompletionSignalReceived && s.ReceivedChunkCount == s.ExpectedChunks
}
