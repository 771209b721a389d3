// Package action defines the tagged-union action records returned by the
// handshake and file-transfer handlers (§9: "Dynamic dispatch → tagged
// variants"). The coordinator's executor switches over Kind and is
// exhaustive over the set below.
package action

import "github.com/n1/helix/internal/wire"

// Kind discriminates the variant held by an Action.
type Kind int

const (
	None Kind = iota
	SendEnvelope        // Send a wire envelope to PeerID.
	CalculateAndShowSAS // Compute and present the SAS pane.
	PeerSasConfirmed    // Peer's 7.1 arrived; surface the peer's confirmation to the UI.
	DisplayMessage      // Append + surface a peer chat line.
	DisplayMeAction     // Append + surface a "/me" action line.
	DisplaySystemMessage
	ShowInfo // Info pane with optional retry.
	Reset    // Tear down the session.
	ShowTyping
	HideTyping
	FileOffered   // Present an incoming file offer to the UI.
	FileProgress  // Update a transfer's progress indicator.
	FileCompleted // Surface the assembled artifact.
	FileFailed    // Surface a transfer-scoped error.
)

// Action is the sum type every handshake/file handler returns. Only the
// field(s) relevant to Kind are populated; the coordinator's executor reads
// exactly those.
type Action struct {
	Kind Kind

	PeerID string

	// SendEnvelope
	EnvelopeType wire.MessageType
	Payload      any

	// CalculateAndShowSAS / PeerSasConfirmed
	SAS string

	// DisplayMessage / DisplayMeAction / DisplaySystemMessage
	Text string

	// ShowInfo
	Reason      string
	AllowRetry  bool

	// Reset
	ResetReason string
	NotifyPeer  bool // send Type 9 before tearing down

	// File* actions
	TransferID  string
	FileName    string
	FileSize    int64
	Progress    int
	ArtifactRef string
	FileError   string
}

// Offered builds a FileOffered action.
func Offered(peerID, transferID, fileName string, fileSize int64) Action {
	return Action{Kind: FileOffered, PeerID: peerID, TransferID: transferID, FileName: fileName, FileSize: fileSize}
}

// Progress builds a FileProgress action.
func Progress(peerID, transferID string, percent int) Action {
	return Action{Kind: FileProgress, PeerID: peerID, TransferID: transferID, Progress: percent}
}

// Completed builds a FileCompleted action.
func Completed(peerID, transferID, artifactRef string) Action {
	return Action{Kind: FileCompleted, PeerID: peerID, TransferID: transferID, ArtifactRef: artifactRef}
}

// Failed builds a FileFailed action.
func Failed(peerID, transferID, reason string) Action {
	return Action{Kind: FileFailed, PeerID: peerID, TransferID: transferID, FileError: reason}
}

// Send builds a SendEnvelope action.
func Send(peerID string, t wire.MessageType, payload any) Action {
	return Action{Kind: SendEnvelope, PeerID: peerID, EnvelopeType: t, Payload: payload}
}

// ResetSession builds a Reset action.
func ResetSession(peerID, reason string, notifyPeer bool) Action {
	return Action{Kind: Reset, PeerID: peerID, ResetReason: reason, NotifyPeer: notifyPeer}
}

// Info builds a ShowInfo action.
func Info(peerID, reason string, allowRetry bool) Action {
	return Action{Kind: ShowInfo, PeerID: peerID, Reason: reason, AllowRetry: allowRetry}
}

// Message builds a DisplayMessage action (a peer chat line).
func Message(peerID, text string) Action {
	return Action{Kind: DisplayMessage, PeerID: peerID, Text: text}
}

// MeAction builds a DisplayMeAction action (a peer "/me" line).
func MeAction(peerID, text string) Action {
	return Action{Kind: DisplayMeAction, PeerID: peerID, Text: text}
}

// SystemMessage builds a DisplaySystemMessage action.
func SystemMessage(peerID, text string) Action {
	return Action{Kind: DisplaySystemMessage, PeerID: peerID, Text: text}
}

// Typing builds a ShowTyping action.
func Typing(peerID string) Action { return Action{Kind: ShowTyping, PeerID: peerID} }

// TypingStopped builds a HideTyping action.
func TypingStopped(peerID string) Action { return Action{Kind: HideTyping, PeerID: peerID} }
