// Package uiadapter defines the narrow UI seam the coordinator drives (§6):
// every user-facing action.Action the handshake, transfer, and coordinator
// layers emit is realized by calling one of these methods, never by the
// core logic touching a terminal or a window directly.
package uiadapter

// UIAdapter is implemented once per front end (a terminal renderer, a log
// sink for a headless daemon, a test recorder). The coordinator's action
// executor is an exhaustive switch over action.Kind that ends in at most
// one of these calls per action (SendEnvelope and None make none).
type UIAdapter interface {
	IncomingRequest(peerID string)
	ShowSAS(peerID, sas string)
	PeerConfirmedSAS(peerID string)
	DisplayMessage(peerID, sender, text string)
	DisplayMeAction(peerID, sender, text string)
	DisplaySystemMessage(peerID, text string)
	ShowInfo(peerID, reason string, allowRetry bool)
	ResetSession(peerID, reason string)
	ShowTyping(peerID string)
	HideTyping(peerID string)
	FileOffered(peerID, transferID, fileName string, fileSize int64)
	FileProgress(peerID, transferID string, percent int)
	FileCompleted(peerID, transferID, artifactRef string)
	FileFailed(peerID, transferID, reason string)
}
