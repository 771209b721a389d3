package uiadapter

import "sync"

// Event is one recorded UIAdapter call, for test assertions.
type Event struct {
	Kind   string
	PeerID string
	Fields map[string]any
}

// Recorder is a UIAdapter that appends every call to a slice instead of
// rendering it, for coordinator tests.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) record(kind, peerID string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: kind, PeerID: peerID, Fields: fields})
}

// All returns a snapshot of recorded events.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}

func (r *Recorder) IncomingRequest(peerID string) {
	r.record("IncomingRequest", peerID, nil)
}

func (r *Recorder) ShowSAS(peerID, sas string) {
	r.record("ShowSAS", peerID, map[string]any{"sas": sas})
}
func (r *Recorder) PeerConfirmedSAS(peerID string) {
	r.record("PeerConfirmedSAS", peerID, nil)
}
func (r *Recorder) DisplayMessage(peerID, sender, text string) {
	r.record("DisplayMessage", peerID, map[string]any{"sender": sender, "text": text})
}
func (r *Recorder) DisplayMeAction(peerID, sender, text string) {
	r.record("DisplayMeAction", peerID, map[string]any{"sender": sender, "text": text})
}
func (r *Recorder) DisplaySystemMessage(peerID, text string) {
	r.record("DisplaySystemMessage", peerID, map[string]any{"text": text})
}
func (r *Recorder) ShowInfo(peerID, reason string, allowRetry bool) {
	r.record("ShowInfo", peerID, map[string]any{"reason": reason, "allow_retry": allowRetry})
}
func (r *Recorder) ResetSession(peerID, reason string) {
	r.record("ResetSession", peerID, map[string]any{"reason": reason})
}
func (r *Recorder) ShowTyping(peerID string) {
	r.record("ShowTyping", peerID, nil)
}
func (r *Recorder) HideTyping(peerID string) {
	r.record("HideTyping", peerID, nil)
}
func (r *Recorder) FileOffered(peerID, transferID, fileName string, fileSize int64) {
	r.record("FileOffered", peerID, map[string]any{"transfer_id": transferID, "file_name": fileName, "file_size": fileSize})
}
func (r *Recorder) FileProgress(peerID, transferID string, percent int) {
	r.record("FileProgress", peerID, map[string]any{"transfer_id": transferID, "percent": percent})
}
func (r *Recorder) FileCompleted(peerID, transferID, artifactRef string) {
	r.record("FileCompleted", peerID, map[string]any{"transfer_id": transferID, "artifact_ref": artifactRef})
}
func (r *Recorder) FileFailed(peerID, transferID, reason string) {
	r.record("FileFailed", peerID, map[string]any{"transfer_id": transferID, "reason": reason})
}
