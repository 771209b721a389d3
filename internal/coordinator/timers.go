package coordinator

import (
	"github.com/n1/helix/internal/handshake"
	"github.com/n1/helix/internal/session"
)

// applyTimerOp realizes the TimerOp hint a handshake transition returned
// (§9: the handshake package is pure and cannot itself own a Clock).
func (c *Coordinator) applyTimerOp(sess *session.Session, op handshake.TimerOp) {
	switch op {
	case handshake.NoTimerOp:
	case handshake.StartRequestTimer:
		peerID := sess.PeerID
		sess.RequestTimer = c.clock.AfterFunc(c.requestTimeout(), func() {
			c.exec(func(co *Coordinator) { co.onRequestTimeout(peerID) })
		})
	case handshake.StartHandshakeTimer:
		peerID := sess.PeerID
		if sess.HandshakeTimer != nil {
			sess.HandshakeTimer.Stop()
		}
		sess.HandshakeTimer = c.clock.AfterFunc(c.handshakeTimeout(), func() {
			c.exec(func(co *Coordinator) { co.onHandshakeTimeout(peerID) })
		})
	case handshake.CancelRequestTimer:
		if sess.RequestTimer != nil {
			sess.RequestTimer.Stop()
			sess.RequestTimer = nil
		}
	case handshake.CancelAllTimers:
		sess.CancelTimers()
	}
}

// onRequestTimeout handles the request_timer firing while still
// RequestReceived/InitiatingSession (§4.3): drop the session, surface it.
func (c *Coordinator) onRequestTimeout(peerID string) {
	sess, ok := c.sessionFor(peerID)
	if !ok || (sess.State != session.InitiatingSession && sess.State != session.RequestReceived) {
		return
	}
	sess.State = session.RequestTimedOut
	c.recordOutcome("request_timed_out")
	c.dropSession(peerID)
	c.ui.ShowInfo(peerID, "request timed out", true)
}

// onHandshakeTimeout handles the handshake_timer firing before Active
// (§4.3).
func (c *Coordinator) onHandshakeTimeout(peerID string) {
	sess, ok := c.sessionFor(peerID)
	if !ok || sess.State.IsTerminal() || sess.State == session.Active {
		return
	}
	sess.State = session.HandshakeTimedOut
	c.recordOutcome("handshake_timed_out")
	c.dropSession(peerID)
	c.ui.ShowInfo(peerID, "handshake timed out", true)
}

// onPeerTypingTimeout hides the typing indicator after
// PeerTypingIndicatorTimeout elapses without a follow-up Type 10 (§4.5).
func (c *Coordinator) onPeerTypingTimeout(peerID string) {
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	sess.PeerIsTyping = false
	c.ui.HideTyping(peerID)
}
