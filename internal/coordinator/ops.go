package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/handshake"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/transfer"
	"github.com/n1/helix/internal/wire"
)

// Register sends the client's chosen identifier to the relay and starts the
// registration_timer (§4.3).
func (c *Coordinator) Register(identifier string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		if co.registered {
			outErr = ErrAlreadyRegistered
			return
		}
		co.localID = identifier
		co.sendEnvelope("", wire.TypeRegister, wire.RegisterPayload{Identifier: identifier})
		co.registrationTimer = co.clock.AfterFunc(co.cfg.RegistrationTimeout, func() {
			co.exec(func(co2 *Coordinator) { co2.onRegistrationTimeout() })
		})
	})
	return outErr
}

func (c *Coordinator) onRegistrationTimeout() {
	if c.registered {
		return
	}
	c.ui.ShowInfo("", "registration timed out", true)
}

// Initiate starts a new session with peerID as Initiator (§4.1
// local_initiate).
func (c *Coordinator) Initiate(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		if !co.registered {
			outErr = ErrNotRegistered
			return
		}
		if peerID == co.localID {
			outErr = ErrSelfPeer
			return
		}
		if _, exists := co.sessionFor(peerID); exists {
			outErr = ErrSessionExists
			return
		}
		for _, other := range co.sessions {
			if other.State == session.InitiatingSession {
				outErr = ErrAlreadyInitiating
				return
			}
		}
		sess := session.New(peerID, session.Initiator)
		sess.StartedAt = co.clock.Now()
		acts, timerOp, err := handshake.LocalInitiate(sess, co.localID)
		if err != nil {
			outErr = err
			return
		}
		co.sessions[peerID] = sess
		co.applyTimerOp(sess, timerOp)
		co.executeActions(acts)
		if co.metrics != nil {
			co.metrics.SessionsActive.Set(float64(len(co.sessions)))
		}
	})
	return outErr
}

// Accept accepts an inbound session request (§4.1 local_accept).
func (c *Coordinator) Accept(peerID string) error {
	return c.driveHandshake(peerID, func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
		return handshake.LocalAccept(sess, c.localID)
	})
}

// Deny rejects an inbound session request (§4.1 local_deny).
func (c *Coordinator) Deny(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		acts, err := handshake.LocalDeny(sess, co.localID)
		if err != nil {
			outErr = err
			return
		}
		co.executeActions(acts)
		co.recordOutcome("denied")
		co.dropSession(peerID)
	})
	return outErr
}

// CancelRequest withdraws a still-pending outbound request before the peer
// has responded.
func (c *Coordinator) CancelRequest(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		if sess.State != session.InitiatingSession {
			outErr = &handshake.ErrWrongState{Want: session.InitiatingSession, Got: sess.State}
			return
		}
		sess.State = session.Cancelled
		co.sendEnvelope(peerID, wire.TypeEndSession, wire.EndSessionPayload{PeerEnvelope: wire.NewPeerEnvelope(peerID, co.localID)})
		co.recordOutcome("cancelled")
		co.dropSession(peerID)
		co.ui.ResetSession(peerID, "request cancelled")
	})
	return outErr
}

// Retry re-initiates a session after a prior attempt reached a terminal
// state.
func (c *Coordinator) Retry(peerID string) error {
	c.exec(func(co *Coordinator) {
		if sess, ok := co.sessionFor(peerID); ok && sess.State.IsTerminal() {
			co.dropSession(peerID)
		}
	})
	return c.Initiate(peerID)
}

// ConfirmSAS records the local operator's SAS confirmation (§4.1
// local_confirm).
func (c *Coordinator) ConfirmSAS(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		acts, err := handshake.LocalConfirmSAS(sess, co.localID)
		if err != nil {
			outErr = err
			return
		}
		co.executeActions(acts)
		co.checkHandshakeCompletion(sess)
	})
	return outErr
}

// DenySAS and CancelPendingSAS both abort a handshake at the SAS-
// verification stage, notifying the peer (§4.1/§6).
func (c *Coordinator) DenySAS(peerID string) error   { return c.abortSAS(peerID) }
func (c *Coordinator) CancelPendingSAS(peerID string) error { return c.abortSAS(peerID) }

func (c *Coordinator) abortSAS(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		sess.State = session.SasDenied
		co.sendEnvelope(peerID, wire.TypeEndSession, wire.EndSessionPayload{PeerEnvelope: wire.NewPeerEnvelope(peerID, co.localID)})
		co.recordOutcome("sas_denied")
		co.dropSession(peerID)
		co.ui.ResetSession(peerID, "SAS verification declined")
	})
	return outErr
}

// EndSession tears down an established (or in-progress) session and
// notifies the peer.
func (c *Coordinator) EndSession(peerID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		if _, ok := co.sessionFor(peerID); !ok {
			outErr = ErrNoSuchSession
			return
		}
		co.executeOne(action.ResetSession(peerID, "session ended", true))
		co.recordOutcome("ended")
	})
	return outErr
}

// SendChat encrypts and sends a chat (or "/me" action) message over an
// Active session (§4.5).
func (c *Coordinator) SendChat(peerID, text string, isAction bool) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		if sess.State != session.Active {
			outErr = ErrNotActive
			return
		}
		plaintext, err := json.Marshal(wire.ChatPlaintext{IsAction: isAction, Text: text})
		if err != nil {
			outErr = fmt.Errorf("coordinator: marshal chat plaintext: %w", err)
			return
		}
		sealed, err := cryptoengine.Seal(sess.SessionKey, plaintext, nil)
		if err != nil {
			outErr = fmt.Errorf("coordinator: encrypt chat message: %w", err)
			return
		}
		co.sendEnvelope(peerID, wire.TypeChat, wire.ChatEnvelopePayload{
			PeerEnvelope: wire.NewPeerEnvelope(peerID, co.localID),
			IV:           sealed.IV,
			Data:         sealed.Ciphertext,
		})
		kind := session.KindOwn
		if isAction {
			kind = session.KindMeAction
		}
		sess.Messages = append(sess.Messages, session.HistoryEntry{Sender: co.localID, Text: text, Kind: kind})
		if isAction {
			co.ui.DisplayMeAction(peerID, co.localID, text)
		} else {
			co.ui.DisplayMessage(peerID, co.localID, text)
		}
	})
	return outErr
}

// NotifyTypingStart/NotifyTypingStop send Type 10/11 over an Active session
// (§4.5). Each call sends exactly one envelope; the coordinator keeps no
// local typing-stop timer, so no Type 11 is sent after local inactivity.
func (c *Coordinator) NotifyTypingStart(peerID string) error {
	return c.withActiveSession(peerID, func(co *Coordinator, sess *session.Session) {
		co.sendEnvelope(peerID, wire.TypeTypingStart, wire.TypingStartPayload{PeerEnvelope: wire.NewPeerEnvelope(peerID, co.localID)})
	})
}

func (c *Coordinator) NotifyTypingStop(peerID string) error {
	return c.withActiveSession(peerID, func(co *Coordinator, sess *session.Session) {
		co.sendEnvelope(peerID, wire.TypeTypingStop, wire.TypingStopPayload{PeerEnvelope: wire.NewPeerEnvelope(peerID, co.localID)})
	})
}

func (c *Coordinator) withActiveSession(peerID string, f func(co *Coordinator, sess *session.Session)) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		if sess.State != session.Active {
			outErr = ErrNotActive
			return
		}
		f(co, sess)
	})
	return outErr
}

// OfferFile begins a sender-side file transfer: validates size, mints a
// transfer_id, and sends the Type 12 offer (§4.6 step 1).
func (c *Coordinator) OfferFile(peerID, fileName string, fileSize int64, fileType string, src transfer.ByteReaderAt) (string, error) {
	var outErr error
	var transferID string
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		if sess.State != session.Active {
			outErr = ErrNotActive
			return
		}
		if err := transfer.ValidateForSend(fileSize, co.cfg.MaxFileSize); err != nil {
			outErr = err
			return
		}
		transferID = newTransferID()
		st := transfer.NewSenderState(transferID, fileName, fileSize, fileType, src)
		st.Status = transfer.PendingAcceptance
		sess.Transfers[transferID] = st
		co.executeOne(transfer.Offer(peerID, co.localID, transferID, fileName, fileSize, fileType))
		if co.metrics != nil {
			co.metrics.TransfersActive.Inc()
		}
	})
	return transferID, outErr
}

// AcceptFile accepts a receiver-side pending file offer (§4.6 step 2).
func (c *Coordinator) AcceptFile(peerID, transferID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		st, ok := sess.Transfers[transferID]
		if !ok || st.Role != transfer.Receiver {
			outErr = ErrNoSuchTransfer
			return
		}
		st.Status = transfer.Receiving
		co.executeOne(transfer.Accept(peerID, co.localID, transferID))
	})
	return outErr
}

// RejectFile declines a pending inbound file offer.
func (c *Coordinator) RejectFile(peerID, transferID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		st, ok := sess.Transfers[transferID]
		if !ok || st.Role != transfer.Receiver {
			outErr = ErrNoSuchTransfer
			return
		}
		co.executeOne(transfer.Reject(peerID, co.localID, transferID))
		delete(sess.Transfers, transferID)
		if err := co.chunks.DeleteTransfer(transferID); err != nil {
			co.logger.Warn().Err(err).Str("transfer", transferID).Msg("failed to delete rejected transfer chunks")
		}
	})
	return outErr
}

// CancelTransfer aborts an in-progress transfer on local request (§4.6 step
// 6: local cancel_transfer — send Type 17, mark Cancelled).
func (c *Coordinator) CancelTransfer(peerID, transferID string) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		st, ok := sess.Transfers[transferID]
		if !ok {
			outErr = ErrNoSuchTransfer
			return
		}
		st.Status = transfer.Cancelled
		if st.CancelUpload != nil {
			st.CancelUpload()
		}
		co.executeOne(transfer.FileErrorMsg(peerID, co.localID, transferID, "cancelled locally"))
		co.cleanupTransfer(sess, transferID)
	})
	return outErr
}

// driveHandshake is the shared shape of Accept/other single-step handshake
// operations: look up the session, run one pure transition, apply its
// TimerOp and actions.
func (c *Coordinator) driveHandshake(peerID string, step func(*session.Session) ([]action.Action, handshake.TimerOp, error)) error {
	var outErr error
	c.exec(func(co *Coordinator) {
		sess, ok := co.sessionFor(peerID)
		if !ok {
			outErr = ErrNoSuchSession
			return
		}
		acts, timerOp, err := step(sess)
		if err != nil {
			outErr = err
			return
		}
		co.applyTimerOp(sess, timerOp)
		co.executeActions(acts)
	})
	return outErr
}

// LiveTransferIDs snapshots every transfer_id currently tracked by any
// session, for the janitor's orphan sweep (§4.6, durable chunk store
// invariant: a chunk row outlives its transfer only until the next sweep).
func (c *Coordinator) LiveTransferIDs() map[string]bool {
	live := make(map[string]bool)
	c.exec(func(co *Coordinator) {
		for _, sess := range co.sessions {
			for transferID := range sess.Transfers {
				live[transferID] = true
			}
		}
	})
	return live
}

// checkHandshakeCompletion records the handshake-duration metric and active-
// session outcome once a session reaches Active.
func (c *Coordinator) checkHandshakeCompletion(sess *session.Session) {
	if sess.State != session.Active || c.metrics == nil {
		return
	}
	c.metrics.HandshakeDurationSeconds.Observe(c.clock.Now().Sub(sess.StartedAt).Seconds())
	c.recordOutcome("active")
}
