package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/handshake"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/transfer"
	"github.com/n1/helix/internal/transport"
	"github.com/n1/helix/internal/wire"
)

func (c *Coordinator) handleTransportStatus(st transport.Status) {
	c.logger.Info().Str("status", st.String()).Msg("transport status changed")
	if st == transport.Disconnected {
		c.registered = false
	}
}

// handleInbound decodes one envelope and dispatches it. Malformed or
// out-of-sequence messages are logged and dropped, never fatal (§7:
// "never crash on a malformed/adversarial message").
func (c *Coordinator) handleInbound(raw []byte) {
	env, err := wire.Decode(raw)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed envelope")
		return
	}

	switch env.Type {
	case wire.TypeRegistered:
		var p wire.RegisteredPayload
		if c.decode(env, &p) {
			c.registered = true
			if c.registrationTimer != nil {
				c.registrationTimer.Stop()
			}
			c.ui.DisplaySystemMessage("", "registered as "+p.Identifier)
		}
	case wire.TypeRegistrationFailed:
		var p wire.RegistrationFailedPayload
		if c.decode(env, &p) {
			c.ui.ShowInfo("", "registration failed: "+p.Error, true)
		}
	case wire.TypeUserNotFound:
		var p wire.UserNotFoundPayload
		if c.decode(env, &p) {
			peerID := p.TargetID
			if sess, ok := c.sessionFor(peerID); ok && sess.State == session.InitiatingSession {
				// dropSession cancels the request_timer along with every
				// other timer on the session (§4.1 Type -1 tie-break).
				sess.State = session.Denied
				c.recordOutcome("denied")
				c.dropSession(peerID)
			}
			c.ui.ShowInfo(peerID, "user not found", true)
		}
	case wire.TypeServerDisconnect:
		var p wire.ServerDisconnectPayload
		if c.decode(env, &p) {
			c.registered = false
			c.ui.ShowInfo("", "disconnected: "+p.Error, false)
		}

	case wire.TypeSessionRequest:
		var p wire.SessionRequestPayload
		if !c.decode(env, &p) {
			return
		}
		peerID := p.Sender()
		if _, exists := c.sessionFor(peerID); exists {
			c.logger.Warn().Str("peer", peerID).Msg("ignoring session request: session already exists")
			return
		}
		sess := session.New(peerID, session.Responder)
		sess.StartedAt = c.clock.Now()
		handshake.HandleType1Inbound(sess)
		c.sessions[peerID] = sess
		if c.metrics != nil {
			c.metrics.SessionsActive.Set(float64(len(c.sessions)))
		}
		c.applyTimerOp(sess, handshake.StartRequestTimer)
		c.ui.IncomingRequest(peerID)

	case wire.TypeSessionAccept:
		var p wire.SessionAcceptPayload
		if c.decode(env, &p) {
			c.step(p.Sender(), func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
				return handshake.HandleType2(sess, c.localID, p.PublicKey)
			})
		}
	case wire.TypeSessionDeny:
		var p wire.SessionDenyPayload
		if c.decode(env, &p) {
			peerID := p.Sender()
			if sess, ok := c.sessionFor(peerID); ok {
				sess.State = session.Denied
				c.recordOutcome("denied")
				c.dropSession(peerID)
				c.ui.ShowInfo(peerID, "request denied", true)
			}
		}
	case wire.TypeInitiatorKey:
		var p wire.InitiatorKeyPayload
		if c.decode(env, &p) {
			c.step(p.Sender(), func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
				return handshake.HandleType4(sess, c.localID, p.PublicKey)
			})
		}
	case wire.TypeChallenge:
		var p wire.ChallengePayload
		if c.decode(env, &p) {
			c.step(p.Sender(), func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
				return handshake.HandleType5(sess, c.localID, p)
			})
		}
	case wire.TypeChallengeResponse:
		var p wire.ChallengeResponsePayload
		if c.decode(env, &p) {
			c.step(p.Sender(), func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
				return handshake.HandleType6(sess, c.localID, p)
			})
		}
	case wire.TypeEstablished:
		var p wire.EstablishedPayload
		if c.decode(env, &p) {
			c.step(p.Sender(), func(sess *session.Session) ([]action.Action, handshake.TimerOp, error) {
				return handshake.HandleType7(sess)
			})
		}
	case wire.TypeSasConfirm:
		var p wire.SasConfirmPayload
		if c.decode(env, &p) {
			peerID := p.Sender()
			sess, ok := c.sessionFor(peerID)
			if !ok {
				return
			}
			acts, err := handshake.HandleType71(sess)
			if err != nil {
				c.logger.Warn().Err(err).Str("peer", peerID).Msg("rejecting out-of-sequence Type 7.1")
				return
			}
			c.executeActions(acts)
			c.checkHandshakeCompletion(sess)
		}

	case wire.TypeChat:
		var p wire.ChatEnvelopePayload
		if c.decode(env, &p) {
			c.handleChat(p)
		}
	case wire.TypeEndSession:
		var p wire.EndSessionPayload
		if c.decode(env, &p) {
			peerID := p.Sender()
			if _, ok := c.sessionFor(peerID); ok {
				c.recordOutcome("peer_ended")
				c.dropSession(peerID)
				c.ui.ResetSession(peerID, "peer ended the session")
			}
		}
	case wire.TypeTypingStart:
		var p wire.TypingStartPayload
		if c.decode(env, &p) {
			c.handleTypingStart(p.Sender())
		}
	case wire.TypeTypingStop:
		var p wire.TypingStopPayload
		if c.decode(env, &p) {
			c.handleTypingStop(p.Sender())
		}

	case wire.TypeFileOffer:
		var p wire.FileOfferPayload
		if c.decode(env, &p) {
			c.handleFileOffer(p)
		}
	case wire.TypeFileAccept:
		var p wire.FileAcceptPayload
		if c.decode(env, &p) {
			c.handleFileAccept(p)
		}
	case wire.TypeFileReject:
		var p wire.FileRejectPayload
		if c.decode(env, &p) {
			c.handleFileReject(p)
		}
	case wire.TypeFileChunk:
		var p wire.FileChunkPayload
		if c.decode(env, &p) {
			c.handleFileChunk(p)
		}
	case wire.TypeFileComplete:
		var p wire.FileCompletePayload
		if c.decode(env, &p) {
			c.handleFileComplete(p)
		}
	case wire.TypeFileError:
		var p wire.FileErrorPayload
		if c.decode(env, &p) {
			c.handleFileError(p)
		}

	default:
		c.logger.Warn().Str("type", env.Type.String()).Msg("dropping unrecognized envelope type")
	}
}

func (c *Coordinator) decode(env wire.Envelope, dst any) bool {
	if err := wire.DecodePayload(env, dst); err != nil {
		c.logger.Warn().Err(err).Str("type", env.Type.String()).Msg("dropping envelope with unparseable payload")
		return false
	}
	return true
}

// step is the inbound counterpart of driveHandshake: look up the session by
// peer_id, run one pure transition, apply its TimerOp/actions.
func (c *Coordinator) step(peerID string, fn func(*session.Session) ([]action.Action, handshake.TimerOp, error)) {
	sess, ok := c.sessionFor(peerID)
	if !ok {
		c.logger.Warn().Str("peer", peerID).Msg("dropping message for unknown session")
		return
	}
	acts, timerOp, err := fn(sess)
	if err != nil {
		c.logger.Warn().Err(err).Str("peer", peerID).Msg("rejecting out-of-sequence handshake message")
		return
	}
	c.applyTimerOp(sess, timerOp)
	c.executeActions(acts)
}

func (c *Coordinator) handleChat(p wire.ChatEnvelopePayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok || sess.State != session.Active {
		c.logger.Warn().Str("peer", peerID).Msg("dropping chat message for non-Active session")
		return
	}
	plaintext, err := cryptoengine.Open(sess.SessionKey, cryptoengine.Sealed{IV: p.IV, Ciphertext: p.Data}, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("peer", peerID).Msg("dropping undecryptable chat message")
		return
	}
	var msg wire.ChatPlaintext
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		c.logger.Warn().Err(err).Str("peer", peerID).Msg("dropping malformed chat plaintext")
		return
	}
	kind := session.KindPeer
	if msg.IsAction {
		kind = session.KindMeAction
	}
	sess.Messages = append(sess.Messages, session.HistoryEntry{Sender: peerID, Text: msg.Text, Kind: kind})
	if msg.IsAction {
		c.executeOne(action.MeAction(peerID, msg.Text))
	} else {
		c.executeOne(action.Message(peerID, msg.Text))
	}
}

func (c *Coordinator) handleTypingStart(peerID string) {
	sess, ok := c.sessionFor(peerID)
	if !ok || sess.State != session.Active {
		return
	}
	sess.PeerIsTyping = true
	if sess.PeerTypingTimer != nil {
		sess.PeerTypingTimer.Stop()
	}
	sess.PeerTypingTimer = c.clock.AfterFunc(c.cfg.PeerTypingIndicatorTimeout, func() {
		c.exec(func(co *Coordinator) { co.onPeerTypingTimeout(peerID) })
	})
	c.executeOne(action.Typing(peerID))
}

func (c *Coordinator) handleTypingStop(peerID string) {
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	sess.PeerIsTyping = false
	if sess.PeerTypingTimer != nil {
		sess.PeerTypingTimer.Stop()
		sess.PeerTypingTimer = nil
	}
	c.executeOne(action.TypingStopped(peerID))
}

func (c *Coordinator) handleFileOffer(p wire.FileOfferPayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok || sess.State != session.Active {
		return
	}
	if err := transfer.ValidateForSend(p.FileSize, c.cfg.MaxFileSize); err != nil {
		c.executeOne(transfer.FileErrorMsg(peerID, c.localID, p.TransferID, err.Error()))
		return
	}
	st := transfer.NewReceiverState(p.TransferID, p.FileName, p.FileSize, p.FileType, c.cfg.ChunkSize)
	sess.Transfers[p.TransferID] = st
	if c.metrics != nil {
		c.metrics.TransfersActive.Inc()
	}
	c.executeOne(action.Offered(peerID, p.TransferID, p.FileName, p.FileSize))
}

func (c *Coordinator) handleFileAccept(p wire.FileAcceptPayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	st, ok := sess.Transfers[p.TransferID]
	if !ok || st.Role != transfer.Sender || st.Status != transfer.PendingAcceptance {
		return
	}
	st.Status = transfer.Uploading
	c.startUploadLoop(peerID, p.TransferID)
}

func (c *Coordinator) handleFileReject(p wire.FileRejectPayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	st, ok := sess.Transfers[p.TransferID]
	if !ok {
		return
	}
	st.Status = transfer.Rejected
	if st.CancelUpload != nil {
		st.CancelUpload()
	}
	delete(sess.Transfers, p.TransferID)
	if c.metrics != nil {
		c.metrics.TransfersActive.Dec()
	}
	c.executeOne(action.Failed(peerID, p.TransferID, "rejected by peer"))
}

func (c *Coordinator) handleFileChunk(p wire.FileChunkPayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	st, ok := sess.Transfers[p.TransferID]
	if !ok || st.Role != transfer.Receiver {
		return
	}
	plaintext, err := transfer.DecryptChunk(sess.SessionKey, p)
	if err != nil {
		c.logger.Warn().Err(err).Str("transfer", p.TransferID).Uint32("chunk", p.ChunkIndex).Msg("dropping undecryptable chunk")
		return
	}
	if err := c.chunks.Put(p.TransferID, p.ChunkIndex, plaintext); err != nil {
		c.logger.Error().Err(err).Str("transfer", p.TransferID).Msg("failed to persist chunk")
		return
	}
	if c.metrics != nil {
		c.metrics.TransferBytesTotal.WithLabelValues("received").Add(float64(len(plaintext)))
	}
	progress := st.RecordChunk(p.ChunkIndex)
	st.Status = transfer.Receiving
	c.executeOne(action.Progress(peerID, p.TransferID, progress))
	c.tryAssemble(sess, st)
}

func (c *Coordinator) handleFileComplete(p wire.FileCompletePayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	st, ok := sess.Transfers[p.TransferID]
	if !ok || st.Role != transfer.Receiver {
		return
	}
	st.CompletionSignalReceived = true
	c.tryAssemble(sess, st)
}

func (c *Coordinator) handleFileError(p wire.FileErrorPayload) {
	peerID := p.Sender()
	sess, ok := c.sessionFor(peerID)
	if !ok {
		return
	}
	if st, ok := sess.Transfers[p.TransferID]; ok {
		if st.CancelUpload != nil {
			st.CancelUpload()
		}
		delete(sess.Transfers, p.TransferID)
		if c.metrics != nil {
			c.metrics.TransfersActive.Dec()
		}
		if err := c.chunks.DeleteTransfer(p.TransferID); err != nil {
			c.logger.Warn().Err(err).Str("transfer", p.TransferID).Msg("failed to delete errored transfer chunks")
		}
	}
	c.executeOne(action.Failed(peerID, p.TransferID, p.Error))
}

// tryAssemble performs §4.6 step 5 once both completion conditions hold:
// reassemble, verify length, write the artifact, surface it, clean up.
func (c *Coordinator) tryAssemble(sess *session.Session, st *transfer.State) {
	if !st.ReadyToAssemble() {
		return
	}
	data, err := transfer.Assemble(c.chunks, st)
	if err != nil {
		c.executeOne(action.Failed(sess.PeerID, st.TransferID, err.Error()))
		c.cleanupTransfer(sess, st.TransferID)
		return
	}
	if err := os.MkdirAll(c.cfg.DownloadDir, 0o755); err != nil {
		c.executeOne(action.Failed(sess.PeerID, st.TransferID, err.Error()))
		c.cleanupTransfer(sess, st.TransferID)
		return
	}
	artifactPath := filepath.Join(c.cfg.DownloadDir, st.TransferID+"_"+st.FileName)
	if err := os.WriteFile(artifactPath, data, 0o644); err != nil {
		c.executeOne(action.Failed(sess.PeerID, st.TransferID, err.Error()))
		c.cleanupTransfer(sess, st.TransferID)
		return
	}
	st.Status = transfer.Complete
	st.AssembledArtifactRef = artifactPath
	c.executeOne(action.Completed(sess.PeerID, st.TransferID, artifactPath))
	c.cleanupTransfer(sess, st.TransferID)
}

func (c *Coordinator) cleanupTransfer(sess *session.Session, transferID string) {
	delete(sess.Transfers, transferID)
	if c.metrics != nil {
		c.metrics.TransfersActive.Dec()
	}
	if err := c.chunks.DeleteTransfer(transferID); err != nil {
		c.logger.Warn().Err(err).Str("transfer", transferID).Msg("failed to delete completed transfer chunks")
	}
}
