package coordinator

import (
	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/wire"
)

// sendEnvelope encodes and transmits one wire envelope, logging (never
// panicking) on transport failure — the relay link is assumed to reconnect
// and redeliver is out of scope (§1).
func (c *Coordinator) sendEnvelope(peerID string, t wire.MessageType, payload any) {
	raw, err := wire.Encode(t, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("peer", peerID).Str("type", t.String()).Msg("failed to encode outbound envelope")
		return
	}
	if err := c.transport.Send(raw); err != nil {
		c.logger.Warn().Err(err).Str("peer", peerID).Str("type", t.String()).Msg("failed to send outbound envelope")
	}
}

// executeActions is the exhaustive switch over action.Kind that realizes
// every tagged-union action the handshake and transfer engines return
// (§9: "Dynamic dispatch → tagged variants").
func (c *Coordinator) executeActions(acts []action.Action) {
	for _, a := range acts {
		c.executeOne(a)
	}
}

func (c *Coordinator) executeOne(a action.Action) {
	switch a.Kind {
	case action.None:
		// no-op variant; nothing to do.
	case action.SendEnvelope:
		c.sendEnvelope(a.PeerID, a.EnvelopeType, a.Payload)
	case action.CalculateAndShowSAS:
		c.ui.ShowSAS(a.PeerID, a.SAS)
	case action.PeerSasConfirmed:
		c.ui.PeerConfirmedSAS(a.PeerID)
	case action.DisplayMessage:
		c.ui.DisplayMessage(a.PeerID, a.PeerID, a.Text)
	case action.DisplayMeAction:
		c.ui.DisplayMeAction(a.PeerID, a.PeerID, a.Text)
	case action.DisplaySystemMessage:
		c.ui.DisplaySystemMessage(a.PeerID, a.Text)
	case action.ShowInfo:
		c.ui.ShowInfo(a.PeerID, a.Reason, a.AllowRetry)
	case action.Reset:
		if a.NotifyPeer {
			c.sendEnvelope(a.PeerID, wire.TypeEndSession, wire.EndSessionPayload{
				PeerEnvelope: wire.NewPeerEnvelope(a.PeerID, c.localID),
			})
		}
		c.dropSession(a.PeerID)
		c.ui.ResetSession(a.PeerID, a.ResetReason)
	case action.ShowTyping:
		c.ui.ShowTyping(a.PeerID)
	case action.HideTyping:
		c.ui.HideTyping(a.PeerID)
	case action.FileOffered:
		c.ui.FileOffered(a.PeerID, a.TransferID, a.FileName, a.FileSize)
	case action.FileProgress:
		c.ui.FileProgress(a.PeerID, a.TransferID, a.Progress)
	case action.FileCompleted:
		c.ui.FileCompleted(a.PeerID, a.TransferID, a.ArtifactRef)
	case action.FileFailed:
		c.ui.FileFailed(a.PeerID, a.TransferID, a.FileError)
	default:
		c.logger.Warn().Int("kind", int(a.Kind)).Msg("unhandled action kind")
	}
}
