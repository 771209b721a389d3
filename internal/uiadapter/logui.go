package uiadapter

import "github.com/rs/zerolog"

// LogUI is a headless UIAdapter for cmd/helixd: every surface event is
// logged rather than rendered (at info level, except typing and progress
// events at debug and transfer failures at warn), since the daemon has no
// terminal or window of its own (a real front end drives the coordinator
// from the other side of a local control socket, out of scope here).
type LogUI struct {
	logger zerolog.Logger
}

// NewLogUI wraps logger for use as a UIAdapter.
func NewLogUI(logger zerolog.Logger) *LogUI {
	return &LogUI{logger: logger.With().Str("component", "ui").Logger()}
}

func (u *LogUI) IncomingRequest(peerID string) {
	u.logger.Info().Str("peer", peerID).Msg("incoming session request")
}

func (u *LogUI) ShowSAS(peerID, sas string) {
	u.logger.Info().Str("peer", peerID).Str("sas", sas).Msg("sas ready for verification")
}

func (u *LogUI) PeerConfirmedSAS(peerID string) {
	u.logger.Info().Str("peer", peerID).Msg("peer confirmed sas")
}

func (u *LogUI) DisplayMessage(peerID, sender, text string) {
	u.logger.Info().Str("peer", peerID).Str("sender", sender).Msg(text)
}

func (u *LogUI) DisplayMeAction(peerID, sender, text string) {
	u.logger.Info().Str("peer", peerID).Str("sender", sender).Msg("* " + text)
}

func (u *LogUI) DisplaySystemMessage(peerID, text string) {
	u.logger.Info().Str("peer", peerID).Msg(text)
}

func (u *LogUI) ShowInfo(peerID, reason string, allowRetry bool) {
	u.logger.Info().Str("peer", peerID).Bool("allow_retry", allowRetry).Msg(reason)
}

func (u *LogUI) ResetSession(peerID, reason string) {
	u.logger.Info().Str("peer", peerID).Msg("session reset: " + reason)
}

func (u *LogUI) ShowTyping(peerID string) {
	u.logger.Debug().Str("peer", peerID).Msg("peer is typing")
}

func (u *LogUI) HideTyping(peerID string) {
	u.logger.Debug().Str("peer", peerID).Msg("peer stopped typing")
}

func (u *LogUI) FileOffered(peerID, transferID, fileName string, fileSize int64) {
	u.logger.Info().Str("peer", peerID).Str("transfer", transferID).Str("file", fileName).Int64("size", fileSize).Msg("file offered")
}

func (u *LogUI) FileProgress(peerID, transferID string, percent int) {
	u.logger.Debug().Str("peer", peerID).Str("transfer", transferID).Int("percent", percent).Msg("file transfer progress")
}

func (u *LogUI) FileCompleted(peerID, transferID, artifactRef string) {
	u.logger.Info().Str("peer", peerID).Str("transfer", transferID).Str("artifact", artifactRef).Msg("file transfer complete")
}

func (u *LogUI) FileFailed(peerID, transferID, reason string) {
	u.logger.Warn().Str("peer", peerID).Str("transfer", transferID).Msg("file transfer failed: " + reason)
}
