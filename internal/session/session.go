package session

import (
	"crypto/ecdh"
	"time"

	"github.com/n1/helix/internal/clock"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/transfer"
	"github.com/n1/helix/internal/wire"
)

// Session is one peer_id's conversation attempt (§3). Exactly one exists per
// peer_id at any time (invariant 1), enforced by the coordinator, not here.
type Session struct {
	PeerID    string
	State     State
	Role      Role
	StartedAt time.Time // when the handshake began, for duration metrics

	KeyPair      *cryptoengine.KeyPair
	PeerPublicKey *ecdh.PublicKey
	PeerSPKI      string // base64 SPKI as received, kept for SAS recomputation
	SessionKey   []byte

	ChallengeSent []byte // random buffer stored by whoever issued Type 5

	SASDigits         string
	LocalSASConfirmed bool
	PeerSASConfirmed  bool

	Messages  []HistoryEntry
	Transfers map[string]*transfer.State

	HandshakeTimer  clock.Timer
	RequestTimer    clock.Timer
	PeerTypingTimer clock.Timer
	LocalTypingTimer clock.Timer

	PeerIsTyping bool

	// pendingType5 buffers an inbound Type 5 challenge that reached the
	// Initiator before its session key existed (the race flagged in
	// §9/§4.1), replayed by HandleType2 once the session transitions to
	// AwaitingChallengeResponse.
	pendingType5 *wire.ChallengePayload
}

// New creates a fresh Session for peer in the given role. Callers (the
// coordinator) set State explicitly afterward per the transition table.
func New(peerID string, role Role) *Session {
	return &Session{
		PeerID:    peerID,
		Role:      role,
		Transfers: make(map[string]*transfer.State),
	}
}

// HasSessionKey reports invariant 4: states past key derivation always carry
// a non-nil session_key.
func (s *Session) HasSessionKey() bool {
	return len(s.SessionKey) == cryptoengine.SessionKeySize
}

// SASFullyConfirmed reports invariant 5.
func (s *Session) SASFullyConfirmed() bool {
	return s.LocalSASConfirmed && s.PeerSASConfirmed
}

// BufferType5 stores an inbound challenge that arrived before the session
// key finished deriving. At most one is ever buffered: exactly one Type 5 is
// expected per handshake.
func (s *Session) BufferType5(p *wire.ChallengePayload) {
	s.pendingType5 = p
}

// TakeBufferedType5 returns and clears the buffered challenge, if any.
func (s *Session) TakeBufferedType5() *wire.ChallengePayload {
	p := s.pendingType5
	s.pendingType5 = nil
	return p
}

// CancelTimers stops every timer scoped to this session (invariant 6).
func (s *Session) CancelTimers() {
	for _, t := range []clock.Timer{s.HandshakeTimer, s.RequestTimer, s.PeerTypingTimer, s.LocalTypingTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

// Zeroize overwrites the session key in place before it is dropped
// (invariant 7: session_key is zeroized on reset).
func (s *Session) Zeroize() {
	for i := range s.SessionKey {
		s.SessionKey[i] = 0
	}
	s.SessionKey = nil
}
