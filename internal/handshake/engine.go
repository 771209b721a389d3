// Package handshake implements the deterministic transition table of §4.1:
// the nine handshake/SAS states plus terminals. Every exported function
// takes a *session.Session already in the precondition state, mutates it in
// place, and returns the actions the coordinator must execute plus a
// TimerOp telling it which timer bookkeeping to perform. None of these
// functions touch a clock, a transport, or the coordinator's session map —
// they are pure transitions over one Session.
package handshake

import (
	"crypto/rand"
	"fmt"

	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/wire"
)

const challengeSize = 32

// ErrWrongState is returned when a transition is attempted from a state
// that does not permit it. The coordinator treats this as a protocol
// violation: ignore and log, never crash (§7).
type ErrWrongState struct {
	Want, Got session.State
}

func (e *ErrWrongState) Error() string {
	return fmt.Sprintf("handshake: expected state %s, got %s", e.Want, e.Got)
}

// LocalInitiate handles `∅ → local_initiate`: generate ECDH, send Type 1,
// start request_timer. sess must already exist (Role Initiator, fresh).
func LocalInitiate(sess *session.Session, localID string) ([]action.Action, TimerOp, error) {
	kp, err := cryptoengine.GenerateKeyPair()
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: local initiate: %w", err)
	}
	sess.KeyPair = kp
	sess.State = session.InitiatingSession

	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeSessionRequest, wire.SessionRequestPayload{
			PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID),
		}),
	}
	return acts, StartRequestTimer, nil
}

// HandleType1Inbound handles `∅ → Type 1 inbound`: sess is a freshly created
// Responder-role Session; this just sets its state.
func HandleType1Inbound(sess *session.Session) {
	sess.State = session.RequestReceived
}

// LocalAccept handles `RequestReceived → local_accept`: generate ECDH, send
// Type 2 with our SPKI, start handshake_timer.
func LocalAccept(sess *session.Session, localID string) ([]action.Action, TimerOp, error) {
	if sess.State != session.RequestReceived {
		return nil, NoTimerOp, &ErrWrongState{session.RequestReceived, sess.State}
	}
	kp, err := cryptoengine.GenerateKeyPair()
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: local accept: %w", err)
	}
	sess.KeyPair = kp
	sess.State = session.GeneratingAcceptKeys

	spki, err := cryptoengine.ExportSPKI(kp.Public)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: export SPKI: %w", err)
	}

	sess.State = session.AwaitingInitiatorKey
	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeSessionAccept, wire.SessionAcceptPayload{
			PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID),
			PublicKey:    spki,
		}),
	}
	return acts, StartHandshakeTimer, nil
}

// LocalDeny handles `RequestReceived → local_deny`.
func LocalDeny(sess *session.Session, localID string) ([]action.Action, error) {
	if sess.State != session.RequestReceived {
		return nil, &ErrWrongState{session.RequestReceived, sess.State}
	}
	sess.State = session.Cancelled
	return []action.Action{
		action.Send(sess.PeerID, wire.TypeSessionDeny, wire.SessionDenyPayload{PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID)}),
	}, nil
}

// HandleType2 handles `InitiatingSession → Type 2(peer_pub)`: import
// peer_pub, derive session_key, send Type 4, start handshake_timer.
func HandleType2(sess *session.Session, localID, peerSPKI string) ([]action.Action, TimerOp, error) {
	if sess.State != session.InitiatingSession {
		return nil, NoTimerOp, &ErrWrongState{session.InitiatingSession, sess.State}
	}
	sess.State = session.DerivingKeyInitiator
	if err := deriveSessionKey(sess, peerSPKI); err != nil {
		return nil, NoTimerOp, err
	}

	ownSPKI, err := cryptoengine.ExportSPKI(sess.KeyPair.Public)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: export SPKI: %w", err)
	}

	sess.State = session.AwaitingChallengeResponse
	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeInitiatorKey, wire.InitiatorKeyPayload{
			PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID),
			PublicKey:    ownSPKI,
		}),
	}

	// The session key is now available: replay a Type 5 that arrived while
	// we were still DerivingKeyInitiator (§9 buffering race).
	if buffered := sess.TakeBufferedType5(); buffered != nil {
		replayActs, _, err := HandleType5(sess, localID, *buffered)
		if err != nil {
			return nil, NoTimerOp, fmt.Errorf("handshake: replay buffered Type 5: %w", err)
		}
		acts = append(acts, replayActs...)
	}
	return acts, StartHandshakeTimer, nil
}

// HandleType4 handles `AwaitingInitiatorKey → Type 4(peer_pub)`: derive
// session_key, generate random challenge C, encrypt, send Type 5, start
// handshake_timer.
func HandleType4(sess *session.Session, localID, peerSPKI string) ([]action.Action, TimerOp, error) {
	if sess.State != session.AwaitingInitiatorKey {
		return nil, NoTimerOp, &ErrWrongState{session.AwaitingInitiatorKey, sess.State}
	}
	sess.State = session.DerivingKeyResponder
	if err := deriveSessionKey(sess, peerSPKI); err != nil {
		return nil, NoTimerOp, err
	}

	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: generate challenge: %w", err)
	}
	sess.ChallengeSent = challenge

	sealed, err := cryptoengine.Seal(sess.SessionKey, challenge, nil)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: seal challenge: %w", err)
	}

	sess.State = session.AwaitingChallengeResponse
	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeChallenge, wire.ChallengePayload{
			PeerEnvelope:       wire.NewPeerEnvelope(sess.PeerID, localID),
			IV:                 sealed.IV,
			EncryptedChallenge: sealed.Ciphertext,
		}),
	}
	return acts, StartHandshakeTimer, nil
}

// HandleType5 handles `AwaitingChallengeResponse (Initiator) → Type
// 5(iv,ct)`: decrypt to C', send Type 6.
//
// If sess has not yet finished deriving its session key (the buffering race
// of §9/§4.1), the payload is queued via sess.BufferType5 and replayed once
// the key is available; callers must re-invoke HandleType5 after any
// transition that derives the key (HandleType2 does this automatically).
func HandleType5(sess *session.Session, localID string, p wire.ChallengePayload) ([]action.Action, TimerOp, error) {
	if !sess.HasSessionKey() {
		sess.BufferType5(&p)
		return nil, NoTimerOp, nil
	}
	if sess.State != session.AwaitingChallengeResponse || sess.Role != session.Initiator {
		return nil, NoTimerOp, &ErrWrongState{session.AwaitingChallengeResponse, sess.State}
	}

	challengePrime, err := cryptoengine.Open(sess.SessionKey, cryptoengine.Sealed{IV: p.IV, Ciphertext: p.EncryptedChallenge}, nil)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: open challenge: %w", err)
	}

	sealed, err := cryptoengine.Seal(sess.SessionKey, challengePrime, nil)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: seal response: %w", err)
	}

	sess.State = session.AwaitingFinalConfirmation
	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeChallengeResponse, wire.ChallengeResponsePayload{
			PeerEnvelope:      wire.NewPeerEnvelope(sess.PeerID, localID),
			IV:                sealed.IV,
			EncryptedResponse: sealed.Ciphertext,
		}),
	}
	return acts, StartHandshakeTimer, nil
}

// HandleType6 handles `AwaitingChallengeResponse (Responder) → Type
// 6(iv,ct)`: decrypt, require byte-exact match with challenge_sent; on
// match send Type 7 and immediately compute SAS.
func HandleType6(sess *session.Session, localID string, p wire.ChallengeResponsePayload) ([]action.Action, TimerOp, error) {
	if sess.State != session.AwaitingChallengeResponse || sess.Role != session.Responder {
		return nil, NoTimerOp, &ErrWrongState{session.AwaitingChallengeResponse, sess.State}
	}

	responded, err := cryptoengine.Open(sess.SessionKey, cryptoengine.Sealed{IV: p.IV, Ciphertext: p.EncryptedResponse}, nil)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: open challenge response: %w", err)
	}
	if !constantTimeEqual(responded, sess.ChallengeSent) {
		return nil, NoTimerOp, fmt.Errorf("handshake: challenge response mismatch")
	}

	sess.State = session.HandshakeCompleteResponder
	ownSPKI, err := cryptoengine.ExportSPKI(sess.KeyPair.Public)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: export SPKI: %w", err)
	}
	sas := cryptoengine.DeriveSAS(ownSPKI, sess.PeerSPKI)
	sess.SASDigits = sas

	sess.State = session.AwaitingSasVerification
	acts := []action.Action{
		action.Send(sess.PeerID, wire.TypeEstablished, wire.EstablishedPayload{PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID)}),
		{Kind: action.CalculateAndShowSAS, PeerID: sess.PeerID, SAS: sas},
	}
	return acts, StartHandshakeTimer, nil
}

// HandleType7 handles `AwaitingFinalConfirmation → Type 7`: compute SAS,
// present to UI.
func HandleType7(sess *session.Session) ([]action.Action, TimerOp, error) {
	if sess.State != session.AwaitingFinalConfirmation {
		return nil, NoTimerOp, &ErrWrongState{session.AwaitingFinalConfirmation, sess.State}
	}
	ownSPKI, err := cryptoengine.ExportSPKI(sess.KeyPair.Public)
	if err != nil {
		return nil, NoTimerOp, fmt.Errorf("handshake: export SPKI: %w", err)
	}
	sas := cryptoengine.DeriveSAS(ownSPKI, sess.PeerSPKI)
	sess.SASDigits = sas
	sess.State = session.AwaitingSasVerification
	return []action.Action{
		{Kind: action.CalculateAndShowSAS, PeerID: sess.PeerID, SAS: sas},
	}, StartHandshakeTimer, nil
}

// LocalConfirmSAS handles `AwaitingSasVerification → local_confirm` and
// `SasConfirmedPeer → local_confirm`.
func LocalConfirmSAS(sess *session.Session, localID string) ([]action.Action, error) {
	switch sess.State {
	case session.AwaitingSasVerification:
		sess.LocalSASConfirmed = true
		sess.State = session.SasConfirmedLocal
	case session.SasConfirmedPeer:
		sess.LocalSASConfirmed = true
		sess.State = session.Active
	default:
		return nil, &ErrWrongState{session.AwaitingSasVerification, sess.State}
	}
	return []action.Action{
		action.Send(sess.PeerID, wire.TypeSasConfirm, wire.SasConfirmPayload{PeerEnvelope: wire.NewPeerEnvelope(sess.PeerID, localID)}),
	}, nil
}

// HandleType71 handles `AwaitingSasVerification → Type 7.1` and
// `SasConfirmedLocal → Type 7.1`.
func HandleType71(sess *session.Session) ([]action.Action, error) {
	switch sess.State {
	case session.AwaitingSasVerification:
		sess.PeerSASConfirmed = true
		sess.State = session.SasConfirmedPeer
		return []action.Action{{Kind: action.PeerSasConfirmed, PeerID: sess.PeerID}}, nil
	case session.SasConfirmedLocal:
		sess.PeerSASConfirmed = true
		sess.State = session.Active
		return []action.Action{{Kind: action.PeerSasConfirmed, PeerID: sess.PeerID}}, nil
	default:
		return nil, &ErrWrongState{session.AwaitingSasVerification, sess.State}
	}
}

func deriveSessionKey(sess *session.Session, peerSPKI string) error {
	peerPub, err := cryptoengine.ImportSPKI(peerSPKI)
	if err != nil {
		return fmt.Errorf("handshake: import peer SPKI: %w", err)
	}
	sess.PeerPublicKey = peerPub
	sess.PeerSPKI = peerSPKI

	z, err := cryptoengine.SharedSecret(sess.KeyPair.Private, peerPub)
	if err != nil {
		return fmt.Errorf("handshake: shared secret: %w", err)
	}
	key, err := cryptoengine.DeriveSessionKey(z)
	if err != nil {
		return fmt.Errorf("handshake: derive session key: %w", err)
	}
	sess.SessionKey = key
	return nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
