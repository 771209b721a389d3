package handshake

import (
	"testing"

	"github.com/n1/helix/internal/action"
	"github.com/n1/helix/internal/cryptoengine"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runHappyPathHandshake drives both sides of a full handshake and returns
// the initiator and responder sessions, both Active with matching SAS.
func runHappyPathHandshake(t *testing.T) (alice, bob *session.Session) {
	t.Helper()

	alice = session.New("bob", session.Initiator)
	_, _, err := LocalInitiate(alice, "alice")
	require.NoError(t, err)
	require.Equal(t, session.InitiatingSession, alice.State)

	bob = session.New("alice", session.Responder)
	HandleType1Inbound(bob)
	require.Equal(t, session.RequestReceived, bob.State)

	acceptActs, _, err := LocalAccept(bob, "bob")
	require.NoError(t, err)
	bobSPKI := acceptActs[0].Payload.(wire.SessionAcceptPayload).PublicKey

	initKeyActs, _, err := HandleType2(alice, "alice", bobSPKI)
	require.NoError(t, err)
	aliceSPKI := initKeyActs[0].Payload.(wire.InitiatorKeyPayload).PublicKey

	challengeActs, _, err := HandleType4(bob, "bob", aliceSPKI)
	require.NoError(t, err)
	challengePayload := challengeActs[0].Payload.(wire.ChallengePayload)

	responseActs, _, err := HandleType5(alice, "alice", challengePayload)
	require.NoError(t, err)
	responsePayload := responseActs[0].Payload.(wire.ChallengeResponsePayload)

	establishedActs, _, err := HandleType6(bob, "bob", responsePayload)
	require.NoError(t, err)
	require.Equal(t, session.AwaitingSasVerification, bob.State)
	require.Equal(t, action.CalculateAndShowSAS, establishedActs[1].Kind)

	sevenActs, _, err := HandleType7(alice)
	require.NoError(t, err)
	require.Equal(t, session.AwaitingSasVerification, alice.State)
	require.Equal(t, sevenActs[0].SAS, establishedActs[1].SAS)

	_, err = LocalConfirmSAS(alice, "alice")
	require.NoError(t, err)
	require.Equal(t, session.SasConfirmedLocal, alice.State)

	_, err = HandleType71(bob)
	require.NoError(t, err)
	require.Equal(t, session.SasConfirmedPeer, bob.State)

	_, err = LocalConfirmSAS(bob, "bob")
	require.NoError(t, err)
	require.Equal(t, session.Active, bob.State)

	_, err = HandleType71(alice)
	require.NoError(t, err)
	require.Equal(t, session.Active, alice.State)

	return alice, bob
}

func TestHappyPathHandshakeReachesActiveWithMatchingSAS(t *testing.T) {
	alice, bob := runHappyPathHandshake(t)

	assert.True(t, alice.SASFullyConfirmed())
	assert.True(t, bob.SASFullyConfirmed())
	assert.Equal(t, alice.SASDigits, bob.SASDigits)
	assert.Len(t, alice.SASDigits, 6)
	assert.True(t, alice.HasSessionKey())
	assert.Equal(t, alice.SessionKey, bob.SessionKey)
}

func TestHandleType6RejectsMismatchedChallengeResponse(t *testing.T) {
	bob := session.New("alice", session.Responder)
	HandleType1Inbound(bob)
	_, _, err := LocalAccept(bob, "bob")
	require.NoError(t, err)

	aliceKP, err := cryptoengine.GenerateKeyPair()
	require.NoError(t, err)
	aliceSPKI, err := cryptoengine.ExportSPKI(aliceKP.Public)
	require.NoError(t, err)

	challengeActs, _, err := HandleType4(bob, "bob", aliceSPKI)
	require.NoError(t, err)
	_ = challengeActs

	// Forge a response that does not match the stored challenge.
	sealed, err := cryptoengine.Seal(bob.SessionKey, []byte("not the real challenge bytes!!!"), nil)
	require.NoError(t, err)

	_, _, err = HandleType6(bob, "bob", wire.ChallengeResponsePayload{
		IV:                sealed.IV,
		EncryptedResponse: sealed.Ciphertext,
	})
	assert.Error(t, err)
}

func TestType5BufferedBeforeSessionKeyDerivedIsReplayed(t *testing.T) {
	alice := session.New("bob", session.Initiator)
	_, _, err := LocalInitiate(alice, "alice")
	require.NoError(t, err)

	bob := session.New("alice", session.Responder)
	HandleType1Inbound(bob)
	acceptActs, _, err := LocalAccept(bob, "bob")
	require.NoError(t, err)
	bobSPKI := acceptActs[0].Payload.(wire.SessionAcceptPayload).PublicKey

	// Simulate Type 5 arriving at Alice before her session key exists yet:
	// call HandleType5 directly on a fresh session with no SessionKey.
	fresh := session.New("bob", session.Initiator)
	acts, timerOp, err := HandleType5(fresh, "alice", wire.ChallengePayload{IV: "x", EncryptedChallenge: "y"})
	require.NoError(t, err)
	assert.Empty(t, acts)
	assert.Equal(t, NoTimerOp, timerOp)

	// Now drive Alice's real HandleType2, which derives the key (nothing is
	// buffered on her session yet), so Bob can produce a real challenge.
	initKeyActs, _, err := HandleType2(alice, "alice", bobSPKI)
	require.NoError(t, err)
	aliceSPKI := initKeyActs[0].Payload.(wire.InitiatorKeyPayload).PublicKey
	challengeActs, _, err := HandleType4(bob, "bob", aliceSPKI)
	require.NoError(t, err)
	challengePayload := challengeActs[0].Payload.(wire.ChallengePayload)

	alice.BufferType5(&challengePayload)
	// Re-run HandleType2 is not idempotent in this test harness; instead
	// verify the buffered payload is consumed exactly once and processed
	// when replayed manually, mirroring what HandleType2 does internally.
	buffered := alice.TakeBufferedType5()
	require.NotNil(t, buffered)
	responseActs, _, err := HandleType5(alice, "alice", *buffered)
	require.NoError(t, err)
	assert.Equal(t, session.AwaitingFinalConfirmation, alice.State)
	assert.NotEmpty(t, responseActs)
}
