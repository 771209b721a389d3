package coordinator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n1/helix/internal/chunkstore"
	"github.com/n1/helix/internal/clock"
	"github.com/n1/helix/internal/config"
	"github.com/n1/helix/internal/metrics"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/transfer"
	"github.com/n1/helix/internal/transport"
	"github.com/n1/helix/internal/uiadapter"
	"github.com/n1/helix/internal/wire"
)

// newHarnessWithClock is like newHarness but hands back the Fake clock so
// tests can advance it deterministically.
func newHarnessWithClock(t *testing.T, localID string) (*harness, *clock.Fake) {
	t.Helper()
	tr := transport.NewFake()
	ui := uiadapter.NewRecorder()
	store, err := chunkstore.Open(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()

	clk := clock.NewFake(time.Unix(0, 0))
	co := New(tr, ui, store, metrics.NewUnregistered(), zerolog.Nop(), clk, cfg)
	t.Cleanup(func() { co.Close() })
	co.exec(func(c *Coordinator) {
		c.localID = localID
		c.registered = true
	})
	return &harness{co: co, ui: ui, tr: tr}, clk
}

func TestInitiateRejectsSecondConcurrentInitiation(t *testing.T) {
	h := newHarness(t, "alice")

	require.NoError(t, h.co.Initiate("bob"))
	require.Equal(t, session.InitiatingSession, stateOf(h.co, "bob"))

	err := h.co.Initiate("dave")
	require.ErrorIs(t, err, ErrAlreadyInitiating)
	assert.Equal(t, session.Cancelled, stateOf(h.co, "dave"))
}

func TestUserNotFoundDropsInitiatingSessionAsDenied(t *testing.T) {
	alice := newHarness(t, "alice")

	require.NoError(t, alice.co.Initiate("ghost"))
	require.Equal(t, session.InitiatingSession, stateOf(alice.co, "ghost"))

	raw, err := wire.Encode(wire.TypeUserNotFound, wire.UserNotFoundPayload{TargetID: "ghost"})
	require.NoError(t, err)
	alice.co.exec(func(c *Coordinator) {
		c.handleInbound(raw)
	})

	// The handler marks the session Denied and then drops it; stateOf's
	// "no session" fallback is session.Cancelled.
	assert.Equal(t, session.Cancelled, stateOf(alice.co, "ghost"))

	found := false
	for _, e := range alice.ui.All() {
		if e.Kind == "ShowInfo" && e.PeerID == "ghost" {
			found = true
		}
	}
	assert.True(t, found, "expected a ShowInfo event for the unknown peer")
}

func TestCancelTransferSendsFileErrorAndCleansUp(t *testing.T) {
	alice, bob := activatedPair(t)

	// Install an in-flight Uploading transfer directly rather than racing the
	// real upload loop, so the cancel is deterministic.
	transferID := "transfer-1"
	content := make([]byte, 17)
	alice.co.exec(func(c *Coordinator) {
		sess, ok := c.sessionFor("bob")
		require.True(t, ok)
		st := transfer.NewSenderState(transferID, "note.txt", int64(len(content)), "text/plain", readAtBytes(content))
		st.Status = transfer.Uploading
		sess.Transfers[transferID] = st
	})

	require.NoError(t, alice.co.CancelTransfer("bob", transferID))

	alice.co.exec(func(c *Coordinator) {
		sess, ok := c.sessionFor("bob")
		require.True(t, ok)
		_, stillPresent := sess.Transfers[transferID]
		assert.False(t, stillPresent)
	})

	require.Eventually(t, func() bool {
		for _, e := range bob.ui.All() {
			if e.Kind == "FileFailed" && e.Fields["transfer_id"] == transferID {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestSASVerificationEntryRestartsHandshakeTimer(t *testing.T) {
	alice, clk := newHarnessWithClock(t, "alice")
	bob := newHarness(t, "bob")
	transport.Pipe(alice.tr, bob.tr)
	require.NoError(t, alice.tr.Connect())
	require.NoError(t, bob.tr.Connect())

	require.NoError(t, alice.co.Initiate("bob"))
	require.NoError(t, bob.co.Accept("alice"))

	require.Eventually(t, func() bool {
		return stateOf(alice.co, "bob") == session.AwaitingSasVerification
	}, time.Second, time.Millisecond)

	// The handshake timer was (re)started on entry to AwaitingSasVerification;
	// advancing by less than HANDSHAKE_TIMEOUT must not time it out.
	clk.Advance(alice.co.handshakeTimeout() - time.Second)
	assert.Equal(t, session.AwaitingSasVerification, stateOf(alice.co, "bob"))

	clk.Advance(2 * time.Second)
	// onHandshakeTimeout drops the session entirely; stateOf's "no session"
	// fallback is session.Cancelled.
	assert.Equal(t, session.Cancelled, stateOf(alice.co, "bob"))

	found := false
	for _, e := range alice.ui.All() {
		if e.Kind == "ShowInfo" && e.PeerID == "bob" && e.Fields["reason"] == "handshake timed out" {
			found = true
		}
	}
	assert.True(t, found, "expected a handshake-timed-out ShowInfo event")
}
