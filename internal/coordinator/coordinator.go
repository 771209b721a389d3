// Package coordinator implements the central session/transfer orchestrator
// of §4.3: the single owner of all mutable session state, the only
// component with a Clock, and the boundary between the pure handshake/
// transfer transition functions and the outside world (transport, UI,
// durable storage, metrics).
//
// All mutation happens on one goroutine (grounded on the teacher's
// single-writer *sql.DB-behind-a-mutex pattern in internal/miror/wal.go,
// generalized here to a command channel rather than a mutex since the
// coordinator's state includes live timers whose callbacks must also
// serialize through it): every exported method enqueues a closure onto
// cmdCh and blocks until the run loop has executed it.
package coordinator

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/n1/helix/internal/clock"
	"github.com/n1/helix/internal/config"
	"github.com/n1/helix/internal/metrics"
	"github.com/n1/helix/internal/session"
	"github.com/n1/helix/internal/transport"
	"github.com/n1/helix/internal/uiadapter"
)

// ChunkStore is the narrow persistence seam the coordinator needs for
// receive-side file transfers, satisfied by *chunkstore.Store.
type ChunkStore interface {
	Put(transferID string, chunkIndex uint32, data []byte) error
	AllOrdered(transferID string) ([]byte, error)
	DeleteTransfer(transferID string) error
	DeleteOrphaned(liveIDs map[string]bool) (int64, error)
}

// Coordinator is the dependency-injected engine root (§9: "no singletons").
// Construct one per running identity.
type Coordinator struct {
	localID    string
	registered bool

	sessions map[string]*session.Session

	// displayedPeer holds the peer_id the UI has in foreground (§3). No code
	// in this package sets or reads it; every UI call names its peer_id.
	displayedPeer string

	transport transport.Transport
	ui        uiadapter.UIAdapter
	chunks    ChunkStore
	metrics   *metrics.Registry
	logger    zerolog.Logger
	clock     clock.Clock
	cfg       config.Config

	registrationTimer clock.Timer

	cmdCh   chan func(*Coordinator)
	closeCh chan struct{}
}

// New constructs a Coordinator, registers its message and status callbacks
// on tr, and starts its single run goroutine. Construct the Coordinator
// before calling tr.Connect so no inbound message arrives unhandled.
func New(tr transport.Transport, ui uiadapter.UIAdapter, chunks ChunkStore, m *metrics.Registry, logger zerolog.Logger, clk clock.Clock, cfg config.Config) *Coordinator {
	c := &Coordinator{
		sessions: make(map[string]*session.Session),
		transport: tr,
		ui:        ui,
		chunks:    chunks,
		metrics:   m,
		logger:    logger.With().Str("component", "coordinator").Logger(),
		clock:     clk,
		cfg:       cfg,
		cmdCh:     make(chan func(*Coordinator)),
		closeCh:   make(chan struct{}),
	}
	tr.OnMessage(func(raw []byte) { c.exec(func(co *Coordinator) { co.handleInbound(raw) }) })
	tr.OnStatus(func(st transport.Status) { c.exec(func(co *Coordinator) { co.handleTransportStatus(st) }) })
	go c.run()
	return c
}

func (c *Coordinator) run() {
	for {
		select {
		case f := <-c.cmdCh:
			f(c)
		case <-c.closeCh:
			return
		}
	}
}

// exec serializes f onto the run loop and blocks until it has executed,
// giving every public method (and every timer callback, which fires on its
// own goroutine) a synchronous, single-writer view of coordinator state.
func (c *Coordinator) exec(f func(*Coordinator)) {
	done := make(chan struct{})
	c.cmdCh <- func(co *Coordinator) {
		f(co)
		close(done)
	}
	<-done
}

// Close stops the run loop and the underlying transport.
func (c *Coordinator) Close() error {
	close(c.closeCh)
	return c.transport.Close()
}

// newTransferID mints a fresh transfer identifier (§3: "opaque, unique per
// transfer"). Grounded on the teacher's use of google/uuid for content-
// addressed identifiers elsewhere in the pack.
func newTransferID() string {
	return uuid.NewString()
}

func (c *Coordinator) sessionFor(peerID string) (*session.Session, bool) {
	s, ok := c.sessions[peerID]
	return s, ok
}

// dropSession enforces invariants 6/7 (§3): cancel every timer, zeroize the
// key material, remove the session from the map, and sweep its durable
// chunks.
func (c *Coordinator) dropSession(peerID string) {
	s, ok := c.sessions[peerID]
	if !ok {
		return
	}
	s.CancelTimers()
	s.Zeroize()
	for transferID := range s.Transfers {
		if err := c.chunks.DeleteTransfer(transferID); err != nil {
			c.logger.Warn().Err(err).Str("transfer", transferID).Msg("failed to delete transfer chunks on session drop")
		}
	}
	delete(c.sessions, peerID)
	if c.metrics != nil {
		c.metrics.SessionsActive.Set(float64(len(c.sessions)))
	}
}

// recordOutcome tallies a session's terminal state for metrics.
func (c *Coordinator) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	}
}

// handshakeTimeout/requestTimeout helpers centralize duration lookups so
// ops.go and timers.go share one source of truth.
func (c *Coordinator) requestTimeout() time.Duration   { return c.cfg.RequestTimeout }
func (c *Coordinator) handshakeTimeout() time.Duration { return c.cfg.HandshakeTimeout }
