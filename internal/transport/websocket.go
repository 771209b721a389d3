package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocket is the production Transport, a single gorilla/websocket
// connection to the relay with dedicated read-pump and write-pump
// goroutines, grounded on the teacher's TCPTransport dial/header/body
// pattern but adapted to a framed websocket connection and a message-queue
// write side rather than blocking Send calls.
type WebSocket struct {
	url    string
	logger zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	sendCh   chan []byte
	closeCh  chan struct{}
	closed   bool
	onMsg    func(raw []byte)
	onStatus func(Status)
}

// NewWebSocket creates a client-side websocket Transport dialing url (e.g.
// "wss://relay.example.com/ws") on Connect.
func NewWebSocket(url string, logger zerolog.Logger) *WebSocket {
	return &WebSocket{
		url:     url,
		logger:  logger.With().Str("component", "transport").Logger(),
		sendCh:  make(chan []byte, 64),
		closeCh: make(chan struct{}),
	}
}

func (w *WebSocket) OnMessage(cb func(raw []byte)) { w.onMsg = cb }
func (w *WebSocket) OnStatus(cb func(Status))      { w.onStatus = cb }

func (w *WebSocket) Connect() error {
	w.setStatus(Connecting)
	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		w.setStatus(Disconnected)
		return fmt.Errorf("transport: dial relay: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.setStatus(Connected)
	go w.readPump()
	go w.writePump()
	return nil
}

func (w *WebSocket) Send(raw []byte) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return fmt.Errorf("transport: send on closed connection")
	}
	select {
	case w.sendCh <- raw:
		return nil
	case <-w.closeCh:
		return fmt.Errorf("transport: send on closed connection")
	}
}

func (w *WebSocket) readPump() {
	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			w.logger.Debug().Err(err).Msg("read pump exiting")
			w.setStatus(Disconnected)
			w.Close()
			return
		}
		if w.onMsg != nil {
			w.onMsg(raw)
		}
	}
}

func (w *WebSocket) writePump() {
	const pingInterval = 30 * time.Second
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case raw := <-w.sendCh:
			if err := w.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				w.logger.Debug().Err(err).Msg("write pump exiting")
				w.setStatus(Disconnected)
				w.Close()
				return
			}
		case <-ticker.C:
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.setStatus(Disconnected)
				w.Close()
				return
			}
		case <-w.closeCh:
			return
		}
	}
}

func (w *WebSocket) setStatus(s Status) {
	if w.onStatus != nil {
		w.onStatus(s)
	}
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
