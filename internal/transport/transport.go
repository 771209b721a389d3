// Package transport defines the narrow seam between the coordinator and the
// relay link (§6). The coordinator never touches a websocket directly —
// it is constructed with whatever Transport implementation fits the
// runtime, so tests can substitute an in-process fake.
package transport

// Status is the connection lifecycle state reported to the coordinator's
// on_transport_status operation.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Transport is the outbound half of the relay link: send a raw wire-encoded
// envelope and learn about connection state changes. Implementations own
// their own read pump and deliver inbound bytes and status changes through
// the callbacks registered via OnMessage/OnStatus before Connect is called.
type Transport interface {
	// Connect establishes (or begins establishing) the relay connection.
	Connect() error

	// Send transmits one already wire.Encode-d envelope.
	Send(raw []byte) error

	// OnMessage registers the callback invoked for every inbound envelope.
	// Must be called before Connect.
	OnMessage(func(raw []byte))

	// OnStatus registers the callback invoked on every connection status
	// transition. Must be called before Connect.
	OnStatus(func(Status))

	// Close tears down the connection and stops any pump goroutines.
	Close() error
}
