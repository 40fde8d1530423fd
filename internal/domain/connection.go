package domain

// Client is one live subscriber connection as seen by the relay core.
type Client interface {
	// ID is a per-process unique connection identifier.
	ID() string

	// Send enqueues a batch of frames without blocking. It returns false
	// when the outbound queue is full or the client is closed; the caller
	// then treats the client as gone.
	Send(batch [][]byte) bool

	// Close tears the transport down. It must not call back into the core.
	Close()

	// Remote address for logging/identification
	RemoteAddr() string
}

// ConnectionManager defines the interface for managing WebSocket connections
type ConnectionManager interface {
	RegisterConn(conn Client)
	UnregisterConn(conn Client)
}
