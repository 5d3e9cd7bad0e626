// Package relay provides the transport-independent presence-and-routing
// engine shared by all front ends.
package relay

import (
	"context"
	"time"
)

// Conn abstracts a bidirectional connection for both TCP and WebSocket.
// This interface isolates transport details from relay logic.
type Conn interface {
	// Read reads a single inbound frame (encoded bytes).
	// Returns io.EOF when the connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single outbound frame (encoded bytes).
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string

	// SetReadDeadline bounds the next Read; used for the idle timeout.
	SetReadDeadline(t time.Time) error
}
