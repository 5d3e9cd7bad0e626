// Package ws provides the WebSocket transport for the relay server, built on
// gobwas/ws. Frames are text messages, one JSON object per message.
package ws

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/chatchum/relay/internal/relay"
)

// Conn adapts an upgraded WebSocket connection to relay.Conn.
type Conn struct {
	raw net.Conn
	// rw carries the actual frame traffic. It differs from raw when the
	// handshake was read through a buffered reader during protocol
	// detection.
	rw io.ReadWriter
}

// NewConn wraps an upgraded net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{raw: conn, rw: conn}
}

// NewConnBuffered wraps an upgraded connection whose reads must go through
// rw to preserve already-buffered bytes.
func NewConnBuffered(conn net.Conn, rw io.ReadWriter) *Conn {
	return &Conn{raw: conn, rw: rw}
}

// Read implements relay.Conn. Reads one text message; control frames are
// handled transparently by wsutil.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	return wsutil.ReadClientText(c.rw)
}

// Write implements relay.Conn. Writes one text message.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	return wsutil.WriteServerText(c.rw, data)
}

// Close implements relay.Conn. Attempts a close frame, then closes the
// socket.
func (c *Conn) Close() error {
	_ = wsutil.WriteServerMessage(c.rw, ws.OpClose, nil)
	return c.raw.Close()
}

// RemoteAddr implements relay.Conn.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// SetReadDeadline implements relay.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// Compile-time check that Conn implements relay.Conn.
var _ relay.Conn = (*Conn)(nil)
