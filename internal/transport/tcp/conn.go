// Package tcp provides the raw-socket transport for the relay server.
// Frames are newline-delimited JSON objects.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"time"

	"github.com/chatchum/relay/internal/relay"
)

// Conn adapts net.Conn to relay.Conn with line framing.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn)}
}

// NewConnWithReader wraps a net.Conn whose first bytes were already buffered
// during protocol detection.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// Read implements relay.Conn. Reads one line, stripped of its terminator.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// Write implements relay.Conn. Appends the line terminator.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

// Close implements relay.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements relay.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// SetReadDeadline implements relay.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Compile-time check that Conn implements relay.Conn.
var _ relay.Conn = (*Conn)(nil)
