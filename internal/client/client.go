// Package client implements a relay client over either transport, used by
// the interactive commands and the integration tests.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/chatchum/relay/pkg/protocol"
)

// ErrRejected reports a registration the server refused.
var ErrRejected = errors.New("registration rejected")

// wire is a framed connection to the server.
type wire interface {
	ReadFrame() (*protocol.Frame, error)
	WriteFrame(frame *protocol.Frame) error
	Close() error
}

// Client talks the relay protocol over TCP or WebSocket.
type Client struct {
	username string
	dial     func() (wire, error)
	conn     wire
	frames   chan protocol.Frame
}

// New creates a client that connects over raw TCP.
func New(address, username string) *Client {
	return &Client{
		username: username,
		dial:     func() (wire, error) { return dialTCP(address) },
	}
}

// NewWebSocket creates a client that connects over WebSocket.
// url is a ws:// or wss:// endpoint.
func NewWebSocket(url, username string) *Client {
	return &Client{
		username: username,
		dial:     func() (wire, error) { return dialWebSocket(url) },
	}
}

// Connect dials the server and starts the receive pump.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn
	c.frames = make(chan protocol.Frame, 32)

	go func() {
		defer close(c.frames)
		for {
			frame, err := conn.ReadFrame()
			if err != nil {
				return
			}
			c.frames <- *frame
		}
	}()
	return nil
}

// Disconnect closes the connection; the frame channel drains and closes.
func (c *Client) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Frames returns the inbound frame stream. The channel closes when the
// connection does.
func (c *Client) Frames() <-chan protocol.Frame {
	return c.frames
}

// Register sends the init request and waits for the server's verdict.
func (c *Client) Register(timeout time.Duration) error {
	if err := c.conn.WriteFrame(protocol.Init(c.username)); err != nil {
		return err
	}

	deadline := time.After(timeout)
	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return errors.New("connection closed before registration")
			}
			switch frame.Type {
			case protocol.KindRegistered:
				return nil
			case protocol.KindError:
				return fmt.Errorf("%w: %s", ErrRejected, frame.Reason)
			}
			// Roster or history pushes may arrive interleaved; keep waiting.
		case <-deadline:
			return errors.New("timed out waiting for registration")
		}
	}
}

// Send routes content to receiver.
func (c *Client) Send(receiver, content string) error {
	return c.conn.WriteFrame(protocol.Send(receiver, content))
}

// RequestUsers asks for the current roster; the reply arrives on Frames.
func (c *Client) RequestUsers() error {
	return c.conn.WriteFrame(protocol.GetUsers())
}

// RequestHistory asks for the history with one user; the reply arrives on
// Frames.
func (c *Client) RequestHistory(with string) error {
	return c.conn.WriteFrame(protocol.GetHistory(with))
}

// Ping sends a keepalive probe; the pong arrives on Frames.
func (c *Client) Ping() error {
	return c.conn.WriteFrame(protocol.Ping())
}
