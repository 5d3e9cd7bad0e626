// Package unified provides a single-port front end that serves both raw TCP
// and WebSocket clients, deciding per connection by peeking at the first
// bytes.
package unified

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/ws"

	"github.com/chatchum/relay/internal/relay"
	"github.com/chatchum/relay/internal/transport/tcp"
	wstransport "github.com/chatchum/relay/internal/transport/ws"
)

// Server accepts connections on one port and dispatches each to the raw TCP
// or WebSocket framing, both backed by the same relay.
type Server struct {
	address  string
	listener net.Listener
	relay    *relay.Relay
	log      *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a unified server bound to the shared relay.
func New(address string, r *relay.Relay, log *slog.Logger) *Server {
	return &Server{
		address: address,
		relay:   r,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// Start starts accepting connections and blocks until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start unified server: %w", err)
	}
	s.listener = listener

	s.log.Info("unified server started (TCP and WebSocket)",
		"address", listener.Addr().String())

	for {
		select {
		case <-s.quit:
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.quit:
					return nil
				default:
					s.log.Warn("failed to accept connection", "error", err)
					continue
				}
			}

			s.track(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(conn)
				s.handle(conn)
			}()
		}
	}
}

// Stop stops the server and closes every open connection.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handle(conn net.Conn) {
	proto, reader, err := detectProtocol(conn)
	if err != nil {
		s.log.Warn("failed to inspect connection",
			"remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}

	ctx := context.Background()
	switch proto {
	case protocolHTTP:
		// The handshake request sits in the buffered reader, so the
		// upgrade and all subsequent frame reads go through it.
		buffered := &bufferedConn{Conn: conn, reader: reader}
		if _, err := ws.Upgrade(buffered); err != nil {
			s.log.Warn("failed to upgrade WebSocket connection",
				"remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			return
		}
		s.relay.HandleConn(ctx, wstransport.NewConnBuffered(conn, buffered))
	default:
		s.relay.HandleConn(ctx, tcp.NewConnWithReader(conn, reader))
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// bufferedConn keeps reads going through the bufio.Reader that holds the
// peeked bytes while writes hit the socket directly.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}
