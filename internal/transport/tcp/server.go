package tcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/chatchum/relay/internal/relay"
)

// Server accepts raw TCP connections and hands them to the relay.
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

// New creates a TCP server bound to the shared relay.
func New(address string, r *relay.Relay, log *slog.Logger) *Server {
	return &Server{
		address: address,
		relay:   r,
		log:     log,
		conns:   make(map[net.Conn]struct{}),
		quit:    make(chan struct{}),
	}
}

// Start starts accepting TCP connections and blocks until Stop.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener

	s.log.Info("TCP server started", "address", listener.Addr().String())

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
					s.log.Warn("failed to accept TCP connection", "error", err)
					continue
				}
			}

			s.track(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(conn)
				s.relay.HandleConn(context.Background(), NewConn(conn))
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
