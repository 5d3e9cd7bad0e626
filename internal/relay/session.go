package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chatchum/relay/pkg/protocol"
)

// State is the protocol lifecycle of one session.
type State int

const (
	StateUnregistered State = iota
	StateActive
	StateClosed
)

// Session is one live client connection and its protocol state. The run loop
// is the only goroutine that reads the connection and mutates the state;
// other sessions interact with it solely through Enqueue.
type Session struct {
	relay *Relay
	conn  Conn

	name  string
	state State

	out        chan []byte
	sendMu     sync.Mutex
	sendClosed bool
	writerDone chan struct{}
}

func newSession(r *Relay, conn Conn) *Session {
	return &Session{
		relay:      r,
		conn:       conn,
		out:        make(chan []byte, r.sendBuffer),
		writerDone: make(chan struct{}),
	}
}

// Name returns the display name, empty until registration succeeds.
func (s *Session) Name() string {
	return s.name
}

// Enqueue encodes frame and hands it to the writer goroutine. It never
// blocks: a full buffer or a closed session drops the frame, which keeps
// fan-out from stalling on a slow or dead peer.
func (s *Session) Enqueue(frame *protocol.Frame) {
	data, err := frame.Encode()
	if err != nil {
		s.relay.log.Error("failed to encode outbound frame", "error", err)
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return
	}
	select {
	case s.out <- data:
	default:
		s.relay.log.Warn("outbound buffer full, dropping frame",
			"username", s.name, "remote", s.conn.RemoteAddr())
	}
}

// run drives the session: registration first, then the active frame loop.
// Cleanup is guaranteed on every exit path, including mid-processing errors:
// pending outbound frames are flushed, the transport is closed, and a
// registered name is deregistered exactly once followed by one roster
// broadcast.
func (s *Session) run(ctx context.Context) {
	defer s.teardown(ctx)

	go s.writeLoop(ctx)

	if !s.register(ctx) {
		return
	}
	s.state = StateActive
	s.loop(ctx)
}

func (s *Session) teardown(ctx context.Context) {
	s.state = StateClosed
	s.closeSend()
	<-s.writerDone
	_ = s.conn.Close()

	if s.name == "" {
		return
	}
	if s.relay.registry.Deregister(ctx, s.name) {
		s.relay.broadcaster.Broadcast()
	}
	s.relay.log.Info("session closed", "username", s.name, "remote", s.conn.RemoteAddr())
}

func (s *Session) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.out)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.writerDone)
	for data := range s.out {
		if err := s.conn.Write(ctx, data); err != nil {
			s.relay.log.Warn("failed to write to client",
				"username", s.name, "remote", s.conn.RemoteAddr(), "error", err)
			return
		}
	}
}

// register handles the first inbound frame, which must be a well-formed init
// request. Any other frame is rejected and the connection terminated without
// the session ever becoming active.
func (s *Session) register(ctx context.Context) bool {
	frame, err := s.read(ctx)
	if err != nil {
		switch {
		case errors.Is(err, errMalformedFrame):
			s.Enqueue(protocol.Errorf("invalid init message"))
		case isTimeout(err):
			s.Enqueue(protocol.Errorf("timed out due to inactivity"))
			s.relay.log.Info("session timed out before registration",
				"remote", s.conn.RemoteAddr())
		}
		return false
	}
	if frame.Type != protocol.KindInit {
		s.Enqueue(protocol.Errorf("invalid init message"))
		return false
	}

	name := strings.TrimSpace(frame.Username)
	// Register assigns s.name under its lock; a failed registration leaves
	// it empty so teardown never deregisters another session's claim.
	if err := s.relay.registry.Register(ctx, name, s); err != nil {
		switch {
		case errors.Is(err, ErrEmptyName):
			s.Enqueue(protocol.Errorf("username cannot be empty"))
		default:
			s.Enqueue(protocol.Errorf("username %q is already in use", name))
		}
		return false
	}

	s.Enqueue(protocol.Registered(name))
	s.relay.broadcaster.Broadcast()
	s.relay.replayer.ReplayAll(ctx, s)
	s.relay.log.Info("user registered", "username", name, "remote", s.conn.RemoteAddr())
	return true
}

func (s *Session) loop(ctx context.Context) {
	for {
		frame, err := s.read(ctx)
		switch {
		case err == nil:
			s.dispatch(ctx, frame)
		case errors.Is(err, errMalformedFrame):
			// Non-fatal once active.
			s.Enqueue(protocol.Errorf("invalid message format"))
		case isTimeout(err):
			s.Enqueue(protocol.Errorf("timed out due to inactivity"))
			s.relay.log.Info("session timed out", "username", s.name)
			return
		default:
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.relay.log.Warn("error reading from client",
					"username", s.name, "error", err)
			}
			return
		}
	}
}

func (s *Session) read(ctx context.Context) (*protocol.Frame, error) {
	if s.relay.idleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.relay.idleTimeout))
	}
	data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	var frame protocol.Frame
	if err := frame.Decode(data); err != nil {
		return nil, errors.Join(errMalformedFrame, err)
	}
	return &frame, nil
}

func (s *Session) dispatch(ctx context.Context, frame *protocol.Frame) {
	switch frame.Type {
	case protocol.KindMessage:
		receiver := strings.TrimSpace(frame.Receiver)
		content := strings.TrimSpace(frame.Content)
		if receiver == "" || content == "" {
			s.Enqueue(protocol.Errorf("invalid message format"))
			return
		}
		if err := s.relay.router.Route(ctx, s, receiver, content); err != nil {
			s.Enqueue(protocol.Errorf("user %q not found", receiver))
		}

	case protocol.KindGetUsers:
		s.Enqueue(protocol.UserList(s.relay.registry.Snapshot()))

	case protocol.KindHistory:
		with := strings.TrimSpace(frame.With)
		if with == "" {
			s.Enqueue(protocol.Errorf("invalid history request"))
			return
		}
		s.relay.replayer.ReplayPair(ctx, s, with)

	case protocol.KindPing:
		s.Enqueue(protocol.Pong())

	default:
		s.Enqueue(protocol.Errorf("unknown command %q", frame.Type))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
