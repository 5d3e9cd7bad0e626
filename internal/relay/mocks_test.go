package relay_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/chatchum/relay/internal/relay"
	"github.com/chatchum/relay/pkg/protocol"
)

// mockConn is an in-memory relay.Conn honoring read deadlines.
type mockConn struct {
	readCh chan []byte

	mu       sync.Mutex
	written  [][]byte
	deadline time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	deadline := m.deadline
	m.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-m.closed:
		return nil, net.ErrClosed
	case <-timeout:
		return nil, os.ErrDeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return "mock:0"
}

func (m *mockConn) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.deadline = t
	m.mu.Unlock()
	return nil
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// push feeds one frame to the session's read loop.
func (m *mockConn) push(frame *protocol.Frame) {
	data, err := frame.Encode()
	if err != nil {
		panic(err)
	}
	m.readCh <- data
}

// frames decodes everything written so far.
func (m *mockConn) frames() []protocol.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Frame, 0, len(m.written))
	for _, data := range m.written {
		var frame protocol.Frame
		if err := frame.Decode(data); err != nil {
			continue
		}
		out = append(out, frame)
	}
	return out
}

// framesOf filters written frames by kind.
func (m *mockConn) framesOf(kind protocol.Kind) []protocol.Frame {
	var out []protocol.Frame
	for _, frame := range m.frames() {
		if frame.Type == kind {
			out = append(out, frame)
		}
	}
	return out
}

// Compile-time check that mockConn implements relay.Conn.
var _ relay.Conn = (*mockConn)(nil)

// fakeDirectory is an in-memory relay.UserDirectory with injectable errors.
type fakeDirectory struct {
	mu        sync.Mutex
	names     map[string]struct{}
	existsErr error
	addErr    error
}

func newFakeDirectory(seed ...string) *fakeDirectory {
	d := &fakeDirectory{names: make(map[string]struct{})}
	for _, name := range seed {
		d.names[name] = struct{}{}
	}
	return d
}

func (d *fakeDirectory) Exists(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.existsErr != nil {
		return false, d.existsErr
	}
	_, ok := d.names[name]
	return ok, nil
}

func (d *fakeDirectory) Add(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.addErr != nil {
		return false, d.addErr
	}
	if _, ok := d.names[name]; ok {
		return false, nil
	}
	d.names[name] = struct{}{}
	return true, nil
}

func (d *fakeDirectory) Remove(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.names, name)
	return nil
}

// fakeHistory is an in-memory relay.HistoryStore with injectable errors. It
// records the participant pairs it was queried for.
type fakeHistory struct {
	mu        sync.Mutex
	records   []relay.Record
	queries   [][2]string
	appendErr error
	queryErr  error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{}
}

func (h *fakeHistory) Append(ctx context.Context, rec relay.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *fakeHistory) Query(ctx context.Context, a, b string) ([]relay.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, [2]string{a, b})
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	var out []relay.Record
	for _, rec := range h.records {
		if (rec.Sender == a && rec.Receiver == b) || (rec.Sender == b && rec.Receiver == a) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (h *fakeHistory) queriedPairs() [][2]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][2]string(nil), h.queries...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
