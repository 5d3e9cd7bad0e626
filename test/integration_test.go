package test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/chatchum/relay/internal/client"
	"github.com/chatchum/relay/internal/relay"
	"github.com/chatchum/relay/internal/storage/sqlite"
	"github.com/chatchum/relay/internal/transport/tcp"
	"github.com/chatchum/relay/internal/transport/unified"
	"github.com/chatchum/relay/internal/transport/ws"
	"github.com/chatchum/relay/pkg/protocol"
)

type stoppable interface {
	Start() error
	Stop()
	Addr() string
}

func startServer(t *testing.T, build func(r *relay.Relay, log *slog.Logger) stoppable) string {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := build(relay.New(store, store, relay.Config{}, log), log)

	go func() {
		_ = srv.Start()
	}()
	t.Cleanup(srv.Stop)

	time.Sleep(100 * time.Millisecond)

	addr := srv.Addr()
	if addr == "" {
		t.Fatal("server address is empty")
	}
	return addr
}

func connect(t *testing.T, c *client.Client) {
	t.Helper()
	if err := c.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(c.Disconnect)
	if err := c.Register(2 * time.Second); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
}

func waitForFrame(t *testing.T, c *client.Client, match func(protocol.Frame) bool) protocol.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-c.Frames():
			if !ok {
				t.Fatal("connection closed while waiting for frame")
			}
			if match(frame) {
				return frame
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestIntegration_TwoPartyChatOverTCP(t *testing.T) {
	addr := startServer(t, func(r *relay.Relay, log *slog.Logger) stoppable {
		return tcp.New(":0", r, log)
	})

	alice := client.New(addr, "alice")
	connect(t, alice)

	bob := client.New(addr, "bob")
	connect(t, bob)

	// Both see the two-user roster once bob is in.
	waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindUserList && len(f.Users) == 2
	})

	if err := alice.Send("bob", "Hello from alice"); err != nil {
		t.Fatalf("alice failed to send: %v", err)
	}

	// Bob receives the message, alice gets the echo.
	got := waitForFrame(t, bob, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage
	})
	if got.From != "alice" || got.Content != "Hello from alice" {
		t.Errorf("bob received %+v, want message from alice", got)
	}
	if got.Timestamp == "" {
		t.Error("delivered message has no timestamp")
	}

	echo := waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage
	})
	if echo.To != "bob" || echo.Content != "Hello from alice" {
		t.Errorf("alice received echo %+v, want copy of her message", echo)
	}

	// Both sides get the refreshed pair history. Bob skips past the empty
	// replay he got at registration.
	history := waitForFrame(t, bob, func(f protocol.Frame) bool {
		return f.Type == protocol.KindHistory && f.With == "alice" && len(f.Messages) == 1
	})
	if history.Messages[0].Content != "Hello from alice" {
		t.Errorf("bob's history = %+v, want the one exchanged message", history.Messages)
	}

	if err := bob.Send("alice", "Hi back"); err != nil {
		t.Fatalf("bob failed to send: %v", err)
	}
	reply := waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage && f.From == "bob"
	})
	if reply.Content != "Hi back" {
		t.Errorf("alice received %q, want %q", reply.Content, "Hi back")
	}

	// On-demand history now holds both messages in order.
	if err := alice.RequestHistory("bob"); err != nil {
		t.Fatalf("alice failed to request history: %v", err)
	}
	full := waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindHistory && f.With == "bob" && len(f.Messages) == 2
	})
	if full.Messages[0].Content != "Hello from alice" || full.Messages[1].Content != "Hi back" {
		t.Errorf("history out of order: %+v", full.Messages)
	}
}

func TestIntegration_DuplicateUsernameRejected(t *testing.T) {
	addr := startServer(t, func(r *relay.Relay, log *slog.Logger) stoppable {
		return tcp.New(":0", r, log)
	})

	alice := client.New(addr, "alice")
	connect(t, alice)

	imposter := client.New(addr, "alice")
	if err := imposter.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer imposter.Disconnect()

	err := imposter.Register(2 * time.Second)
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	// The original session is unaffected.
	if err := alice.Ping(); err != nil {
		t.Fatalf("alice failed to ping: %v", err)
	}
	waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindPong
	})
}

func TestIntegration_DisconnectFreesUsername(t *testing.T) {
	addr := startServer(t, func(r *relay.Relay, log *slog.Logger) stoppable {
		return tcp.New(":0", r, log)
	})

	alice := client.New(addr, "alice")
	connect(t, alice)

	bob := client.New(addr, "bob")
	if err := bob.Connect(); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := bob.Register(2 * time.Second); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	// Alice sees bob arrive before he leaves again.
	waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindUserList && len(f.Users) == 2
	})
	bob.Disconnect()

	// Alice sees bob leave.
	waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindUserList && len(f.Users) == 1
	})

	// The name is immediately reusable.
	bob2 := client.New(addr, "bob")
	connect(t, bob2)
}

func TestIntegration_WebSocketChat(t *testing.T) {
	addr := startServer(t, func(r *relay.Relay, log *slog.Logger) stoppable {
		return ws.New(":0", r, log)
	})

	alice := client.NewWebSocket("ws://"+addr, "alice")
	connect(t, alice)

	bob := client.NewWebSocket("ws://"+addr, "bob")
	connect(t, bob)

	if err := alice.Send("bob", "Hello over WebSocket"); err != nil {
		t.Fatalf("alice failed to send: %v", err)
	}

	got := waitForFrame(t, bob, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage
	})
	if got.From != "alice" || got.Content != "Hello over WebSocket" {
		t.Errorf("bob received %+v, want message from alice", got)
	}

	// Reconnecting replays the pair history.
	bob.Disconnect()
	time.Sleep(100 * time.Millisecond)

	bob2 := client.NewWebSocket("ws://"+addr, "bob")
	connect(t, bob2)
	history := waitForFrame(t, bob2, func(f protocol.Frame) bool {
		return f.Type == protocol.KindHistory && f.With == "alice"
	})
	if len(history.Messages) != 1 {
		t.Errorf("replayed history = %+v, want one message", history.Messages)
	}
}

func TestIntegration_SinglePortMixedTransports(t *testing.T) {
	addr := startServer(t, func(r *relay.Relay, log *slog.Logger) stoppable {
		return unified.New(":0", r, log)
	})

	// One raw socket client and one WebSocket client on the same port.
	alice := client.New(addr, "alice")
	connect(t, alice)

	bob := client.NewWebSocket("ws://"+addr, "bob")
	connect(t, bob)

	if err := alice.Send("bob", "Hello from raw TCP"); err != nil {
		t.Fatalf("alice failed to send: %v", err)
	}
	got := waitForFrame(t, bob, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage
	})
	if got.Content != "Hello from raw TCP" {
		t.Errorf("bob received %q, want %q", got.Content, "Hello from raw TCP")
	}

	if err := bob.Send("alice", "Hello from WebSocket"); err != nil {
		t.Fatalf("bob failed to send: %v", err)
	}
	reply := waitForFrame(t, alice, func(f protocol.Frame) bool {
		return f.Type == protocol.KindMessage && f.From == "bob"
	})
	if reply.Content != "Hello from WebSocket" {
		t.Errorf("alice received %q, want %q", reply.Content, "Hello from WebSocket")
	}
}
