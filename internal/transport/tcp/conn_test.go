package tcp_test

import (
	"bufio"
	"context"
	"net"
	"testing"

	"github.com/chatchum/relay/internal/transport/tcp"
)

func TestConn_ReadStripsTerminator(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := tcp.NewConn(server)
	go func() {
		client.Write([]byte("{\"type\":\"ping\"}\r\n"))
	}()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got, want := string(data), `{"type":"ping"}`; got != want {
		t.Errorf("Read() = %q, want %q", got, want)
	}
}

func TestConn_WriteAppendsNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := tcp.NewConn(server)
	go func() {
		if err := conn.Write(context.Background(), []byte(`{"type":"pong"}`)); err != nil {
			t.Errorf("Write failed: %v", err)
		}
	}()

	line, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read line: %v", err)
	}
	if got, want := line, "{\"type\":\"pong\"}\n"; got != want {
		t.Errorf("wire line = %q, want %q", got, want)
	}
}

func TestConn_Close(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := tcp.NewConn(server)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := conn.Read(context.Background()); err == nil {
		t.Error("expected error reading closed conn, got nil")
	}
}
