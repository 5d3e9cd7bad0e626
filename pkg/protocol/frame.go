// Package protocol defines the wire frames exchanged between clients and the
// relay server. One frame is one JSON object; transports decide how frames
// are delimited (newline for raw TCP, one message per WebSocket text frame).
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the frame type on the wire.
type Kind string

const (
	// Inbound kinds.
	KindInit     Kind = "init"
	KindGetUsers Kind = "getUsers"
	KindPing     Kind = "ping"

	// Outbound kinds.
	KindRegistered Kind = "registered"
	KindUserList   Kind = "userlist"
	KindPong       Kind = "pong"
	KindError      Kind = "error"

	// Bidirectional kinds. An inbound "message" carries receiver and content;
	// the outbound form carries from, to, content and timestamp. An inbound
	// "history" names the other participant; the outbound form carries the
	// replayed entries.
	KindMessage Kind = "message"
	KindHistory Kind = "history"
)

// Entry is one persisted message inside a history frame.
type Entry struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Frame is the union of all wire frames. Unused fields are omitted when
// encoding, so every frame type shares this single struct.
type Frame struct {
	Type      Kind     `json:"type"`
	Username  string   `json:"username,omitempty"`
	Receiver  string   `json:"receiver,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Content   string   `json:"content,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Users     []string `json:"users,omitempty"`
	With      string   `json:"with,omitempty"`
	Messages  []Entry  `json:"messages,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Encode encodes the frame into JSON bytes.
func (f *Frame) Encode() ([]byte, error) {
	if f.Type == "" {
		return nil, fmt.Errorf("failed to encode frame: missing type")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode decodes JSON bytes into the frame.
func (f *Frame) Decode(data []byte) error {
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.Type == "" {
		return fmt.Errorf("failed to decode frame: missing type")
	}
	return nil
}

// FormatTimestamp renders a timestamp the way it travels on the wire.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a wire timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Init builds the registration request a client sends first.
func Init(username string) *Frame {
	return &Frame{Type: KindInit, Username: username}
}

// Registered builds the acknowledgment for a successful registration.
func Registered(username string) *Frame {
	return &Frame{Type: KindRegistered, Username: username}
}

// Send builds an inbound routed-message request.
func Send(receiver, content string) *Frame {
	return &Frame{Type: KindMessage, Receiver: receiver, Content: content}
}

// Delivered builds the delivery frame pushed to the receiver and echoed to
// the sender.
func Delivered(from, to, content string, at time.Time) *Frame {
	return &Frame{
		Type:      KindMessage,
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: FormatTimestamp(at),
	}
}

// GetUsers builds a roster request.
func GetUsers() *Frame {
	return &Frame{Type: KindGetUsers}
}

// UserList builds a roster frame.
func UserList(users []string) *Frame {
	return &Frame{Type: KindUserList, Users: users}
}

// GetHistory builds an on-demand history request for one pair.
func GetHistory(with string) *Frame {
	return &Frame{Type: KindHistory, With: with}
}

// History builds a history frame scoped to one pair.
func History(with string, messages []Entry) *Frame {
	return &Frame{Type: KindHistory, With: with, Messages: messages}
}

// Ping builds a keepalive probe.
func Ping() *Frame {
	return &Frame{Type: KindPing}
}

// Pong builds a keepalive reply.
func Pong() *Frame {
	return &Frame{Type: KindPong}
}

// Errorf builds an error frame with a formatted reason.
func Errorf(format string, args ...any) *Frame {
	return &Frame{Type: KindError, Reason: fmt.Sprintf(format, args...)}
}
