package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one persisted chat message. Immutable once constructed; the
// timestamp is assigned exactly once, at routing time, and shared by the
// delivery frame and the persisted record.
type Record struct {
	ID       uuid.UUID
	Sender   string
	Receiver string
	Content  string
	SentAt   time.Time
}

// HistoryStore is the append-only chat log. Implementations are responsible
// for their own internal serialization; the relay calls them concurrently.
type HistoryStore interface {
	// Append persists one delivered message.
	Append(ctx context.Context, rec Record) error

	// Query returns the full history between a and b, oldest first,
	// regardless of which participant sent each message.
	Query(ctx context.Context, a, b string) ([]Record, error)
}

// UserDirectory is the persisted set of display names. Exists and Add back
// the registration cross-check against persisted account names; Remove
// releases the claim the registry recorded for a live handle so the name
// becomes usable again after disconnect.
type UserDirectory interface {
	Exists(ctx context.Context, name string) (bool, error)
	Add(ctx context.Context, name string) (bool, error)
	Remove(ctx context.Context, name string) error
}
