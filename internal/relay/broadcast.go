package relay

import (
	"log/slog"

	"github.com/chatchum/relay/pkg/protocol"
)

// Broadcaster pushes the current roster to every live session after each
// registry change. Fan-out is best-effort: a frame to a closed or slow
// session is dropped, and a later broadcast corrects any stale roster.
type Broadcaster struct {
	registry *Registry
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Broadcast snapshots the roster and pushes it to every registered session.
// The snapshot and the session list are taken first so no write happens
// while the registry lock is held.
func (b *Broadcaster) Broadcast() {
	users := b.registry.Snapshot()
	sessions := b.registry.Sessions()

	frame := protocol.UserList(users)
	for _, session := range sessions {
		session.Enqueue(frame)
	}
	b.log.Debug("roster broadcast", "online", len(users))
}
