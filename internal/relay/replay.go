package relay

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/chatchum/relay/pkg/protocol"
)

// Replayer pushes persisted conversation history to sessions: everything at
// registration time, one pair after each routed message or explicit request.
type Replayer struct {
	registry *Registry
	history  HistoryStore
	log      *slog.Logger
}

// NewReplayer creates a replayer over the given registry and history store.
func NewReplayer(registry *Registry, history HistoryStore, log *slog.Logger) *Replayer {
	return &Replayer{registry: registry, history: history, log: log}
}

// ReplayAll pushes one history frame per other user currently online, so a
// reconnecting user sees all conversations with everyone present.
func (rp *Replayer) ReplayAll(ctx context.Context, session *Session) {
	for _, other := range rp.registry.Snapshot() {
		if other == session.Name() {
			continue
		}
		rp.ReplayPair(ctx, session, other)
	}
}

// ReplayPair pushes the history between the session's user and other. A
// failing store degrades to an empty history frame; the session stays up.
func (rp *Replayer) ReplayPair(ctx context.Context, session *Session, other string) {
	records, err := rp.history.Query(ctx, session.Name(), other)
	if err != nil {
		rp.log.Warn("failed to load chat history",
			"username", session.Name(), "with", other, "error", err)
		records = nil
	}

	entries := lo.Map(records, func(rec Record, _ int) protocol.Entry {
		return protocol.Entry{
			From:      rec.Sender,
			To:        rec.Receiver,
			Content:   rec.Content,
			Timestamp: protocol.FormatTimestamp(rec.SentAt),
		}
	})
	session.Enqueue(protocol.History(other, entries))
}
