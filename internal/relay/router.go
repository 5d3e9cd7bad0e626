package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chatchum/relay/pkg/protocol"
)

// Router delivers point-to-point messages between registered sessions.
type Router struct {
	registry *Registry
	history  HistoryStore
	replayer *Replayer
	log      *slog.Logger
}

// NewRouter creates a router over the given registry and history store.
func NewRouter(registry *Registry, history HistoryStore, replayer *Replayer, log *slog.Logger) *Router {
	return &Router{registry: registry, history: history, replayer: replayer, log: log}
}

// Route looks up receiver and delivers content to it, echoing the same
// delivery frame back to the sender as confirmation. The timestamp is
// assigned here, once, and shared by the delivery frames and the persisted
// record. An unknown receiver yields ErrRecipientNotFound and persists
// nothing; a failing history store is logged and chat continues.
func (r *Router) Route(ctx context.Context, sender *Session, receiver, content string) error {
	target, ok := r.registry.Lookup(receiver)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecipientNotFound, receiver)
	}

	rec := Record{
		ID:       uuid.New(),
		Sender:   sender.Name(),
		Receiver: receiver,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}

	delivered := protocol.Delivered(rec.Sender, rec.Receiver, rec.Content, rec.SentAt)
	target.Enqueue(delivered)
	sender.Enqueue(delivered)

	if err := r.history.Append(ctx, rec); err != nil {
		r.log.Warn("failed to persist message",
			"sender", rec.Sender, "receiver", rec.Receiver, "error", err)
	}

	r.replayer.ReplayPair(ctx, sender, receiver)
	r.replayer.ReplayPair(ctx, target, rec.Sender)

	r.log.Debug("message routed", "sender", rec.Sender, "receiver", rec.Receiver)
	return nil
}
