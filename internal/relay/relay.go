package relay

import (
	"context"
	"log/slog"
	"time"
)

const (
	// defaultIdleTimeout is the window a session may stay silent before it
	// is closed.
	defaultIdleTimeout = 220 * time.Second

	defaultSendBuffer = 16
)

// Config tunes per-session behavior.
type Config struct {
	// IdleTimeout closes a session that produced no inbound frame within
	// the window. Zero means the default, negative disables the timeout.
	IdleTimeout time.Duration

	// SendBuffer is the outbound frame buffer per session. A full buffer
	// drops frames instead of blocking the writer.
	SendBuffer int
}

// Relay wires the registry, router, broadcaster and replayer into one engine.
// Both the TCP and WebSocket front ends share a single Relay instance.
type Relay struct {
	registry    *Registry
	router      *Router
	broadcaster *Broadcaster
	replayer    *Replayer
	idleTimeout time.Duration
	sendBuffer  int
	log         *slog.Logger
}

// New builds a relay on top of the given external collaborators.
func New(directory UserDirectory, history HistoryStore, cfg Config, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}

	registry := NewRegistry(directory, log)
	replayer := NewReplayer(registry, history, log)

	return &Relay{
		registry:    registry,
		router:      NewRouter(registry, history, replayer, log),
		broadcaster: NewBroadcaster(registry, log),
		replayer:    replayer,
		idleTimeout: cfg.IdleTimeout,
		sendBuffer:  cfg.SendBuffer,
		log:         log,
	}
}

// HandleConn drives one client connection through its whole lifecycle and
// returns when the session is closed. Transports call this once per accepted
// connection.
func (r *Relay) HandleConn(ctx context.Context, conn Conn) {
	newSession(r, conn).run(ctx)
}

// Registry exposes the live-session registry, mainly for roster inspection.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Online returns the number of registered sessions.
func (r *Relay) Online() int {
	return r.registry.Count()
}
