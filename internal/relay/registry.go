package relay

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Registry is the authoritative mapping of live username to session. It is
// the single structure every connection touches, so all operations run under
// one mutex; directory calls happen inside the critical section to keep the
// existence check and the insertion a single consistent step.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	directory UserDirectory
	log       *slog.Logger
}

// NewRegistry creates an empty registry backed by the given directory.
func NewRegistry(directory UserDirectory, log *slog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		directory: directory,
		log:       log,
	}
}

// Register claims name for session. The name must be non-empty after
// trimming, not currently live, and not already present in the directory.
// On success the name is live in the registry and recorded in the directory.
func (r *Registry) Register(ctx context.Context, name string, session *Session) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; ok {
		return ErrNameInUse
	}

	// A persisted account name may not be reused as a live handle. If the
	// directory is unreachable the session is admitted anyway: presence
	// matters more than the cross-check.
	exists, err := r.directory.Exists(ctx, name)
	if err != nil {
		r.log.Warn("user directory unavailable, skipping name check",
			"username", name, "error", err)
	} else if exists {
		return ErrNameInUse
	}

	added, err := r.directory.Add(ctx, name)
	if err != nil {
		r.log.Warn("failed to record username in directory",
			"username", name, "error", err)
	} else if !added {
		return ErrNameInUse
	}

	// The name is fixed before the session is published through the map;
	// anyone who finds the session via the registry sees it set.
	session.name = name
	r.sessions[name] = session
	return nil
}

// Deregister removes name from the registry and releases its directory
// claim. Idempotent: deregistering an absent name reports false and has no
// other effect.
func (r *Registry) Deregister(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; !ok {
		return false
	}
	delete(r.sessions, name)

	if err := r.directory.Remove(ctx, name); err != nil {
		r.log.Warn("failed to release username in directory",
			"username", name, "error", err)
	}
	return true
}

// Lookup returns the live session registered under name.
func (r *Registry) Lookup(name string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[name]
	return session, ok
}

// Snapshot returns the sorted set of currently registered names.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	names := lo.Keys(r.sessions)
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Sessions returns the live sessions at the time of the call. Callers write
// to them outside the registry lock.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Values(r.sessions)
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
