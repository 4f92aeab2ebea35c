package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/chartduel/chartduel-backend/pkg/metrics"
)

// Registry tracks at most one live connection per user. Registering a new
// handle for a user silently replaces the previous one, so a reconnecting
// device always wins.
type Registry struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*Conn
	metrics *metrics.RealtimeMetrics
}

// NewRegistry builds an empty registry. metrics may be nil.
func NewRegistry(m *metrics.RealtimeMetrics) *Registry {
	return &Registry{
		conns:   make(map[uuid.UUID]*Conn),
		metrics: m,
	}
}

// Register stores conn as the user's single handle and returns the replaced
// connection, if any, so the caller can close it.
func (r *Registry) Register(userID uuid.UUID, conn *Conn) *Conn {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if prev == nil {
		r.metrics.ConnOpened()
	}
	return prev
}

// Unregister removes the user's handle only when it still is the provided
// connection. A disconnect racing a reconnect must not evict the newer
// session.
func (r *Registry) Unregister(userID uuid.UUID, conn *Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	r.metrics.ConnClosed()
	return true
}

// Lookup returns the user's live connection, if any.
func (r *Registry) Lookup(userID uuid.UUID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Count reports the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// SendTo delivers one envelope to a single user. Returns false when the user
// has no live handle.
func (r *Registry) SendTo(userID uuid.UUID, env Envelope) (bool, error) {
	conn, ok := r.Lookup(userID)
	if !ok {
		return false, nil
	}
	if err := conn.WriteJSON(env); err != nil {
		r.metrics.BroadcastFailure()
		return true, err
	}
	r.metrics.BroadcastOut(1)
	return true, nil
}

// BroadcastTo fans an envelope out to the listed users, skipping exclude.
// Per-recipient failures are swallowed; the aggregate is returned for logging
// only and never fails the triggering operation.
func (r *Registry) BroadcastTo(userIDs []uuid.UUID, env Envelope, exclude uuid.UUID) error {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(userIDs))
	for _, id := range userIDs {
		if id == exclude {
			continue
		}
		if conn, ok := r.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	return r.write(targets, env)
}

// BroadcastAll fans an envelope out to every registered connection, skipping
// exclude.
func (r *Registry) BroadcastAll(env Envelope, exclude uuid.UUID) error {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		if id == exclude {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	return r.write(targets, env)
}

func (r *Registry) write(targets []*Conn, env Envelope) error {
	var errs error
	delivered := 0
	for _, conn := range targets {
		if err := conn.WriteJSON(env); err != nil {
			errs = multierr.Append(errs, err)
			r.metrics.BroadcastFailure()
			continue
		}
		delivered++
	}
	r.metrics.BroadcastOut(delivered)
	return errs
}
