package realtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransitionFunc is invoked whenever a user's online state flips — on
// the 0→1 live-connection transition and on 1→0, never in between. The
// presence tracker hangs off this hook.
type TransitionFunc func(userID int64, online bool)

// Registry tracks which identities currently hold an open connection.
// It is an injected instance, not a package global, so every dependent
// (and every test) gets its own isolated world.
//
// A user may hold several connections at once (laptop plus phone);
// online means "at least one live connection".
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]Conn
	byUser map[int64]map[uuid.UUID]Conn

	onTransition TransitionFunc
	logger       *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]Conn),
		byUser: make(map[int64]map[uuid.UUID]Conn),
		logger: logger,
	}
}

// OnTransition installs the presence hook. Wire-up happens once at
// startup, before any connection is admitted.
func (r *Registry) OnTransition(fn TransitionFunc) {
	r.onTransition = fn
}

// Register admits a connection. A connection without a resolvable
// identity is refused — nothing downstream (joins, sends) is possible
// for it.
func (r *Registry) Register(conn Conn) error {
	userID := conn.Identity().ID
	if userID <= 0 {
		return fmt.Errorf("connection %s has no resolvable identity", conn.ID())
	}

	r.mu.Lock()
	if _, dup := r.conns[conn.ID()]; dup {
		r.mu.Unlock()
		return fmt.Errorf("connection %s is already registered", conn.ID())
	}
	r.conns[conn.ID()] = conn
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[uuid.UUID]Conn)
		r.byUser[userID] = set
	}
	set[conn.ID()] = conn
	cameOnline := len(set) == 1
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.String("conn_id", conn.ID().String()),
		zap.Int64("user_id", userID),
	)

	// The hook runs outside the lock but inside the same call: by the
	// time Register returns, the presence side effect has happened.
	if cameOnline && r.onTransition != nil {
		r.onTransition(userID, true)
	}
	return nil
}

// Deregister evicts a connection. Idempotent: evicting an absent
// connection is a no-op, not an error — disconnect paths may race.
func (r *Registry) Deregister(connID uuid.UUID) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)

	userID := conn.Identity().ID
	wentOffline := false
	if set, ok := r.byUser[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, userID)
			wentOffline = true
		}
	}
	r.mu.Unlock()

	r.logger.Info("connection deregistered",
		zap.String("conn_id", connID.String()),
		zap.Int64("user_id", userID),
	)

	if wentOffline && r.onTransition != nil {
		r.onTransition(userID, false)
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ListOnline returns the ids of every user with a live connection.
func (r *Registry) ListOnline() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	return ids
}

// Conns returns a snapshot of every live connection, for
// broadcast-to-everyone events like the presence list.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}
