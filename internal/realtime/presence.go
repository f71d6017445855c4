package realtime

import (
	"context"
	"time"

	"github.com/campuslive/campuslive/internal/repository"
	"go.uber.org/zap"
)

// PresenceTracker turns registry transitions into a durable record and
// a broadcast. It is the registry's OnTransition hook.
type PresenceTracker struct {
	registry *Registry
	repo     repository.PresenceRepository
	logger   *zap.Logger

	// writeTimeout bounds the store upsert so a slow Redis can't stall
	// the connection lifecycle.
	writeTimeout time.Duration
}

func NewPresenceTracker(registry *Registry, repo repository.PresenceRepository, logger *zap.Logger) *PresenceTracker {
	return &PresenceTracker{
		registry:     registry,
		repo:         repo,
		logger:       logger,
		writeTimeout: 5 * time.Second,
	}
}

// OnPresenceChanged persists the new state and broadcasts the full
// online set to every connected client.
//
// Persistence is best-effort: a failed write is logged and the
// broadcast proceeds anyway. Clients always see the live truth from the
// registry; the store catches up on the next transition.
func (t *PresenceTracker) OnPresenceChanged(userID int64, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
	defer cancel()

	if err := t.repo.SetOnline(ctx, userID, online); err != nil {
		t.logger.Warn("presence upsert failed; broadcasting anyway",
			zap.Int64("user_id", userID),
			zap.Bool("online", online),
			zap.Error(err),
		)
	}

	t.Broadcast()
}

// Broadcast pushes the current online-user list to every connection.
func (t *PresenceTracker) Broadcast() {
	ev := Envelope{Type: EventOnlineUsers, Users: t.registry.ListOnline()}
	for _, conn := range t.registry.Conns() {
		conn.Send(ev)
	}
}
