package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/crdt"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentManager owns one shared CRDT replica per artifact and the
// editing sessions around it. Sessions are created lazily on first join
// and destroyed by a per-session eviction timer once the last
// participant has been gone for ttl — the in-memory document map is
// bounded instead of growing for the life of the process.
type DocumentManager struct {
	router *Router
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*docSession
}

type docSession struct {
	doc   *crdt.Doc
	evict *time.Timer
}

// NewDocumentManager builds the manager. ttl <= 0 disables eviction:
// sessions then live for the rest of the process, which matches the
// old behavior but leaks under long-running operation.
func NewDocumentManager(router *Router, ttl time.Duration, logger *zap.Logger) *DocumentManager {
	return &DocumentManager{
		router:   router,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[int64]*docSession),
	}
}

// Join adds the connection to the artifact's editing session, creating
// the session if needed, and returns a snapshot of the current shared
// state. The caller sends the snapshot to the new joiner before any
// later delta can reach it — a late joiner starts from the live
// document, not from a blank copy that only fills in on the next edit.
func (m *DocumentManager) Join(conn Conn, artifactID int64) ([]byte, error) {
	if artifactID <= 0 {
		return nil, fmt.Errorf("invalid artifact id %d", artifactID)
	}

	m.mu.Lock()
	sess, ok := m.sessions[artifactID]
	if !ok {
		sess = &docSession{doc: crdt.NewDoc()}
		m.sessions[artifactID] = sess
		m.logger.Info("document session created", zap.Int64("artifact_id", artifactID))
	}
	if sess.evict != nil {
		// A participant is back; the idle clock resets.
		sess.evict.Stop()
		sess.evict = nil
	}
	doc := sess.doc
	m.mu.Unlock()

	m.router.Join(conn, channel.Doc(artifactID))

	snapshot, err := doc.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot document %d: %w", artifactID, err)
	}
	return snapshot, nil
}

// ApplyUpdate merges a delta into the shared state and rebroadcasts the
// raw bytes to every co-editor except the origin. A delta the CRDT
// rejects is dropped with a logged warning: the session and its other
// participants carry on untouched.
func (m *DocumentManager) ApplyUpdate(artifactID int64, delta []byte, origin uuid.UUID) error {
	m.mu.Lock()
	sess, ok := m.sessions[artifactID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active session for artifact %d", artifactID)
	}

	if err := sess.doc.Apply(delta); err != nil {
		m.logger.Warn("dropping malformed document update",
			zap.Int64("artifact_id", artifactID),
			zap.String("origin", origin.String()),
			zap.Error(err),
		)
		return fmt.Errorf("apply update: %w", err)
	}

	m.router.broadcast(channel.Doc(artifactID), Envelope{
		Type:   EventDocUpdate,
		FileID: artifactID,
		Update: delta,
	}, origin)
	return nil
}

// Leave removes the connection from the session's channel and starts
// the eviction clock if nobody is left.
func (m *DocumentManager) Leave(connID uuid.UUID, artifactID int64) {
	m.router.Leave(connID, channel.Doc(artifactID))
	m.NoteIdle(artifactID)
}

// NoteIdle checks whether the artifact's channel is empty and, if so,
// schedules the session for destruction after ttl. A rejoin before the
// deadline cancels it. Disconnect cleanup calls this for every doc
// channel the dead connection had joined.
func (m *DocumentManager) NoteIdle(artifactID int64) {
	if m.ttl <= 0 {
		return
	}
	if len(m.router.MembersOf(channel.Doc(artifactID))) > 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[artifactID]
	if !ok || sess.evict != nil {
		return
	}
	sess.evict = time.AfterFunc(m.ttl, func() {
		m.destroyIfIdle(artifactID)
	})
}

func (m *DocumentManager) destroyIfIdle(artifactID int64) {
	// Re-check at fire time: a join racing the timer wins.
	if len(m.router.MembersOf(channel.Doc(artifactID))) > 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[artifactID]
	if !ok || sess.evict == nil {
		return
	}
	delete(m.sessions, artifactID)
	m.logger.Info("document session evicted", zap.Int64("artifact_id", artifactID))
}

// SessionCount reports how many sessions are currently held.
func (m *DocumentManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop cancels all pending eviction timers. Called on shutdown.
func (m *DocumentManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.evict != nil {
			sess.evict.Stop()
			sess.evict = nil
		}
	}
}
