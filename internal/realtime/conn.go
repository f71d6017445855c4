package realtime

import (
	"github.com/campuslive/campuslive/internal/models"
	"github.com/google/uuid"
)

// Conn is one live client connection as the realtime services see it.
// The websocket client implements it in production; tests substitute a
// recording fake, which is why the registry and router are written
// against this interface instead of *Client.
type Conn interface {
	// ID is the unique handle for this transport session.
	ID() uuid.UUID

	// Identity is the verified principal behind the connection,
	// immutable for its lifetime.
	Identity() models.Identity

	// Send enqueues an event for delivery. It must not block: a
	// receiver that cannot keep up reports false and is the caller's
	// problem (slow consumers get dropped by the write pump, not stall
	// the broadcaster).
	Send(ev Envelope) bool
}
