package realtime

import (
	"github.com/campuslive/campuslive/internal/channel"
	"github.com/google/uuid"
)

// TypingRelay fans typing signals out to a chat channel, excluding the
// typist. Purely ephemeral: nothing is persisted, and there is no
// ordering guarantee beyond transport order. Debouncing repeated typing
// events and emitting stop-typing after an idle window is the client's
// job — the relay only relays.
type TypingRelay struct {
	router *Router
}

func NewTypingRelay(router *Router) *TypingRelay {
	return &TypingRelay{router: router}
}

// Typing announces that senderName is typing in the channel.
func (t *TypingRelay) Typing(origin uuid.UUID, key channel.Key, senderName string) {
	if !key.IsChat() {
		return
	}
	t.router.broadcast(key, Envelope{
		Type:       EventTyping,
		Channel:    key.String(),
		SenderName: senderName,
	}, origin)
}

// StopTyping clears the indicator for the channel.
func (t *TypingRelay) StopTyping(origin uuid.UUID, key channel.Key) {
	if !key.IsChat() {
		return
	}
	t.router.broadcast(key, Envelope{
		Type:    EventStopTyping,
		Channel: key.String(),
	}, origin)
}
