package realtime

import (
	"time"
)

// EventType enumerates every event that travels over a websocket, in
// either direction. Dispatch switches on this typed value — the chat
// versus document distinction is carried by the type system, not by
// string-prefix sniffing on channel names.
type EventType string

// Client → server.
const (
	EventJoinRoom   EventType = "join-room"
	EventLeaveRoom  EventType = "leave-room"
	EventJoinFile   EventType = "join-file"
	EventLeaveFile  EventType = "leave-file"
	EventTyping     EventType = "typing"
	EventStopTyping EventType = "stop-typing"
)

// Bidirectional.
const (
	EventMessage   EventType = "message"
	EventDocUpdate EventType = "doc-update"
)

// Server → client.
const (
	EventDocSync     EventType = "doc-sync"
	EventOnlineUsers EventType = "online-users"
	EventError       EventType = "error"
)

// Envelope is the single wire frame for all events. One flat struct
// with omitempty fields rather than a struct per event: the client sees
// a uniform {"type": …} shape, and the dispatcher picks the fields the
// event type defines. Fields that don't belong to an event are simply
// absent on the wire.
type Envelope struct {
	Type EventType `json:"type"`

	// Chat + typing events.
	Channel    string     `json:"channel,omitempty"`
	Text       string     `json:"text,omitempty"`
	SenderID   int64      `json:"senderId,omitempty"`
	SenderName string     `json:"senderName,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`

	// Document events. Update is an opaque CRDT delta; JSON carries it
	// base64-encoded.
	FileID int64  `json:"fileId,omitempty"`
	Update []byte `json:"update,omitempty"`

	// online-users broadcast.
	Users []int64 `json:"users,omitempty"`

	// error events, delivered to the offending connection only.
	Error string `json:"error,omitempty"`
}

// errorEvent builds the reply for a rejected client event.
func errorEvent(msg string) Envelope {
	return Envelope{Type: EventError, Error: msg}
}
