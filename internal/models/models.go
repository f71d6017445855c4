package models

import (
	"time"
)

// Role is what a user is allowed to do on the platform. We keep it a
// typed string rather than an int so the JWT claim and the users table
// stay human-readable.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// User is a person on the platform. The realtime core never creates or
// mutates users — it only reads them to resolve display names when
// fanning out chat messages.
//
// Why int64 IDs and not UUIDs?
//   - The upstream account system issues numeric ids, and they appear
//     verbatim in JWT claims and presence broadcasts. Matching its type
//     avoids a conversion layer at every boundary.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated principal behind one websocket
// connection. It is resolved once from the JWT at handshake time and is
// immutable for the life of the connection.
type Identity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Message is a single persisted chat message. Exactly one of RoomID or
// BubbleID is set — a message belongs to a room-wide chat or to a
// small-group bubble, never both.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table. bigserial is smaller,
//     naturally ordered (higher ID = later append), and index-friendly.
//   - The append order of IDs is also the display order: the insert is
//     the single serialization point that gives every channel a total
//     message order regardless of sender clock skew.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    *int64    `json:"room_id,omitempty"`
	BubbleID  *int64    `json:"bubble_id,omitempty"`
	SenderID  int64     `json:"sender_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PresenceRecord is the last-known online state for one identity. One
// logical record per user, not per connection: a user with three tabs
// open is online once, and goes offline only when the last tab closes.
type PresenceRecord struct {
	UserID     int64     `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
