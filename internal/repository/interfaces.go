package repository

import (
	"context"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/models"
)

// Why context.Context as the first parameter on every method?
//
//   - It's idiomatic Go for anything that does I/O (DB, Redis, HTTP).
//   - It carries deadlines: if the request or socket that triggered the
//     call is gone, the query gets cancelled too. No wasted work.
//   - Rule of thumb: if a method touches the network, it takes ctx.

// MessageRepository handles chat message persistence. The insert is the
// single serialization point for a channel: concurrent senders are
// ordered by the bigserial id the store assigns, and that order is the
// display order everywhere.
type MessageRepository interface {
	// Create persists a message into the room or bubble named by key
	// and returns it with ID and CreatedAt populated. The timestamp is
	// server-assigned — client clocks are not trusted for ordering.
	Create(ctx context.Context, key channel.Key, senderID int64, text string) (*models.Message, error)

	// ListByChannel returns persisted history for a chat channel,
	// ascending by insertion order, capped at limit. Returns an empty
	// slice (not nil) so JSON serializes to [] not null.
	ListByChannel(ctx context.Context, key channel.Key, limit int) ([]models.Message, error)
}

// PresenceRepository stores the last-known online state per user.
// Upsert semantics: create the record if absent, else overwrite.
// Presence is allowed to be eventually consistent — a failed write is
// logged by the caller and never blocks the live broadcast.
type PresenceRepository interface {
	// SetOnline upserts the record for userID and maintains the
	// online-user index used by ListOnline.
	SetOnline(ctx context.Context, userID int64, online bool) error

	// Get returns the stored record, or nil, nil when none exists.
	Get(ctx context.Context, userID int64) (*models.PresenceRecord, error)

	// ListOnline returns every user id whose stored state is online.
	ListOnline(ctx context.Context) ([]int64, error)
}

// MembershipRepository answers whether a user belongs to a room or
// bubble. Hot-path check — consulted before every chat channel join.
type MembershipRepository interface {
	// IsMember reports whether userID belongs to the chat scope named
	// by key. Document scopes are not membership-gated here.
	IsMember(ctx context.Context, key channel.Key, userID int64) (bool, error)
}

// UserRepository handles user reads. The realtime core only needs
// display names for message fan-out.
type UserRepository interface {
	// GetByID returns a user by id. Returns nil, nil if not found.
	GetByID(ctx context.Context, userID int64) (*models.User, error)
}
