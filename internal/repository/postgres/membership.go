package postgres

import (
	"context"
	"fmt"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipStore answers chat-scope membership from the CRUD layer's
// join tables. The realtime core only reads here — enrolling users into
// rooms and bubbles belongs to the REST surface outside this repo.
type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) IsMember(ctx context.Context, key channel.Key, userID int64) (bool, error) {
	// EXISTS beats COUNT(*) for a yes/no question: Postgres stops at
	// the first matching row.
	var query string
	switch key.Kind {
	case channel.KindRoom:
		query = `SELECT EXISTS (
			SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`
	case channel.KindBubble:
		query = `SELECT EXISTS (
			SELECT 1 FROM bubble_members WHERE bubble_id = $1 AND user_id = $2)`
	default:
		return false, fmt.Errorf("channel %s is not a chat scope", key)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, query, key.ID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}
