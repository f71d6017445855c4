package postgres

import (
	"context"
	"fmt"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, key channel.Key, senderID int64, text string) (*models.Message, error) {
	if !key.IsChat() {
		return nil, fmt.Errorf("channel %s is not a chat scope", key)
	}

	// Messages use bigserial, so we don't pass an ID. Postgres
	// generates it and RETURNING gives it back. now() is the
	// server-assigned timestamp — never the sender's clock.
	var query string
	switch key.Kind {
	case channel.KindRoom:
		query = `
			INSERT INTO messages (room_id, sender_id, text, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, room_id, bubble_id, sender_id, text, created_at`
	case channel.KindBubble:
		query = `
			INSERT INTO messages (bubble_id, sender_id, text, created_at)
			VALUES ($1, $2, $3, now())
			RETURNING id, room_id, bubble_id, sender_id, text, created_at`
	}

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, key.ID, senderID, text).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.BubbleID,
		&msg.SenderID,
		&msg.Text,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, key channel.Key, limit int) ([]models.Message, error) {
	if !key.IsChat() {
		return nil, fmt.Errorf("channel %s is not a chat scope", key)
	}

	// Why ORDER BY id ASC instead of created_at?
	//   - id (bigserial) is monotonically increasing in append order —
	//     the same order members saw the broadcasts in. Two messages
	//     persisted in the same timestamp granularity still sort
	//     deterministically.
	scope := "room_id"
	if key.Kind == channel.KindBubble {
		scope = "bubble_id"
	}
	query := fmt.Sprintf(`
		SELECT id, room_id, bubble_id, sender_id, text, created_at
		FROM messages
		WHERE %s = $1
		ORDER BY id ASC
		LIMIT $2`, scope)

	rows, err := s.pool.Query(ctx, query, key.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.BubbleID,
			&msg.SenderID,
			&msg.Text,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
