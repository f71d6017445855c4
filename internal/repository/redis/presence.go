// Package redis holds the Redis-backed presence store.
//
// Why Redis for presence and Postgres for messages?
//   - Presence is a high-churn, last-writer-wins record with no history
//     — every connect/disconnect rewrites it. A Redis hash upsert is a
//     single round trip and the data is fine to lose on a flush.
//   - Messages are the permanent record and need relational history
//     queries, so they stay in Postgres.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/campuslive/campuslive/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey      = "presence:online"
	presenceKeyPrefix = "presence:user:"
)

type PresenceStore struct {
	rdb *redis.Client
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{rdb: rdb}
}

func presenceKey(userID int64) string {
	return presenceKeyPrefix + strconv.FormatInt(userID, 10)
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID int64, online bool) error {
	now := time.Now().UTC()

	// One pipeline: the per-user hash and the online index move
	// together, so ListOnline never disagrees with Get for longer than
	// a single round trip.
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, presenceKey(userID), map[string]any{
		"is_online":    online,
		"last_seen_at": now.Format(time.RFC3339Nano),
	})
	if online {
		pipe.SAdd(ctx, onlineSetKey, userID)
	} else {
		pipe.SRem(ctx, onlineSetKey, userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert presence for user %d: %w", userID, err)
	}
	return nil
}

func (s *PresenceStore) Get(ctx context.Context, userID int64) (*models.PresenceRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get presence for user %d: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &models.PresenceRecord{UserID: userID}
	rec.IsOnline, _ = strconv.ParseBool(fields["is_online"])
	if ts, err := time.Parse(time.RFC3339Nano, fields["last_seen_at"]); err == nil {
		rec.LastSeenAt = ts
	}
	return rec, nil
}

func (s *PresenceStore) ListOnline(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
