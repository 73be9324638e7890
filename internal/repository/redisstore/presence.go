package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

const onlineTTL = 90 * time.Second

// PresenceStore keeps "online:{userID}" as a TTL'd marker refreshed by
// the websocket ping loop, plus a durable "lastseen:{userID}"
// timestamp.
type PresenceStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPresenceStore(client *redis.Client, logger *zap.Logger) *PresenceStore {
	return &PresenceStore{client: client, logger: logger}
}

func onlineKey(userID string) string   { return "online:" + userID }
func lastSeenKey(userID string) string { return "lastseen:" + userID }

func (s *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, onlineKey(userID), "1", onlineTTL).Err(); err != nil {
		return fmt.Errorf("set online %s: %w", userID, err)
	}
	return nil
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, onlineKey(userID))
	pipe.Set(ctx, lastSeenKey(userID), lastSeen.UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set offline %s: %w", userID, err)
	}
	return nil
}

func (s *PresenceStore) Get(ctx context.Context, userID string) (models.Presence, error) {
	p := models.Presence{UserID: userID}

	exists, err := s.client.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return models.Presence{}, fmt.Errorf("get presence %s: %w", userID, err)
	}
	p.Online = exists > 0

	raw, err := s.client.Get(ctx, lastSeenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return p, nil
	}
	if err != nil {
		return models.Presence{}, fmt.Errorf("get last seen %s: %w", userID, err)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		p.LastSeen = t
	}
	return p, nil
}
