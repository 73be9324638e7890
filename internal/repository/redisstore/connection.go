// Package redisstore implements the connection registry and presence
// tracking on Redis, where TTL-based expiry is native and lookups stay
// cheap on the fan-out hot path.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

const connectionTTL = 24 * time.Hour

// NewClient parses a redis:// URL and pings the server once so a bad
// address fails at startup, not on the first send.
func NewClient(ctx context.Context, redisURL string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return client, nil
}

// ConnectionStore keeps each record at "conn:{connectionID}" with a TTL
// and the user's connection ids in the set "userconns:{userID}". The
// set has no per-member TTL, so ConnectionsFor verifies each member's
// record still exists and lazily removes the ones that expired.
type ConnectionStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewConnectionStore(client *redis.Client, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{client: client, logger: logger}
}

func connKey(connectionID string) string { return "conn:" + connectionID }
func userConnsKey(userID string) string  { return "userconns:" + userID }

func (s *ConnectionStore) Register(ctx context.Context, conn models.Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, connKey(conn.ConnectionID), data, connectionTTL)
	pipe.SAdd(ctx, userConnsKey(conn.UserID), conn.ConnectionID)
	pipe.Expire(ctx, userConnsKey(conn.UserID), connectionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

func (s *ConnectionStore) Unregister(ctx context.Context, connectionID string) error {
	data, err := s.client.Get(ctx, connKey(connectionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load connection %s: %w", connectionID, err)
	}

	var conn models.Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return fmt.Errorf("parse connection %s: %w", connectionID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, connKey(connectionID))
	pipe.SRem(ctx, userConnsKey(conn.UserID), connectionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unregister connection %s: %w", connectionID, err)
	}
	return nil
}

func (s *ConnectionStore) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, userConnsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("connections for user %s: %w", userID, err)
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	live := make([]string, 0, len(members))
	for _, id := range members {
		exists, err := s.client.Exists(ctx, connKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check connection %s: %w", id, err)
		}
		if exists == 0 {
			// Record expired; drop the stale set member in passing.
			s.client.SRem(ctx, userConnsKey(userID), id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}
