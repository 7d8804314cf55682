// Package redisstore is the optional shared resume backend. When
// configured, completed-item IDs live in a Redis set and failed IDs in
// a sorted set, letting several machines split one account's export.
// The file descriptor in internal/infra/storage remains the default.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Store wraps Redis operations for cross-run resume state.
type Store struct {
	rdb *redis.Client
}

// New connects and pings. An unreachable Redis is a setup failure.
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func completedKey(account string) string {
	return fmt.Sprintf("export:completed:%s", account)
}

func failedKey(account string) string {
	return fmt.Sprintf("export:failed:%s", account)
}

// CompletedIDs returns the set of item IDs finished in any prior run.
func (s *Store) CompletedIDs(ctx context.Context, account string) (map[string]struct{}, error) {
	members, err := s.rdb.SMembers(ctx, completedKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	out := make(map[string]struct{}, len(members))
	for _, id := range members {
		out[id] = struct{}{}
	}
	return out, nil
}

// MarkCompleted records finished items and clears them from the failed
// queue.
func (s *Store) MarkCompleted(ctx context.Context, account string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := s.rdb.SAdd(ctx, completedKey(account), members...).Err(); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	if err := s.rdb.ZRem(ctx, failedKey(account), members...).Err(); err != nil {
		return fmt.Errorf("zrem failed: %w", err)
	}
	return nil
}

// MarkFailed queues items for a later pass, scored by failure time so
// the oldest failures retry first.
func (s *Store) MarkFailed(ctx context.Context, account string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	now := float64(time.Now().Unix())
	zs := make([]redis.Z, len(ids))
	for i, id := range ids {
		zs[i] = redis.Z{Score: now, Member: id}
	}
	if err := s.rdb.ZAdd(ctx, failedKey(account), zs...).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// FailedIDs returns queued failures, oldest first.
func (s *Store) FailedIDs(ctx context.Context, account string) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, failedKey(account), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	return ids, nil
}
