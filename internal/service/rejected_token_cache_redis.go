package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRejectedTokenStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRejectedTokenStore(client redis.UniversalClient, prefix string) *RedisRejectedTokenStore {
	if prefix == "" {
		prefix = "rejected_token"
	}
	return &RedisRejectedTokenStore{client: client, prefix: prefix}
}

func (s *RedisRejectedTokenStore) Seen(ctx context.Context, hash string) (bool, error) {
	if s.client == nil || hash == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.key(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRejectedTokenStore) Remember(ctx context.Context, hash string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 || hash == "" {
		return nil
	}
	return s.client.Set(ctx, s.key(hash), "1", ttl).Err()
}

func (s *RedisRejectedTokenStore) key(hash string) string {
	return fmt.Sprintf("%s:%s", s.prefix, hash)
}
