// Package storage keeps shared client state in Redis. The only state kept
// there is the identity directory; message state is never persisted.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linguachat/client/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// DirectoryKey is the Redis hash holding id -> display name.
const DirectoryKey = "linguachat:directory"

// Service is a Redis-backed directory cache.
type Service struct {
	Redis *redis.Client
	TTL   time.Duration
	Key   string
}

// NewStorageService Constructor
func NewStorageService(rdb *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = config.DirectoryCacheTTL
	}
	return &Service{
		Redis: rdb,
		TTL:   ttl,
		Key:   DirectoryKey,
	}
}

// LoadDirectory returns the cached mapping. A missing key yields an empty map.
func (s *Service) LoadDirectory(ctx context.Context) (map[string]string, error) {
	names, err := s.Redis.HGetAll(ctx, s.Key).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load directory cache: %w", err)
	}
	return names, nil
}

// SaveDirectory replaces the cached mapping and refreshes its TTL.
func (s *Service) SaveDirectory(ctx context.Context, names map[string]string) error {
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.Key)
		if len(names) == 0 {
			return nil
		}
		pipe.HSet(ctx, s.Key, lo.MapValues(names, func(name string, _ string) interface{} {
			return name
		}))
		pipe.Expire(ctx, s.Key, s.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save directory cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.Redis.Ping(ctx).Err()
}
