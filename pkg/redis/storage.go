package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage is a small key-value wrapper over a go-redis client.
// Every key is stored under the configured prefix.
type Storage struct {
	db     redis.UniversalClient
	prefix string
}

// NewStorage wraps redisClient. Keys are written as prefix+key.
func NewStorage(redisClient redis.UniversalClient, prefix string) *Storage {
	return &Storage{
		db:     redisClient,
		prefix: prefix,
	}
}

// Get returns nil for empty keys and missing values (redis.Nil becomes nil).
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, errors.Join(ErrStorage, err)
	}
	return val, nil
}

// Set stores key-value with expiration. Zero duration means no expiration.
func (s *Storage) Set(ctx context.Context, key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	if err := s.db.Set(ctx, s.prefix+key, val, exp).Err(); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Delete removes keys in a single round trip. Empty keys are ignored.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			full = append(full, s.prefix+key)
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := s.db.Del(ctx, full...).Err(); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Close terminates the Redis connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
