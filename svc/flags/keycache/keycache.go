package keycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/flagkit/pkg/cache"
	"github.com/dmitrymomot/flagkit/pkg/redis"
	"github.com/dmitrymomot/flagkit/svc/flags"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Driver string        `env:"KEYCACHE_DRIVER" envDefault:"memory"`       // Driver selects the backend: memory or redis.
	Size   int           `env:"KEYCACHE_SIZE" envDefault:"1024"`           // Size bounds the in-memory cache.
	TTL    time.Duration `env:"KEYCACHE_TTL" envDefault:"5m"`              // TTL is how long an entry may be served after it was stored.
	Prefix string        `env:"KEYCACHE_PREFIX" envDefault:"flagkit:env:"` // Prefix namespaces redis keys.
}

var ErrUnknownDriver = errors.New("unknown key cache driver")

// New builds the cache selected by cfg.Driver. client is only used by the
// redis driver and may be nil otherwise.
func New(cfg Config, client goredis.UniversalClient) (flags.EnvironmentCache, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewLRU(cfg.Size, cfg.TTL), nil
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("keycache: redis driver needs a client")
		}
		return NewRedis(client, cfg.Prefix, cfg.TTL), nil
	}
	return nil, errors.Join(ErrUnknownDriver, fmt.Errorf("driver %q", cfg.Driver))
}

// LRU keeps environments in process memory.
type LRU struct {
	c *cache.LRUCache[string, flags.Environment]
}

var _ flags.EnvironmentCache = (*LRU)(nil)

// NewLRU falls back to 1024 entries when size is not positive.
func NewLRU(size int, ttl time.Duration, opts ...cache.Option) *LRU {
	if size <= 0 {
		size = 1024
	}
	opts = append([]cache.Option{cache.WithTTL(ttl)}, opts...)
	return &LRU{c: cache.NewLRUCache[string, flags.Environment](size, opts...)}
}

func (l *LRU) Get(_ context.Context, apiKey string) (*flags.Environment, bool, error) {
	env, ok := l.c.Get(apiKey)
	if !ok {
		return nil, false, nil
	}
	return &env, true, nil
}

func (l *LRU) Set(_ context.Context, env *flags.Environment) error {
	l.c.Put(env.APIKey, *env)
	return nil
}

func (l *LRU) Delete(_ context.Context, apiKeys ...string) error {
	for _, key := range apiKeys {
		l.c.Remove(key)
	}
	return nil
}

// Redis shares cached environments between processes.
type Redis struct {
	s   *redis.Storage
	ttl time.Duration
}

var _ flags.EnvironmentCache = (*Redis)(nil)

func NewRedis(client goredis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{s: redis.NewStorage(client, prefix), ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, apiKey string) (*flags.Environment, bool, error) {
	data, err := r.s.Get(ctx, apiKey)
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}
	var env flags.Environment
	if err := json.Unmarshal(data, &env); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, err
	}
	return &env, true, nil
}

func (r *Redis) Set(ctx context.Context, env *flags.Environment) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.s.Set(ctx, env.APIKey, data, r.ttl)
}

func (r *Redis) Delete(ctx context.Context, apiKeys ...string) error {
	return r.s.Delete(ctx, apiKeys...)
}
