package flags

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// KeyGenerator supplies the API key of a new environment.
type KeyGenerator interface {
	GenerateKey(environmentID uuid.UUID) (string, error)
}

// KeyVerifier is optionally implemented by a KeyGenerator whose keys can be
// checked without a store lookup.
type KeyVerifier interface {
	VerifyKey(apiKey string) error
}

// KeyGeneratorFunc adapts a function to KeyGenerator.
type KeyGeneratorFunc func(environmentID uuid.UUID) (string, error)

func (f KeyGeneratorFunc) GenerateKey(environmentID uuid.UUID) (string, error) {
	return f(environmentID)
}

// RandomKeys generates 32 hex characters from a random UUID.
var RandomKeys = KeyGeneratorFunc(func(uuid.UUID) (string, error) {
	id := uuid.New()
	return hex.EncodeToString(id[:]), nil
})

// EnvironmentCache caches environments by API key. Entries are invalidated
// after the transaction that changed or removed the environment commits.
type EnvironmentCache interface {
	Get(ctx context.Context, apiKey string) (*Environment, bool, error)
	Set(ctx context.Context, env *Environment) error
	Delete(ctx context.Context, apiKeys ...string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*Environment, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, *Environment) error                 { return nil }
func (noopCache) Delete(context.Context, ...string) error                 { return nil }

// Service handles mutations and evaluation queries. Every mutation runs its
// write and the cascade it triggers inside a single store transaction.
type Service struct {
	store Store
	keys  KeyGenerator
	cache EnvironmentCache
	fence cacheFence
	log   *slog.Logger
	now   func() time.Time
}

// cacheFence orders cache fills after invalidations: a lookup stores what it
// read only if no invalidation ran since the lookup started.
type cacheFence struct {
	mu  sync.Mutex
	gen uint64
}

func (f *cacheFence) current() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.keys = g
		}
	}
}

func WithEnvironmentCache(c EnvironmentCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService panics if store is nil.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("flags: nil store")
	}
	s := &Service{
		store: store,
		keys:  RandomKeys,
		cache: noopCache{},
		log:   logger.Discard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// fail logs infrastructure failures and returns err unchanged.
func (s *Service) fail(ctx context.Context, op string, err error, attrs ...any) error {
	if err != nil && !IsDomainError(err) {
		s.log.ErrorContext(ctx, "flags operation failed", append([]any{slog.String("op", op), logger.Error(err)}, attrs...)...)
	}
	return err
}

// invalidate drops cached environments once their transaction committed.
// A failing cache only costs a stale read until the entry expires.
func (s *Service) invalidate(ctx context.Context, apiKeys ...string) {
	if len(apiKeys) == 0 {
		return
	}
	s.fence.mu.Lock()
	defer s.fence.mu.Unlock()
	s.fence.gen++
	if err := s.cache.Delete(ctx, apiKeys...); err != nil {
		s.log.WarnContext(ctx, "environment cache invalidation failed", logger.Error(err))
	}
}

// fill caches env unless an invalidation ran after gen was taken; the read
// that produced env may predate that commit.
func (s *Service) fill(ctx context.Context, gen uint64, env *Environment) {
	s.fence.mu.Lock()
	defer s.fence.mu.Unlock()
	if s.fence.gen != gen {
		return
	}
	if err := s.cache.Set(ctx, env); err != nil {
		s.log.WarnContext(ctx, "environment cache store failed", logger.Error(err), logger.EnvironmentID(env.ID))
	}
}

const maxNameLength = 2000

func normalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(kind + " name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid(kind + " name is too long")
	}
	return name, nil
}

// FoldName returns the case-folded form used to compare feature names.
func FoldName(name string) string {
	return cases.Fold().String(name)
}

// lockProjects locks the projects a mutation writes into. A missing project is
// a bad reference in the request, not a missing resource.
func lockProjects(ctx context.Context, tx Tx, ids ...uuid.UUID) error {
	err := tx.LockProjects(ctx, ids...)
	if errors.Is(err, ErrNotFound) {
		return invalid("project does not exist")
	}
	return err
}
