package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

// state is one committed version of the data. It is never modified after it
// has been published; transactions work on a clone.
type state struct {
	orgs       map[uuid.UUID]flags.Organisation
	projects   map[uuid.UUID]flags.Project
	envs       map[uuid.UUID]flags.Environment
	identities map[uuid.UUID]flags.Identity
	features   map[uuid.UUID]flags.Feature
	states     map[uuid.UUID]flags.FeatureState
	// values is keyed by the owning feature state id.
	values map[uuid.UUID]flags.FeatureStateValue
}

func newState() *state {
	return &state{
		orgs:       map[uuid.UUID]flags.Organisation{},
		projects:   map[uuid.UUID]flags.Project{},
		envs:       map[uuid.UUID]flags.Environment{},
		identities: map[uuid.UUID]flags.Identity{},
		features:   map[uuid.UUID]flags.Feature{},
		states:     map[uuid.UUID]flags.FeatureState{},
		values:     map[uuid.UUID]flags.FeatureStateValue{},
	}
}

// clone copies the maps. Records are stored by value and hold no mutable
// shared data, so a shallow copy per map is a full snapshot.
func (s *state) clone() *state {
	return &state{
		orgs:       maps.Clone(s.orgs),
		projects:   maps.Clone(s.projects),
		envs:       maps.Clone(s.envs),
		identities: maps.Clone(s.identities),
		features:   maps.Clone(s.features),
		states:     maps.Clone(s.states),
		values:     maps.Clone(s.values),
	}
}

// Store is an in-memory flags.Store.
//
// Writers are serialized by a mutex and work on a private clone of the
// committed state, which replaces the published one when the transaction
// function returns nil. Readers load the published state without locking and
// never observe an uncommitted write.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[state]
}

var _ flags.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.current.Store(newState())
	return s
}

func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, r flags.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &reader{s: s.current.Load()})
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx flags.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.current.Load().clone()
	if err := fn(ctx, &tx{reader{s: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.current.Store(work)
	return nil
}

func notFound(what string, id any) error {
	return errors.Join(flags.ErrNotFound, fmt.Errorf("%s %v not found", what, id))
}

func byID[T any](id func(T) uuid.UUID) func(a, b T) int {
	return func(a, b T) int {
		x, y := id(a), id(b)
		return bytes.Compare(x[:], y[:])
	}
}

func collect[T any](m map[uuid.UUID]T, keep func(T) bool, id func(T) uuid.UUID) []*T {
	out := make([]*T, 0)
	for _, rec := range m {
		if keep(rec) {
			out = append(out, &rec)
		}
	}
	slices.SortFunc(out, byID(func(p *T) uuid.UUID { return id(*p) }))
	return out
}
