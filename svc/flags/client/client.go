package client

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

var (
	// ErrFlagNotFound indicates that no feature with the name exists in the project.
	ErrFlagNotFound = errors.New("feature flag not found")

	// ErrTypeMismatch indicates that a flag value has a different type than requested.
	ErrTypeMismatch = errors.New("feature flag value has a different type")
)

// Querier is the part of flags.Service a Client reads from.
type Querier interface {
	ListEnvironmentStates(ctx context.Context, environmentID uuid.UUID) ([]flags.EffectiveState, error)
	ListEffectiveStates(ctx context.Context, identityID uuid.UUID) ([]flags.EffectiveState, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*flags.Identity, error)
}

// IdentityExtractor returns the identity a request evaluates flags for.
// An invalid result evaluates the environment defaults.
type IdentityExtractor func(ctx context.Context) uuid.NullUUID

// Flag is the evaluated state of one feature.
type Flag struct {
	Name       string
	Type       flags.FeatureType
	Enabled    bool
	Value      any
	Overridden bool
}

type Option func(*Client)

// WithIdentityExtractor replaces IdentityFromContext.
func WithIdentityExtractor(fn IdentityExtractor) Option {
	return func(c *Client) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// Client evaluates the flags of one environment for application code running
// in the same process as the service.
type Client struct {
	q             Querier
	environmentID uuid.UUID
	identity      IdentityExtractor
}

func New(q Querier, environmentID uuid.UUID, opts ...Option) *Client {
	c := &Client{q: q, environmentID: environmentID, identity: IdentityFromContext}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Flags evaluates every feature for the identity in ctx, or the environment
// defaults without one. An identity of another environment is
// flags.ErrNotFound.
func (c *Client) Flags(ctx context.Context) ([]Flag, error) {
	states, err := c.states(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Flag, 0, len(states))
	for _, st := range states {
		out = append(out, Flag{
			Name:       st.Feature.Name,
			Type:       st.Feature.Type,
			Enabled:    st.Enabled,
			Value:      st.Value,
			Overridden: st.Overridden,
		})
	}
	return out, nil
}

func (c *Client) states(ctx context.Context) ([]flags.EffectiveState, error) {
	id := c.identity(ctx)
	if !id.Valid {
		return c.q.ListEnvironmentStates(ctx, c.environmentID)
	}

	identity, err := c.q.GetIdentity(ctx, id.UUID)
	if err != nil {
		return nil, err
	}
	if identity.EnvironmentID != c.environmentID {
		return nil, errors.Join(flags.ErrNotFound, errors.New("identity is not in the client environment"))
	}
	return c.q.ListEffectiveStates(ctx, identity.ID)
}

// Flag evaluates one feature by name, compared with flags.FoldName like
// feature names are in the store.
func (c *Client) Flag(ctx context.Context, name string) (Flag, error) {
	all, err := c.Flags(ctx)
	if err != nil {
		return Flag{}, err
	}
	folded := flags.FoldName(name)
	for _, f := range all {
		if flags.FoldName(f.Name) == folded {
			return f, nil
		}
	}
	return Flag{}, errors.Join(ErrFlagNotFound, errors.New(name))
}

// IsEnabled reports whether the named feature is on. A missing feature is
// off and returns ErrFlagNotFound.
func (c *Client) IsEnabled(ctx context.Context, name string) (bool, error) {
	f, err := c.Flag(ctx, name)
	if err != nil {
		return false, err
	}
	return f.Enabled, nil
}

// String returns the string value of the named feature. ok is false for a
// null value.
func (c *Client) String(ctx context.Context, name string) (v string, ok bool, err error) {
	return typed[string](ctx, c, name)
}

// Int returns the integer value of the named feature.
func (c *Client) Int(ctx context.Context, name string) (v int64, ok bool, err error) {
	return typed[int64](ctx, c, name)
}

// Bool returns the boolean value of the named feature.
func (c *Client) Bool(ctx context.Context, name string) (v bool, ok bool, err error) {
	return typed[bool](ctx, c, name)
}

func typed[T any](ctx context.Context, c *Client, name string) (T, bool, error) {
	var zero T
	f, err := c.Flag(ctx, name)
	if err != nil {
		return zero, false, err
	}
	if f.Value == nil {
		return zero, false, nil
	}
	v, ok := f.Value.(T)
	if !ok {
		return zero, false, errors.Join(ErrTypeMismatch, errors.New(name))
	}
	return v, true, nil
}

type identityCtxKey struct{}

// WithIdentity stores the identity flags are evaluated for.
func WithIdentity(ctx context.Context, identityID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identityID)
}

// IdentityFromContext is the default IdentityExtractor.
func IdentityFromContext(ctx context.Context) uuid.NullUUID {
	id, ok := ctx.Value(identityCtxKey{}).(uuid.UUID)
	return uuid.NullUUID{UUID: id, Valid: ok}
}
