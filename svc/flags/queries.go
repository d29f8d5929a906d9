package flags

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// ResolveStatesForIdentity returns the overrides of an identity and the
// environment defaults of the features it does not override.
func (s *Service) ResolveStatesForIdentity(ctx context.Context, identityID uuid.UUID) (overrides, defaults []*FeatureState, err error) {
	err = s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		overrides, defaults, err = ResolveStatesForIdentity(ctx, r, identityID)
		return err
	})
	if err != nil {
		return nil, nil, s.fail(ctx, "resolve_identity_states", err, logger.IdentityID(identityID))
	}
	return overrides, defaults, nil
}

// ListEffectiveStates answers which features are enabled for an identity and
// with which values: one row per feature of the identity's project.
func (s *Service) ListEffectiveStates(ctx context.Context, identityID uuid.UUID) ([]EffectiveState, error) {
	var out []EffectiveState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		overrides, defaults, err := ResolveStatesForIdentity(ctx, r, identityID)
		if err != nil {
			return err
		}
		features, err := featuresOf(ctx, r, slices.Concat(overrides, defaults))
		if err != nil {
			return err
		}
		out = effectiveStates(EffectiveView(overrides, defaults), features)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "list_effective_states", err, logger.IdentityID(identityID))
	}
	return out, nil
}

// ListEnvironmentStates returns the default state of every feature in an
// environment.
func (s *Service) ListEnvironmentStates(ctx context.Context, environmentID uuid.UUID) ([]EffectiveState, error) {
	var out []EffectiveState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetEnvironment(ctx, environmentID); err != nil {
			return err
		}
		states, err := r.ListDefaultStates(ctx, environmentID)
		if err != nil {
			return err
		}
		features, err := featuresOf(ctx, r, states)
		if err != nil {
			return err
		}
		out = effectiveStates(EffectiveView(nil, states), features)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "list_environment_states", err, logger.EnvironmentID(environmentID))
	}
	return out, nil
}

// GetEffectiveValue resolves one feature in one environment. With an identity
// its override wins over the environment default.
func (s *Service) GetEffectiveValue(ctx context.Context, featureID, environmentID uuid.UUID, identityID uuid.NullUUID) (*EffectiveState, error) {
	var out *EffectiveState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		feature, err := r.GetFeature(ctx, featureID)
		if err != nil {
			return err
		}
		env, err := r.GetEnvironment(ctx, environmentID)
		if err != nil {
			return err
		}
		if feature.ProjectID != env.ProjectID {
			return notFound("feature in environment")
		}

		if identityID.Valid {
			identity, err := r.GetIdentity(ctx, identityID.UUID)
			if err != nil {
				return err
			}
			if identity.EnvironmentID != env.ID {
				return notFound("identity in environment")
			}
			key := StateKey{FeatureID: feature.ID, EnvironmentID: env.ID, IdentityID: identityID}
			state, err := r.FindFeatureState(ctx, key)
			switch {
			case err == nil:
				out = effectiveState(feature, state)
				return nil
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		state, err := r.FindFeatureState(ctx, DefaultKey(feature.ID, env.ID))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("feature state")
			}
			return err
		}
		out = effectiveState(feature, state)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "get_effective_value", err, logger.FeatureID(featureID), logger.EnvironmentID(environmentID))
	}
	return out, nil
}

// EnvironmentByAPIKey resolves the environment clients address by key.
// Keys rejected by the KeyVerifier are reported as not found without a store
// lookup.
func (s *Service) EnvironmentByAPIKey(ctx context.Context, apiKey string) (*Environment, error) {
	if apiKey == "" {
		return nil, notFound("environment")
	}
	if v, ok := s.keys.(KeyVerifier); ok {
		if err := v.VerifyKey(apiKey); err != nil {
			return nil, errors.Join(notFound("environment"), err)
		}
	}

	gen := s.fence.current()
	env, ok, err := s.cache.Get(ctx, apiKey)
	if err != nil {
		s.log.WarnContext(ctx, "environment cache lookup failed", logger.Error(err))
	}
	if ok {
		return env, nil
	}

	err = s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		env, err = r.GetEnvironmentByAPIKey(ctx, apiKey)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "environment_by_api_key", err)
	}

	s.fill(ctx, gen, env)
	return env, nil
}

func featuresOf(ctx context.Context, r Reader, states []*FeatureState) (map[uuid.UUID]*Feature, error) {
	features := make(map[uuid.UUID]*Feature, len(states))
	for _, st := range states {
		if _, ok := features[st.FeatureID]; ok {
			continue
		}
		f, err := r.GetFeature(ctx, st.FeatureID)
		if err != nil {
			return nil, err
		}
		features[f.ID] = f
	}
	return features, nil
}

func effectiveStates(view []*FeatureState, features map[uuid.UUID]*Feature) []EffectiveState {
	out := make([]EffectiveState, 0, len(view))
	for _, st := range view {
		out = append(out, *effectiveState(features[st.FeatureID], st))
	}
	return out
}

func effectiveState(feature *Feature, state *FeatureState) *EffectiveState {
	return &EffectiveState{
		Feature:    feature,
		State:      state,
		Value:      ResolveValue(state),
		Enabled:    state.Enabled,
		Overridden: state.IsOverride(),
	}
}
