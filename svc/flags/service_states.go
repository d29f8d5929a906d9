package flags

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// RequestOverride creates an override of feature for identity in the
// identity's environment.
func (s *Service) RequestOverride(ctx context.Context, featureID, identityID uuid.UUID, in OverrideInput) (*FeatureState, error) {
	var state *FeatureState
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		identity, err := tx.GetIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		// Lock order matches the cascades: project, environment, feature.
		env, err := tx.GetEnvironment(ctx, identity.EnvironmentID)
		if err != nil {
			return err
		}
		if err := lockProjects(ctx, tx, env.ProjectID); err != nil {
			return err
		}
		if _, err := tx.LockEnvironment(ctx, env.ID); err != nil {
			return err
		}
		feature, err := tx.LockFeature(ctx, featureID)
		if err != nil {
			return err
		}
		state, err = CreateOverrideState(ctx, tx, feature, identity, in)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "request_override", err, logger.FeatureID(featureID), logger.IdentityID(identityID))
	}

	s.log.DebugContext(ctx, "override created",
		logger.FeatureStateID(state.ID),
		logger.FeatureID(featureID),
		logger.IdentityID(identityID),
	)
	return state, nil
}

// UpdateFeatureState toggles a state or replaces its value.
func (s *Service) UpdateFeatureState(ctx context.Context, id uuid.UUID, upd StateUpdate) (*FeatureState, error) {
	var state *FeatureState
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetFeatureState(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.LockFeature(ctx, current.FeatureID); err != nil {
			return err
		}
		state, err = UpdateState(ctx, tx, id, upd)
		return err
	})
	return state, s.fail(ctx, "update_feature_state", err, logger.FeatureStateID(id))
}

// DeleteFeatureState deletes an identity override. Environment defaults are
// owned by the cascade and cannot be deleted directly.
func (s *Service) DeleteFeatureState(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := DeleteOverride(ctx, tx, id)
		return err
	})
	return s.fail(ctx, "delete_feature_state", err, logger.FeatureStateID(id))
}

func (s *Service) GetFeatureState(ctx context.Context, id uuid.UUID) (*FeatureState, error) {
	var state *FeatureState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		state, err = r.GetFeatureState(ctx, id)
		return err
	})
	return state, s.fail(ctx, "get_feature_state", err)
}

// ListFeatureStates returns every state of a feature, defaults and overrides.
func (s *Service) ListFeatureStates(ctx context.Context, featureID uuid.UUID) ([]*FeatureState, error) {
	var states []*FeatureState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetFeature(ctx, featureID); err != nil {
			return err
		}
		var err error
		states, err = r.ListFeatureStates(ctx, featureID)
		return err
	})
	return states, s.fail(ctx, "list_feature_states", err)
}

// DefaultState returns the environment default state of a feature.
func (s *Service) DefaultState(ctx context.Context, featureID, environmentID uuid.UUID) (*FeatureState, error) {
	var state *FeatureState
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		state, err = r.FindFeatureState(ctx, DefaultKey(featureID, environmentID))
		if errors.Is(err, ErrNotFound) {
			return notFound("feature state")
		}
		return err
	})
	return state, s.fail(ctx, "default_state", err)
}
