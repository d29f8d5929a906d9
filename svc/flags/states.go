package flags

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/value"
)

// OverrideInput describes a new identity override.
// A nil Value inherits the value of the environment default state.
type OverrideInput struct {
	Enabled bool
	Value   *value.Value
}

// StateUpdate changes an existing state. Nil fields are left untouched.
type StateUpdate struct {
	Enabled *bool
	Value   *value.Value
}

// ResolveValue returns the authoritative value of a state, or nil when the
// state has no value record or the value is null.
func ResolveValue(state *FeatureState) any {
	if state == nil || state.Value == nil {
		return nil
	}
	return state.Value.Value.Interface()
}

// CreateOrGetDefaultState returns the environment default state of feature in
// env, creating it with Enabled = feature.DefaultEnabled if it does not exist.
// An existing state is returned unmodified.
func CreateOrGetDefaultState(ctx context.Context, tx Tx, feature *Feature, env *Environment) (*FeatureState, error) {
	state, _, err := getOrCreateDefaultState(ctx, tx, feature, env)
	return state, err
}

func getOrCreateDefaultState(ctx context.Context, tx Tx, feature *Feature, env *Environment) (*FeatureState, bool, error) {
	if err := checkAssociation(feature, env); err != nil {
		return nil, false, err
	}

	existing, err := tx.FindFeatureState(ctx, DefaultKey(feature.ID, env.ID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	state := &FeatureState{
		ID:            newID(),
		FeatureID:     feature.ID,
		EnvironmentID: env.ID,
		Enabled:       feature.DefaultEnabled,
	}
	if err := tx.CreateFeatureState(ctx, state); err != nil {
		return nil, false, err
	}
	if err := OnStateCreated(ctx, tx, feature, state); err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// CreateOverrideState creates a state for feature scoped to identity, in the
// identity's environment. Without an explicit value the override starts with
// the value and type of the environment default state, or with the feature's
// initial value as a string when there is no default state.
func CreateOverrideState(ctx context.Context, tx Tx, feature *Feature, identity *Identity, in OverrideInput) (*FeatureState, error) {
	env, err := tx.GetEnvironment(ctx, identity.EnvironmentID)
	if err != nil {
		return nil, err
	}
	if err := checkAssociation(feature, env); err != nil {
		return nil, err
	}

	key := StateKey{
		FeatureID:     feature.ID,
		EnvironmentID: env.ID,
		IdentityID:    uuid.NullUUID{UUID: identity.ID, Valid: true},
	}
	if _, err := tx.FindFeatureState(ctx, key); err == nil {
		return nil, errors.Join(ErrConflict, fmt.Errorf("identity %s already overrides feature %q", identity.ID, feature.Name))
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	state := &FeatureState{
		ID:            newID(),
		FeatureID:     key.FeatureID,
		EnvironmentID: key.EnvironmentID,
		IdentityID:    key.IdentityID,
		Enabled:       in.Enabled,
	}
	if err := tx.CreateFeatureState(ctx, state); err != nil {
		return nil, err
	}

	if in.Value != nil {
		fsv := &FeatureStateValue{ID: newID(), FeatureStateID: state.ID, Value: *in.Value}
		if err := tx.CreateFeatureStateValue(ctx, fsv); err != nil {
			return nil, err
		}
		state.Value = fsv
		return state, nil
	}

	if err := OnStateCreated(ctx, tx, feature, state); err != nil {
		return nil, err
	}
	return state, nil
}

// OnStateCreated makes sure state owns a FeatureStateValue. When the value is
// missing it is created from the inheritance rule used by CreateOverrideState.
// state.Value is refreshed in place.
func OnStateCreated(ctx context.Context, tx Tx, feature *Feature, state *FeatureState) error {
	current, err := tx.GetFeatureState(ctx, state.ID)
	if err != nil {
		return err
	}
	if current.Value != nil {
		state.Value = current.Value
		return nil
	}

	v, err := initialValue(ctx, tx, feature, state)
	if err != nil {
		return err
	}

	fsv := &FeatureStateValue{ID: newID(), FeatureStateID: state.ID, Value: v}
	if err := tx.CreateFeatureStateValue(ctx, fsv); err != nil {
		return err
	}
	state.Value = fsv
	return nil
}

func initialValue(ctx context.Context, tx Tx, feature *Feature, state *FeatureState) (value.Value, error) {
	if state.IsOverride() {
		generic, err := tx.FindFeatureState(ctx, DefaultKey(feature.ID, state.EnvironmentID))
		switch {
		case err == nil && generic.Value != nil:
			return generic.Value.Value, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return value.Value{}, err
		}
	}
	if feature.InitialValue == nil {
		return value.Null(), nil
	}
	return value.String(*feature.InitialValue), nil
}

// UpdateState applies upd to an existing state and returns the stored result.
func UpdateState(ctx context.Context, tx Tx, stateID uuid.UUID, upd StateUpdate) (*FeatureState, error) {
	state, err := tx.GetFeatureState(ctx, stateID)
	if err != nil {
		return nil, err
	}

	if upd.Enabled != nil && *upd.Enabled != state.Enabled {
		state.Enabled = *upd.Enabled
		if err := tx.UpdateFeatureState(ctx, state); err != nil {
			return nil, err
		}
	}

	if upd.Value != nil {
		if state.Value == nil {
			fsv := &FeatureStateValue{ID: newID(), FeatureStateID: state.ID, Value: *upd.Value}
			if err := tx.CreateFeatureStateValue(ctx, fsv); err != nil {
				return nil, err
			}
			state.Value = fsv
		} else {
			state.Value.Value = *upd.Value
			if err := tx.UpdateFeatureStateValue(ctx, state.Value); err != nil {
				return nil, err
			}
		}
	}

	return state, nil
}

// DeleteOverride removes an identity override. Environment default states
// cannot be deleted on their own.
func DeleteOverride(ctx context.Context, tx Tx, stateID uuid.UUID) (*FeatureState, error) {
	state, err := tx.GetFeatureState(ctx, stateID)
	if err != nil {
		return nil, err
	}
	if !state.IsOverride() {
		return nil, invalid("environment default feature states cannot be deleted")
	}
	if err := tx.DeleteFeatureState(ctx, stateID); err != nil {
		return nil, err
	}
	return state, nil
}

func checkAssociation(feature *Feature, env *Environment) error {
	if feature.ProjectID == env.ProjectID {
		return nil
	}
	return errors.Join(ErrInvalidAssociation, fmt.Errorf(
		"feature %q is in project %s, environment %q is in project %s",
		feature.Name, feature.ProjectID, env.Name, env.ProjectID,
	))
}
