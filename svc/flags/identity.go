package flags

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"
)

// ResolveStatesForIdentity splits the visible states of an identity into the
// overrides it holds and the environment defaults of every feature it does
// not override. The two lists never share a feature.
func ResolveStatesForIdentity(ctx context.Context, r Reader, identityID uuid.UUID) (overrides, defaults []*FeatureState, err error) {
	identity, err := r.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, nil, err
	}

	overrides, err = r.ListIdentityStates(ctx, identity.ID)
	if err != nil {
		return nil, nil, err
	}

	overridden := make(map[uuid.UUID]struct{}, len(overrides))
	for _, s := range overrides {
		overridden[s.FeatureID] = struct{}{}
	}

	envStates, err := r.ListDefaultStates(ctx, identity.EnvironmentID)
	if err != nil {
		return nil, nil, err
	}

	defaults = make([]*FeatureState, 0, len(envStates))
	for _, s := range envStates {
		if _, ok := overridden[s.FeatureID]; ok {
			continue
		}
		defaults = append(defaults, s)
	}

	return overrides, defaults, nil
}

// EffectiveView merges overrides and defaults into one state per feature,
// overrides taking precedence, ordered by feature id.
func EffectiveView(overrides, defaults []*FeatureState) []*FeatureState {
	byFeature := make(map[uuid.UUID]*FeatureState, len(overrides)+len(defaults))
	for _, s := range defaults {
		byFeature[s.FeatureID] = s
	}
	for _, s := range overrides {
		byFeature[s.FeatureID] = s
	}

	view := make([]*FeatureState, 0, len(byFeature))
	for _, s := range byFeature {
		view = append(view, s)
	}
	slices.SortFunc(view, func(a, b *FeatureState) int {
		return bytes.Compare(a.FeatureID[:], b.FeatureID[:])
	})
	return view
}
