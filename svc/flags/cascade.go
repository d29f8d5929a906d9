package flags

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// CascadeResult counts the feature states touched by a cascade.
type CascadeResult struct {
	Deleted int64
	Created int
	Updated int
}

// CascadeEnvironmentSaved brings the states of env in line with its project
// after env was created (previous is null) or written with a new project.
//
// States of features from the previous project are deleted first, then a
// default state is created for every feature of the current project that has
// none. Existing states are never modified, so per-environment toggles survive.
//
// The caller holds the locks on env and on both projects.
func CascadeEnvironmentSaved(ctx context.Context, tx Tx, env *Environment, previous uuid.NullUUID) (CascadeResult, error) {
	var res CascadeResult

	created := !previous.Valid
	moved := previous.Valid && previous.UUID != env.ProjectID
	if !created && !moved {
		return res, nil
	}

	if moved {
		n, err := tx.DeleteEnvironmentStates(ctx, env.ID, previous.UUID)
		if err != nil {
			return res, err
		}
		res.Deleted = n
	}

	features, err := tx.ListFeatures(ctx, env.ProjectID)
	if err != nil {
		return res, err
	}
	for _, feature := range features {
		_, wasCreated, err := getOrCreateDefaultState(ctx, tx, feature, env)
		if err != nil {
			return res, err
		}
		if wasCreated {
			res.Created++
		}
	}

	return res, nil
}

// CascadeFeatureSaved brings the states of feature in line with its project
// after feature was created (previous is null) or written with a new project.
//
// States held in environments of the previous project are deleted first, then
// the default state in every environment of the current project is updated or
// created with Enabled = feature.DefaultEnabled. Unlike the environment
// cascade, existing default states are overwritten.
//
// The caller holds the locks on feature and on both projects.
func CascadeFeatureSaved(ctx context.Context, tx Tx, feature *Feature, previous uuid.NullUUID) (CascadeResult, error) {
	var res CascadeResult

	created := !previous.Valid
	moved := previous.Valid && previous.UUID != feature.ProjectID
	if !created && !moved {
		return res, nil
	}

	if moved {
		n, err := tx.DeleteFeatureStates(ctx, feature.ID, previous.UUID)
		if err != nil {
			return res, err
		}
		res.Deleted = n
	}

	envs, err := tx.ListEnvironments(ctx, feature.ProjectID)
	if err != nil {
		return res, err
	}
	for _, env := range envs {
		state, err := tx.FindFeatureState(ctx, DefaultKey(feature.ID, env.ID))
		switch {
		case err == nil:
			state.Enabled = feature.DefaultEnabled
			if err := tx.UpdateFeatureState(ctx, state); err != nil {
				return res, err
			}
			if err := OnStateCreated(ctx, tx, feature, state); err != nil {
				return res, err
			}
			res.Updated++
		case errors.Is(err, ErrNotFound):
			if _, _, err := getOrCreateDefaultState(ctx, tx, feature, env); err != nil {
				return res, err
			}
			res.Created++
		default:
			return res, err
		}
	}

	return res, nil
}
