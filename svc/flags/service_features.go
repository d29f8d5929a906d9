package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

type CreateFeatureInput struct {
	// ID is optional; a new id is generated when it is nil.
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Name           string
	Description    string
	InitialValue   *string
	DefaultEnabled bool
	// Type defaults to FeatureTypeFlag.
	Type FeatureType
}

// CreateFeature stores a new feature and materializes its default state in
// every environment of its project with Enabled = DefaultEnabled.
func (s *Service) CreateFeature(ctx context.Context, in CreateFeatureInput) (*Feature, error) {
	name, err := normalizeName("feature", in.Name)
	if err != nil {
		return nil, err
	}
	typ, err := featureType(in.Type)
	if err != nil {
		return nil, err
	}

	feature := &Feature{
		ID:             in.ID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		ProjectID:      in.ProjectID,
		InitialValue:   in.InitialValue,
		DefaultEnabled: in.DefaultEnabled,
		Type:           typ,
		CreatedAt:      s.timestamp(),
	}
	if feature.ID == uuid.Nil {
		feature.ID = newID()
	}

	var res CascadeResult
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := lockProjects(ctx, tx, feature.ProjectID); err != nil {
			return err
		}
		if err := checkFeatureName(ctx, tx, feature); err != nil {
			return err
		}
		if err := tx.CreateFeature(ctx, feature); err != nil {
			return err
		}
		var err error
		res, err = CascadeFeatureSaved(ctx, tx, feature, uuid.NullUUID{})
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "create_feature", err, logger.ProjectID(in.ProjectID))
	}

	s.log.InfoContext(ctx, "feature created",
		logger.FeatureID(feature.ID),
		logger.ProjectID(feature.ProjectID),
		cascadeAttr(res),
	)
	return feature, nil
}

// UpdateFeatureInput changes a feature. Nil fields are left untouched.
// InitialValue is applied only when SetInitialValue is true, so it can be
// cleared with a nil pointer.
type UpdateFeatureInput struct {
	Name            *string
	Description     *string
	InitialValue    *string
	SetInitialValue bool
	DefaultEnabled  *bool
	Type            *FeatureType
	ProjectID       *uuid.UUID
}

// UpdateFeature writes the changed fields. Only a move to another project
// touches feature states; renames and default changes keep every per
// environment toggle.
func (s *Service) UpdateFeature(ctx context.Context, id uuid.UUID, in UpdateFeatureInput) (*Feature, error) {
	return s.updateFeature(ctx, id, in, uuid.NullUUID{})
}

func (s *Service) updateFeature(ctx context.Context, id uuid.UUID, in UpdateFeatureInput, expected uuid.NullUUID) (*Feature, error) {
	var name string
	if in.Name != nil {
		var err error
		if name, err = normalizeName("feature", *in.Name); err != nil {
			return nil, err
		}
	}
	var typ FeatureType
	if in.Type != nil {
		var err error
		if typ, err = featureType(*in.Type); err != nil {
			return nil, err
		}
	}

	var (
		feature  *Feature
		previous uuid.UUID
		res      CascadeResult
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetFeature(ctx, id)
		if err != nil {
			return err
		}
		previous = current.ProjectID

		target := current.ProjectID
		if in.ProjectID != nil {
			target = *in.ProjectID
		}
		if err := lockProjects(ctx, tx, previous, target); err != nil {
			return err
		}
		if target != previous {
			if err := sameOrganisation(ctx, tx, previous, target); err != nil {
				return err
			}
		}

		if feature, err = tx.LockFeature(ctx, id); err != nil {
			return err
		}
		if feature.ProjectID != previous {
			return errors.Join(ErrConflict, errors.New("feature was moved concurrently"))
		}
		if expected.Valid && expected.UUID != feature.ProjectID {
			return errors.Join(ErrConflict, fmt.Errorf("feature is in project %s, not %s", feature.ProjectID, expected.UUID))
		}

		if in.Name != nil {
			feature.Name = name
		}
		if in.Description != nil {
			feature.Description = strings.TrimSpace(*in.Description)
		}
		if in.SetInitialValue {
			feature.InitialValue = in.InitialValue
		}
		if in.DefaultEnabled != nil {
			feature.DefaultEnabled = *in.DefaultEnabled
		}
		if in.Type != nil {
			feature.Type = typ
		}
		feature.ProjectID = target

		if in.Name != nil || target != previous {
			if err := checkFeatureName(ctx, tx, feature); err != nil {
				return err
			}
		}
		if err := tx.UpdateFeature(ctx, feature); err != nil {
			return err
		}

		res, err = CascadeFeatureSaved(ctx, tx, feature, uuid.NullUUID{UUID: previous, Valid: true})
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "update_feature", err, logger.FeatureID(id))
	}

	if feature.ProjectID != previous {
		s.log.InfoContext(ctx, "feature reassigned",
			logger.FeatureID(feature.ID),
			slog.String("old_project_id", previous.String()),
			logger.ProjectID(feature.ProjectID),
			cascadeAttr(res),
		)
	}
	return feature, nil
}

// DeleteFeature removes the feature and all of its states.
func (s *Service) DeleteFeature(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockFeature(ctx, id); err != nil {
			return err
		}
		return tx.DeleteFeature(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete_feature", err, logger.FeatureID(id))
	}
	s.log.InfoContext(ctx, "feature deleted", logger.FeatureID(id))
	return nil
}

func (s *Service) GetFeature(ctx context.Context, id uuid.UUID) (*Feature, error) {
	var feature *Feature
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		feature, err = r.GetFeature(ctx, id)
		return err
	})
	return feature, s.fail(ctx, "get_feature", err)
}

func (s *Service) ListFeatures(ctx context.Context, projectID uuid.UUID) ([]*Feature, error) {
	var features []*Feature
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		features, err = r.ListFeatures(ctx, projectID)
		return err
	})
	return features, s.fail(ctx, "list_features", err)
}

// checkFeatureName rejects a name already used by another feature of the
// same project, ignoring case.
func checkFeatureName(ctx context.Context, r Reader, feature *Feature) error {
	existing, err := r.FindFeatureByName(ctx, feature.ProjectID, feature.Name)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == feature.ID:
		return nil
	}
	return invalid(fmt.Sprintf("feature %q already exists in this project", existing.Name))
}

func featureType(t FeatureType) (FeatureType, error) {
	if t == "" {
		return FeatureTypeFlag, nil
	}
	t = FeatureType(strings.ToUpper(string(t)))
	if !t.Valid() {
		return "", invalid(fmt.Sprintf("unknown feature type %q", t))
	}
	return t, nil
}
