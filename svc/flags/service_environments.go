package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

type CreateEnvironmentInput struct {
	// ID is optional; a new id is generated when it is nil.
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
}

// CreateEnvironment stores a new environment with a generated API key and
// materializes a default state for every feature of its project.
func (s *Service) CreateEnvironment(ctx context.Context, in CreateEnvironmentInput) (*Environment, error) {
	name, err := normalizeName("environment", in.Name)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		ID:        in.ID,
		Name:      name,
		ProjectID: in.ProjectID,
		CreatedAt: s.timestamp(),
	}
	if env.ID == uuid.Nil {
		env.ID = newID()
	}
	if env.APIKey, err = s.keys.GenerateKey(env.ID); err != nil {
		return nil, s.fail(ctx, "create_environment", errors.Join(ErrUnavailable, err))
	}

	var res CascadeResult
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := lockProjects(ctx, tx, env.ProjectID); err != nil {
			return err
		}
		if err := tx.CreateEnvironment(ctx, env); err != nil {
			return err
		}
		var err error
		res, err = CascadeEnvironmentSaved(ctx, tx, env, uuid.NullUUID{})
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "create_environment", err, logger.ProjectID(in.ProjectID))
	}

	s.log.InfoContext(ctx, "environment created",
		logger.EnvironmentID(env.ID),
		logger.ProjectID(env.ProjectID),
		cascadeAttr(res),
	)
	return env, nil
}

// UpdateEnvironmentInput changes an environment. Nil fields are left untouched.
type UpdateEnvironmentInput struct {
	Name      *string
	ProjectID *uuid.UUID
}

// UpdateEnvironment renames an environment or moves it to another project of
// the same organisation. A move drops the states of the old project's features
// and materializes defaults for the new project's features.
func (s *Service) UpdateEnvironment(ctx context.Context, id uuid.UUID, in UpdateEnvironmentInput) (*Environment, error) {
	return s.updateEnvironment(ctx, id, in, uuid.NullUUID{})
}

// updateEnvironment fails with ErrConflict when expected is set and the
// environment is no longer in that project.
func (s *Service) updateEnvironment(ctx context.Context, id uuid.UUID, in UpdateEnvironmentInput, expected uuid.NullUUID) (*Environment, error) {
	var name string
	if in.Name != nil {
		var err error
		if name, err = normalizeName("environment", *in.Name); err != nil {
			return nil, err
		}
	}

	var (
		env      *Environment
		previous uuid.UUID
		res      CascadeResult
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetEnvironment(ctx, id)
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

		if env, err = tx.LockEnvironment(ctx, id); err != nil {
			return err
		}
		if env.ProjectID != previous {
			return errors.Join(ErrConflict, errors.New("environment was moved concurrently"))
		}
		if expected.Valid && expected.UUID != env.ProjectID {
			return errors.Join(ErrConflict, fmt.Errorf("environment is in project %s, not %s", env.ProjectID, expected.UUID))
		}

		if in.Name != nil {
			env.Name = name
		}
		env.ProjectID = target
		if err := tx.UpdateEnvironment(ctx, env); err != nil {
			return err
		}

		res, err = CascadeEnvironmentSaved(ctx, tx, env, uuid.NullUUID{UUID: previous, Valid: true})
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "update_environment", err, logger.EnvironmentID(id))
	}

	s.invalidate(ctx, env.APIKey)
	if env.ProjectID != previous {
		s.log.InfoContext(ctx, "environment reassigned",
			logger.EnvironmentID(env.ID),
			slog.String("old_project_id", previous.String()),
			logger.ProjectID(env.ProjectID),
			cascadeAttr(res),
		)
	}
	return env, nil
}

func (s *Service) DeleteEnvironment(ctx context.Context, id uuid.UUID) error {
	var env *Environment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if env, err = tx.LockEnvironment(ctx, id); err != nil {
			return err
		}
		return tx.DeleteEnvironment(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete_environment", err, logger.EnvironmentID(id))
	}

	s.invalidate(ctx, env.APIKey)
	s.log.InfoContext(ctx, "environment deleted", logger.EnvironmentID(id), logger.ProjectID(env.ProjectID))
	return nil
}

func (s *Service) GetEnvironment(ctx context.Context, id uuid.UUID) (*Environment, error) {
	var env *Environment
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		env, err = r.GetEnvironment(ctx, id)
		return err
	})
	return env, s.fail(ctx, "get_environment", err)
}

func (s *Service) ListEnvironments(ctx context.Context, projectID uuid.UUID) ([]*Environment, error) {
	var envs []*Environment
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return err
		}
		var err error
		envs, err = r.ListEnvironments(ctx, projectID)
		return err
	})
	return envs, s.fail(ctx, "list_environments", err)
}

func (s *Service) CreateIdentity(ctx context.Context, environmentID uuid.UUID, identifier string) (*Identity, error) {
	identifier, err := normalizeName("identity", identifier)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		ID:            newID(),
		Identifier:    identifier,
		EnvironmentID: environmentID,
		CreatedAt:     s.timestamp(),
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetEnvironment(ctx, environmentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalid("environment does not exist")
			}
			return err
		}
		return tx.CreateIdentity(ctx, identity)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_identity", err, logger.EnvironmentID(environmentID))
	}

	s.log.DebugContext(ctx, "identity created", logger.IdentityID(identity.ID), logger.EnvironmentID(environmentID))
	return identity, nil
}

// DeleteIdentity removes the identity and its overrides.
func (s *Service) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetIdentity(ctx, id); err != nil {
			return err
		}
		return tx.DeleteIdentity(ctx, id)
	})
	return s.fail(ctx, "delete_identity", err, logger.IdentityID(id))
}

func (s *Service) GetIdentity(ctx context.Context, id uuid.UUID) (*Identity, error) {
	var identity *Identity
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		identity, err = r.GetIdentity(ctx, id)
		return err
	})
	return identity, s.fail(ctx, "get_identity", err)
}

func (s *Service) ListIdentities(ctx context.Context, environmentID uuid.UUID) ([]*Identity, error) {
	var identities []*Identity
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetEnvironment(ctx, environmentID); err != nil {
			return err
		}
		var err error
		identities, err = r.ListIdentities(ctx, environmentID)
		return err
	})
	return identities, s.fail(ctx, "list_identities", err)
}

// sameOrganisation rejects moves across organisations.
func sameOrganisation(ctx context.Context, r Reader, from, to uuid.UUID) error {
	a, err := r.GetProject(ctx, from)
	if err != nil {
		return err
	}
	b, err := r.GetProject(ctx, to)
	if err != nil {
		return err
	}
	if a.OrganisationID != b.OrganisationID {
		return invalid("project belongs to another organisation")
	}
	return nil
}

func cascadeAttr(res CascadeResult) slog.Attr {
	return slog.Group("cascade",
		slog.Int64("deleted", res.Deleted),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
	)
}
