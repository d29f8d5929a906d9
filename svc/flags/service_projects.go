package flags

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

func (s *Service) CreateOrganisation(ctx context.Context, name string) (*Organisation, error) {
	name, err := normalizeName("organisation", name)
	if err != nil {
		return nil, err
	}

	org := &Organisation{ID: newID(), Name: name, CreatedAt: s.timestamp()}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateOrganisation(ctx, org)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_organisation", err)
	}

	s.log.InfoContext(ctx, "organisation created", logger.OrganisationID(org.ID))
	return org, nil
}

func (s *Service) GetOrganisation(ctx context.Context, id uuid.UUID) (*Organisation, error) {
	var org *Organisation
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		org, err = r.GetOrganisation(ctx, id)
		return err
	})
	return org, s.fail(ctx, "get_organisation", err)
}

// DeleteOrganisation removes the organisation with its projects and everything
// they own.
func (s *Service) DeleteOrganisation(ctx context.Context, id uuid.UUID) error {
	var keys []string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetOrganisation(ctx, id); err != nil {
			return err
		}
		projects, err := tx.ListProjects(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range projects {
			pk, err := environmentKeys(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			keys = append(keys, pk...)
		}
		return tx.DeleteOrganisation(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete_organisation", err, logger.OrganisationID(id))
	}

	s.invalidate(ctx, keys...)
	s.log.InfoContext(ctx, "organisation deleted", logger.OrganisationID(id))
	return nil
}

type CreateProjectInput struct {
	// ID is optional; a new id is generated when it is nil.
	ID             uuid.UUID
	OrganisationID uuid.UUID
	Name           string
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*Project, error) {
	name, err := normalizeName("project", in.Name)
	if err != nil {
		return nil, err
	}

	project := &Project{
		ID:             in.ID,
		Name:           name,
		OrganisationID: in.OrganisationID,
		CreatedAt:      s.timestamp(),
	}
	if project.ID == uuid.Nil {
		project.ID = newID()
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetOrganisation(ctx, in.OrganisationID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalid("organisation does not exist")
			}
			return err
		}
		return tx.CreateProject(ctx, project)
	})
	if err != nil {
		return nil, s.fail(ctx, "create_project", err)
	}

	s.log.InfoContext(ctx, "project created", logger.ProjectID(project.ID), logger.OrganisationID(project.OrganisationID))
	return project, nil
}

func (s *Service) RenameProject(ctx context.Context, id uuid.UUID, name string) (*Project, error) {
	name, err := normalizeName("project", name)
	if err != nil {
		return nil, err
	}

	var project *Project
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockProjects(ctx, id); err != nil {
			return err
		}
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		p.Name = name
		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "rename_project", err, logger.ProjectID(id))
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project *Project
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		var err error
		project, err = r.GetProject(ctx, id)
		return err
	})
	return project, s.fail(ctx, "get_project", err)
}

func (s *Service) ListProjects(ctx context.Context, organisationID uuid.UUID) ([]*Project, error) {
	var projects []*Project
	err := s.store.Read(ctx, func(ctx context.Context, r Reader) error {
		if _, err := r.GetOrganisation(ctx, organisationID); err != nil {
			return err
		}
		var err error
		projects, err = r.ListProjects(ctx, organisationID)
		return err
	})
	return projects, s.fail(ctx, "list_projects", err)
}

// DeleteProject removes the project with its environments, features,
// identities and feature states.
func (s *Service) DeleteProject(ctx context.Context, id uuid.UUID) error {
	var keys []string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockProjects(ctx, id); err != nil {
			return err
		}
		var err error
		if keys, err = environmentKeys(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete_project", err, logger.ProjectID(id))
	}

	s.invalidate(ctx, keys...)
	s.log.InfoContext(ctx, "project deleted", logger.ProjectID(id))
	return nil
}

func environmentKeys(ctx context.Context, r Reader, projectID uuid.UUID) ([]string, error) {
	envs, err := r.ListEnvironments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(envs))
	for _, env := range envs {
		keys = append(keys, env.APIKey)
	}
	return keys, nil
}
