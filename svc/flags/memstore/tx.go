package memstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

type tx struct {
	reader
}

var _ flags.Tx = (*tx)(nil)

func conflict(format string, args ...any) error {
	return errors.Join(flags.ErrConflict, fmt.Errorf(format, args...))
}

func invalid(format string, args ...any) error {
	return errors.Join(flags.ErrValidation, fmt.Errorf(format, args...))
}

func (t *tx) CreateOrganisation(_ context.Context, org *flags.Organisation) error {
	if _, ok := t.s.orgs[org.ID]; ok {
		return conflict("organisation %s already exists", org.ID)
	}
	t.s.orgs[org.ID] = *org
	return nil
}

func (t *tx) DeleteOrganisation(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.s.orgs[id]; !ok {
		return notFound("organisation", id)
	}
	for pid, p := range t.s.projects {
		if p.OrganisationID == id {
			if err := t.DeleteProject(ctx, pid); err != nil {
				return err
			}
		}
	}
	delete(t.s.orgs, id)
	return nil
}

func (t *tx) CreateProject(_ context.Context, project *flags.Project) error {
	if _, ok := t.s.projects[project.ID]; ok {
		return conflict("project %s already exists", project.ID)
	}
	if err := t.checkProject(project); err != nil {
		return err
	}
	t.s.projects[project.ID] = *project
	return nil
}

func (t *tx) UpdateProject(_ context.Context, project *flags.Project) error {
	if _, ok := t.s.projects[project.ID]; !ok {
		return notFound("project", project.ID)
	}
	if err := t.checkProject(project); err != nil {
		return err
	}
	t.s.projects[project.ID] = *project
	return nil
}

func (t *tx) checkProject(project *flags.Project) error {
	if _, ok := t.s.orgs[project.OrganisationID]; !ok {
		return invalid("organisation %s does not exist", project.OrganisationID)
	}
	for _, p := range t.s.projects {
		if p.ID != project.ID && p.OrganisationID == project.OrganisationID && p.Name == project.Name {
			return invalid("project %q already exists in this organisation", project.Name)
		}
	}
	return nil
}

func (t *tx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.s.projects[id]; !ok {
		return notFound("project", id)
	}
	for eid, env := range t.s.envs {
		if env.ProjectID == id {
			if err := t.DeleteEnvironment(ctx, eid); err != nil {
				return err
			}
		}
	}
	for fid, f := range t.s.features {
		if f.ProjectID == id {
			if err := t.DeleteFeature(ctx, fid); err != nil {
				return err
			}
		}
	}
	delete(t.s.projects, id)
	return nil
}

func (t *tx) LockProjects(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		if _, ok := t.s.projects[id]; !ok {
			return notFound("project", id)
		}
	}
	return nil
}

func (t *tx) CreateEnvironment(_ context.Context, env *flags.Environment) error {
	if _, ok := t.s.envs[env.ID]; ok {
		return conflict("environment %s already exists", env.ID)
	}
	if err := t.checkEnvironment(env); err != nil {
		return err
	}
	t.s.envs[env.ID] = *env
	return nil
}

func (t *tx) UpdateEnvironment(_ context.Context, env *flags.Environment) error {
	if _, ok := t.s.envs[env.ID]; !ok {
		return notFound("environment", env.ID)
	}
	if err := t.checkEnvironment(env); err != nil {
		return err
	}
	t.s.envs[env.ID] = *env
	return nil
}

func (t *tx) checkEnvironment(env *flags.Environment) error {
	if _, ok := t.s.projects[env.ProjectID]; !ok {
		return invalid("project %s does not exist", env.ProjectID)
	}
	if env.APIKey == "" {
		return invalid("environment api key is required")
	}
	for _, e := range t.s.envs {
		if e.ID != env.ID && e.APIKey == env.APIKey {
			return conflict("api key is already in use")
		}
	}
	return nil
}

func (t *tx) DeleteEnvironment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.envs[id]; !ok {
		return notFound("environment", id)
	}
	t.deleteStates(func(st flags.FeatureState) bool { return st.EnvironmentID == id })
	for iid, identity := range t.s.identities {
		if identity.EnvironmentID == id {
			t.deleteIdentity(iid)
		}
	}
	delete(t.s.envs, id)
	return nil
}

func (t *tx) LockEnvironment(ctx context.Context, id uuid.UUID) (*flags.Environment, error) {
	return t.GetEnvironment(ctx, id)
}

func (t *tx) CreateIdentity(_ context.Context, identity *flags.Identity) error {
	if _, ok := t.s.identities[identity.ID]; ok {
		return conflict("identity %s already exists", identity.ID)
	}
	if _, ok := t.s.envs[identity.EnvironmentID]; !ok {
		return invalid("environment %s does not exist", identity.EnvironmentID)
	}
	t.s.identities[identity.ID] = *identity
	return nil
}

func (t *tx) DeleteIdentity(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.identities[id]; !ok {
		return notFound("identity", id)
	}
	t.deleteIdentity(id)
	return nil
}

func (t *tx) deleteIdentity(id uuid.UUID) {
	t.deleteStates(func(st flags.FeatureState) bool {
		return st.IdentityID.Valid && st.IdentityID.UUID == id
	})
	delete(t.s.identities, id)
}

func (t *tx) CreateFeature(_ context.Context, feature *flags.Feature) error {
	if _, ok := t.s.features[feature.ID]; ok {
		return conflict("feature %s already exists", feature.ID)
	}
	if err := t.checkFeature(feature); err != nil {
		return err
	}
	t.s.features[feature.ID] = *cloneFeature(*feature)
	return nil
}

func (t *tx) UpdateFeature(_ context.Context, feature *flags.Feature) error {
	if _, ok := t.s.features[feature.ID]; !ok {
		return notFound("feature", feature.ID)
	}
	if err := t.checkFeature(feature); err != nil {
		return err
	}
	t.s.features[feature.ID] = *cloneFeature(*feature)
	return nil
}

func (t *tx) checkFeature(feature *flags.Feature) error {
	if _, ok := t.s.projects[feature.ProjectID]; !ok {
		return invalid("project %s does not exist", feature.ProjectID)
	}
	folded := flags.FoldName(feature.Name)
	for _, f := range t.s.features {
		if f.ID != feature.ID && f.ProjectID == feature.ProjectID && flags.FoldName(f.Name) == folded {
			return invalid("feature %q already exists in this project", f.Name)
		}
	}
	return nil
}

func (t *tx) DeleteFeature(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.features[id]; !ok {
		return notFound("feature", id)
	}
	t.deleteStates(func(st flags.FeatureState) bool { return st.FeatureID == id })
	delete(t.s.features, id)
	return nil
}

func (t *tx) LockFeature(ctx context.Context, id uuid.UUID) (*flags.Feature, error) {
	return t.GetFeature(ctx, id)
}

func (t *tx) CreateFeatureState(_ context.Context, st *flags.FeatureState) error {
	if _, ok := t.s.states[st.ID]; ok {
		return conflict("feature state %s already exists", st.ID)
	}
	if _, ok := t.s.features[st.FeatureID]; !ok {
		return invalid("feature %s does not exist", st.FeatureID)
	}
	if _, ok := t.s.envs[st.EnvironmentID]; !ok {
		return invalid("environment %s does not exist", st.EnvironmentID)
	}
	if st.IdentityID.Valid {
		if _, ok := t.s.identities[st.IdentityID.UUID]; !ok {
			return invalid("identity %s does not exist", st.IdentityID.UUID)
		}
	}
	key := st.Key()
	for _, existing := range t.s.states {
		if existing.Key() == key {
			return conflict("feature state for feature %s already exists", st.FeatureID)
		}
	}

	rec := *st
	rec.Value = nil
	t.s.states[rec.ID] = rec
	return nil
}

func (t *tx) UpdateFeatureState(_ context.Context, st *flags.FeatureState) error {
	rec, ok := t.s.states[st.ID]
	if !ok {
		return notFound("feature state", st.ID)
	}
	rec.Enabled = st.Enabled
	t.s.states[st.ID] = rec
	return nil
}

func (t *tx) DeleteFeatureState(_ context.Context, id uuid.UUID) error {
	if _, ok := t.s.states[id]; !ok {
		return notFound("feature state", id)
	}
	delete(t.s.states, id)
	delete(t.s.values, id)
	return nil
}

func (t *tx) DeleteEnvironmentStates(_ context.Context, environmentID, projectID uuid.UUID) (int64, error) {
	return t.deleteStates(func(st flags.FeatureState) bool {
		return st.EnvironmentID == environmentID && t.s.features[st.FeatureID].ProjectID == projectID
	}), nil
}

func (t *tx) DeleteFeatureStates(_ context.Context, featureID, projectID uuid.UUID) (int64, error) {
	return t.deleteStates(func(st flags.FeatureState) bool {
		return st.FeatureID == featureID && t.s.envs[st.EnvironmentID].ProjectID == projectID
	}), nil
}

func (t *tx) deleteStates(match func(flags.FeatureState) bool) int64 {
	var n int64
	for id, st := range t.s.states {
		if match(st) {
			delete(t.s.states, id)
			delete(t.s.values, id)
			n++
		}
	}
	return n
}

func (t *tx) CreateFeatureStateValue(_ context.Context, v *flags.FeatureStateValue) error {
	if _, ok := t.s.states[v.FeatureStateID]; !ok {
		return invalid("feature state %s does not exist", v.FeatureStateID)
	}
	if _, ok := t.s.values[v.FeatureStateID]; ok {
		return conflict("feature state %s already has a value", v.FeatureStateID)
	}
	t.s.values[v.FeatureStateID] = *v
	return nil
}

func (t *tx) UpdateFeatureStateValue(_ context.Context, v *flags.FeatureStateValue) error {
	existing, ok := t.s.values[v.FeatureStateID]
	if !ok || existing.ID != v.ID {
		return notFound("feature state value", v.ID)
	}
	t.s.values[v.FeatureStateID] = *v
	return nil
}
