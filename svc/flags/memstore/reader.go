package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

type reader struct {
	s *state
}

var _ flags.Reader = (*reader)(nil)

func (r *reader) GetOrganisation(_ context.Context, id uuid.UUID) (*flags.Organisation, error) {
	org, ok := r.s.orgs[id]
	if !ok {
		return nil, notFound("organisation", id)
	}
	return &org, nil
}

func (r *reader) GetProject(_ context.Context, id uuid.UUID) (*flags.Project, error) {
	p, ok := r.s.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	return &p, nil
}

func (r *reader) ListProjects(_ context.Context, organisationID uuid.UUID) ([]*flags.Project, error) {
	return collect(r.s.projects,
		func(p flags.Project) bool { return p.OrganisationID == organisationID },
		func(p flags.Project) uuid.UUID { return p.ID },
	), nil
}

func (r *reader) GetEnvironment(_ context.Context, id uuid.UUID) (*flags.Environment, error) {
	env, ok := r.s.envs[id]
	if !ok {
		return nil, notFound("environment", id)
	}
	return &env, nil
}

func (r *reader) GetEnvironmentByAPIKey(_ context.Context, apiKey string) (*flags.Environment, error) {
	for _, env := range r.s.envs {
		if env.APIKey == apiKey {
			return &env, nil
		}
	}
	return nil, notFound("environment", "with api key")
}

func (r *reader) ListEnvironments(_ context.Context, projectID uuid.UUID) ([]*flags.Environment, error) {
	return collect(r.s.envs,
		func(e flags.Environment) bool { return e.ProjectID == projectID },
		func(e flags.Environment) uuid.UUID { return e.ID },
	), nil
}

func (r *reader) GetIdentity(_ context.Context, id uuid.UUID) (*flags.Identity, error) {
	identity, ok := r.s.identities[id]
	if !ok {
		return nil, notFound("identity", id)
	}
	return &identity, nil
}

func (r *reader) ListIdentities(_ context.Context, environmentID uuid.UUID) ([]*flags.Identity, error) {
	return collect(r.s.identities,
		func(i flags.Identity) bool { return i.EnvironmentID == environmentID },
		func(i flags.Identity) uuid.UUID { return i.ID },
	), nil
}

func (r *reader) GetFeature(_ context.Context, id uuid.UUID) (*flags.Feature, error) {
	f, ok := r.s.features[id]
	if !ok {
		return nil, notFound("feature", id)
	}
	return cloneFeature(f), nil
}

func (r *reader) FindFeatureByName(_ context.Context, projectID uuid.UUID, name string) (*flags.Feature, error) {
	folded := flags.FoldName(name)
	for _, f := range r.s.features {
		if f.ProjectID == projectID && flags.FoldName(f.Name) == folded {
			return cloneFeature(f), nil
		}
	}
	return nil, notFound("feature", name)
}

func (r *reader) ListFeatures(_ context.Context, projectID uuid.UUID) ([]*flags.Feature, error) {
	out := collect(r.s.features,
		func(f flags.Feature) bool { return f.ProjectID == projectID },
		func(f flags.Feature) uuid.UUID { return f.ID },
	)
	for i, f := range out {
		out[i] = cloneFeature(*f)
	}
	return out, nil
}

func (r *reader) GetFeatureState(_ context.Context, id uuid.UUID) (*flags.FeatureState, error) {
	st, ok := r.s.states[id]
	if !ok {
		return nil, notFound("feature state", id)
	}
	return r.withValue(st), nil
}

func (r *reader) FindFeatureState(_ context.Context, key flags.StateKey) (*flags.FeatureState, error) {
	for _, st := range r.s.states {
		if st.Key() == key {
			return r.withValue(st), nil
		}
	}
	return nil, notFound("feature state", key.FeatureID)
}

func (r *reader) ListIdentityStates(_ context.Context, identityID uuid.UUID) ([]*flags.FeatureState, error) {
	return r.listStates(func(st flags.FeatureState) bool {
		return st.IdentityID.Valid && st.IdentityID.UUID == identityID
	}), nil
}

func (r *reader) ListDefaultStates(_ context.Context, environmentID uuid.UUID) ([]*flags.FeatureState, error) {
	return r.listStates(func(st flags.FeatureState) bool {
		return !st.IdentityID.Valid && st.EnvironmentID == environmentID
	}), nil
}

func (r *reader) ListFeatureStates(_ context.Context, featureID uuid.UUID) ([]*flags.FeatureState, error) {
	return r.listStates(func(st flags.FeatureState) bool {
		return st.FeatureID == featureID
	}), nil
}

func (r *reader) listStates(keep func(flags.FeatureState) bool) []*flags.FeatureState {
	out := collect(r.s.states, keep, func(st flags.FeatureState) uuid.UUID { return st.ID })
	for i, st := range out {
		out[i] = r.withValue(*st)
	}
	return out
}

// withValue attaches a copy of the state's value record.
func (r *reader) withValue(st flags.FeatureState) *flags.FeatureState {
	st.Value = nil
	if v, ok := r.s.values[st.ID]; ok {
		st.Value = &v
	}
	return &st
}

func cloneFeature(f flags.Feature) *flags.Feature {
	if f.InitialValue != nil {
		v := *f.InitialValue
		f.InitialValue = &v
	}
	return &f
}
