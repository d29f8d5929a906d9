package pgstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/flagkit/pkg/value"
	"github.com/dmitrymomot/flagkit/svc/flags"
)

type reader struct {
	q pgx.Tx
}

var _ flags.Reader = (*reader)(nil)

const (
	projectColumns     = `id, name, organisation_id, created_at`
	environmentColumns = `id, name, api_key, project_id, created_at`
	identityColumns    = `id, identifier, environment_id, created_at`
	featureColumns     = `id, name, description, project_id, initial_value, default_enabled, type, created_at`

	stateSelect = `
		SELECT fs.id, fs.feature_id, fs.environment_id, fs.identity_id, fs.enabled,
		       v.id, v.type, v.integer_value, v.string_value, v.boolean_value
		FROM feature_states fs
		LEFT JOIN feature_state_values v ON v.feature_state_id = fs.id`
)

func (r *reader) GetOrganisation(ctx context.Context, id uuid.UUID) (*flags.Organisation, error) {
	var org flags.Organisation
	err := r.q.QueryRow(ctx,
		`SELECT id, name, created_at FROM organisations WHERE id = $1`, id,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, mapError(err, "organisation")
	}
	return &org, nil
}

func (r *reader) GetProject(ctx context.Context, id uuid.UUID) (*flags.Project, error) {
	p, err := scanProject(r.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	return p, mapError(err, "project")
}

func (r *reader) ListProjects(ctx context.Context, organisationID uuid.UUID) ([]*flags.Project, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE organisation_id = $1 ORDER BY id`, organisationID)
	return collect(rows, err, "projects", scanProject)
}

func (r *reader) GetEnvironment(ctx context.Context, id uuid.UUID) (*flags.Environment, error) {
	env, err := scanEnvironment(r.q.QueryRow(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = $1`, id))
	return env, mapError(err, "environment")
}

func (r *reader) GetEnvironmentByAPIKey(ctx context.Context, apiKey string) (*flags.Environment, error) {
	env, err := scanEnvironment(r.q.QueryRow(ctx, `SELECT `+environmentColumns+` FROM environments WHERE api_key = $1`, apiKey))
	return env, mapError(err, "environment")
}

func (r *reader) ListEnvironments(ctx context.Context, projectID uuid.UUID) ([]*flags.Environment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+environmentColumns+` FROM environments WHERE project_id = $1 ORDER BY id`, projectID)
	return collect(rows, err, "environments", scanEnvironment)
}

func (r *reader) GetIdentity(ctx context.Context, id uuid.UUID) (*flags.Identity, error) {
	identity, err := scanIdentity(r.q.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	return identity, mapError(err, "identity")
}

func (r *reader) ListIdentities(ctx context.Context, environmentID uuid.UUID) ([]*flags.Identity, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE environment_id = $1 ORDER BY id`, environmentID)
	return collect(rows, err, "identities", scanIdentity)
}

func (r *reader) GetFeature(ctx context.Context, id uuid.UUID) (*flags.Feature, error) {
	f, err := scanFeature(r.q.QueryRow(ctx, `SELECT `+featureColumns+` FROM features WHERE id = $1`, id))
	return f, mapError(err, "feature")
}

func (r *reader) FindFeatureByName(ctx context.Context, projectID uuid.UUID, name string) (*flags.Feature, error) {
	f, err := scanFeature(r.q.QueryRow(ctx,
		`SELECT `+featureColumns+` FROM features WHERE project_id = $1 AND folded_name = $2`,
		projectID, flags.FoldName(name),
	))
	return f, mapError(err, "feature")
}

func (r *reader) ListFeatures(ctx context.Context, projectID uuid.UUID) ([]*flags.Feature, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+featureColumns+` FROM features WHERE project_id = $1 ORDER BY id`, projectID)
	return collect(rows, err, "features", scanFeature)
}

func (r *reader) GetFeatureState(ctx context.Context, id uuid.UUID) (*flags.FeatureState, error) {
	st, err := scanState(r.q.QueryRow(ctx, stateSelect+` WHERE fs.id = $1`, id))
	return st, mapError(err, "feature state")
}

func (r *reader) FindFeatureState(ctx context.Context, key flags.StateKey) (*flags.FeatureState, error) {
	st, err := scanState(r.q.QueryRow(ctx,
		stateSelect+` WHERE fs.feature_id = $1 AND fs.environment_id = $2 AND fs.identity_id IS NOT DISTINCT FROM $3`,
		key.FeatureID, key.EnvironmentID, key.IdentityID,
	))
	return st, mapError(err, "feature state")
}

func (r *reader) ListIdentityStates(ctx context.Context, identityID uuid.UUID) ([]*flags.FeatureState, error) {
	rows, err := r.q.Query(ctx, stateSelect+` WHERE fs.identity_id = $1 ORDER BY fs.id`, identityID)
	return collect(rows, err, "feature states", scanState)
}

func (r *reader) ListDefaultStates(ctx context.Context, environmentID uuid.UUID) ([]*flags.FeatureState, error) {
	rows, err := r.q.Query(ctx,
		stateSelect+` WHERE fs.environment_id = $1 AND fs.identity_id IS NULL ORDER BY fs.id`, environmentID)
	return collect(rows, err, "feature states", scanState)
}

func (r *reader) ListFeatureStates(ctx context.Context, featureID uuid.UUID) ([]*flags.FeatureState, error) {
	rows, err := r.q.Query(ctx, stateSelect+` WHERE fs.feature_id = $1 ORDER BY fs.id`, featureID)
	return collect(rows, err, "feature states", scanState)
}

func collect[T any](rows pgx.Rows, err error, what string, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	if err != nil {
		return nil, mapError(err, what)
	}
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, mapError(err, what)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, what)
	}
	return out, nil
}

func scanProject(row pgx.Row) (*flags.Project, error) {
	var p flags.Project
	if err := row.Scan(&p.ID, &p.Name, &p.OrganisationID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanEnvironment(row pgx.Row) (*flags.Environment, error) {
	var env flags.Environment
	if err := row.Scan(&env.ID, &env.Name, &env.APIKey, &env.ProjectID, &env.CreatedAt); err != nil {
		return nil, err
	}
	return &env, nil
}

func scanIdentity(row pgx.Row) (*flags.Identity, error) {
	var identity flags.Identity
	if err := row.Scan(&identity.ID, &identity.Identifier, &identity.EnvironmentID, &identity.CreatedAt); err != nil {
		return nil, err
	}
	return &identity, nil
}

func scanFeature(row pgx.Row) (*flags.Feature, error) {
	var (
		f   flags.Feature
		typ string
	)
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.ProjectID, &f.InitialValue, &f.DefaultEnabled, &typ, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.Type = flags.FeatureType(typ)
	return &f, nil
}

func scanState(row pgx.Row) (*flags.FeatureState, error) {
	var (
		st      flags.FeatureState
		valueID uuid.NullUUID
		typ     *string
		i       *int64
		s       *string
		b       *bool
	)
	err := row.Scan(&st.ID, &st.FeatureID, &st.EnvironmentID, &st.IdentityID, &st.Enabled,
		&valueID, &typ, &i, &s, &b)
	if err != nil {
		return nil, err
	}
	if valueID.Valid {
		var t value.Type
		if typ != nil {
			t = value.Type(*typ)
		}
		st.Value = &flags.FeatureStateValue{
			ID:             valueID.UUID,
			FeatureStateID: st.ID,
			Value:          value.FromColumns(t, i, s, b),
		}
	}
	return &st, nil
}
