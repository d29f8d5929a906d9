package pgstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/svc/flags"
)

type tx struct {
	reader
}

var _ flags.Tx = (*tx)(nil)

// exec runs a statement that must touch exactly one row.
func (t *tx) exec(ctx context.Context, what, sql string, args ...any) error {
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, what)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(flags.ErrNotFound, fmt.Errorf("%s not found", what))
	}
	return nil
}

func (t *tx) CreateOrganisation(ctx context.Context, org *flags.Organisation) error {
	return t.exec(ctx, "organisation",
		`INSERT INTO organisations (id, name, created_at) VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt)
}

func (t *tx) DeleteOrganisation(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "organisation", `DELETE FROM organisations WHERE id = $1`, id)
}

func (t *tx) CreateProject(ctx context.Context, p *flags.Project) error {
	return t.exec(ctx, "project",
		`INSERT INTO projects (id, name, organisation_id, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.OrganisationID, p.CreatedAt)
}

func (t *tx) UpdateProject(ctx context.Context, p *flags.Project) error {
	return t.exec(ctx, "project",
		`UPDATE projects SET name = $2, organisation_id = $3 WHERE id = $1`,
		p.ID, p.Name, p.OrganisationID)
}

func (t *tx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "project", `DELETE FROM projects WHERE id = $1`, id)
}

func (t *tx) LockProjects(ctx context.Context, ids ...uuid.UUID) error {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	// A bare FOR UPDATE would let a waiter proceed on the snapshot it took
	// before the holder committed. Writing the row makes the waiter fail with
	// a serialization error instead, and pg.InTx re-runs it on fresh data.
	rows, err := t.q.Query(ctx, `
		WITH locked AS (
			SELECT id FROM projects WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE
		)
		UPDATE projects p SET lock_version = p.lock_version + 1
		FROM locked WHERE p.id = locked.id
		RETURNING p.id`, keys)
	if err != nil {
		return mapError(err, "project")
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return mapError(err, "project")
	}
	if locked != len(ids) {
		return errors.Join(flags.ErrNotFound, errors.New("project not found"))
	}
	return nil
}

func (t *tx) CreateEnvironment(ctx context.Context, env *flags.Environment) error {
	return t.exec(ctx, "environment",
		`INSERT INTO environments (id, name, api_key, project_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		env.ID, env.Name, env.APIKey, env.ProjectID, env.CreatedAt)
}

func (t *tx) UpdateEnvironment(ctx context.Context, env *flags.Environment) error {
	return t.exec(ctx, "environment",
		`UPDATE environments SET name = $2, api_key = $3, project_id = $4 WHERE id = $1`,
		env.ID, env.Name, env.APIKey, env.ProjectID)
}

func (t *tx) DeleteEnvironment(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "environment", `DELETE FROM environments WHERE id = $1`, id)
}

func (t *tx) LockEnvironment(ctx context.Context, id uuid.UUID) (*flags.Environment, error) {
	env, err := scanEnvironment(t.q.QueryRow(ctx,
		`SELECT `+environmentColumns+` FROM environments WHERE id = $1 FOR UPDATE`, id))
	return env, mapError(err, "environment")
}

func (t *tx) CreateIdentity(ctx context.Context, identity *flags.Identity) error {
	return t.exec(ctx, "identity",
		`INSERT INTO identities (id, identifier, environment_id, created_at) VALUES ($1, $2, $3, $4)`,
		identity.ID, identity.Identifier, identity.EnvironmentID, identity.CreatedAt)
}

func (t *tx) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "identity", `DELETE FROM identities WHERE id = $1`, id)
}

func (t *tx) CreateFeature(ctx context.Context, f *flags.Feature) error {
	return t.exec(ctx, "feature", `
		INSERT INTO features (id, name, folded_name, description, project_id, initial_value, default_enabled, type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.Name, flags.FoldName(f.Name), f.Description, f.ProjectID, f.InitialValue, f.DefaultEnabled, string(f.Type), f.CreatedAt)
}

func (t *tx) UpdateFeature(ctx context.Context, f *flags.Feature) error {
	return t.exec(ctx, "feature", `
		UPDATE features
		SET name = $2, folded_name = $3, description = $4, project_id = $5, initial_value = $6, default_enabled = $7, type = $8
		WHERE id = $1`,
		f.ID, f.Name, flags.FoldName(f.Name), f.Description, f.ProjectID, f.InitialValue, f.DefaultEnabled, string(f.Type))
}

func (t *tx) DeleteFeature(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "feature", `DELETE FROM features WHERE id = $1`, id)
}

func (t *tx) LockFeature(ctx context.Context, id uuid.UUID) (*flags.Feature, error) {
	f, err := scanFeature(t.q.QueryRow(ctx,
		`SELECT `+featureColumns+` FROM features WHERE id = $1 FOR UPDATE`, id))
	return f, mapError(err, "feature")
}

func (t *tx) CreateFeatureState(ctx context.Context, st *flags.FeatureState) error {
	return t.exec(ctx, "feature state", `
		INSERT INTO feature_states (id, feature_id, environment_id, identity_id, enabled)
		VALUES ($1, $2, $3, $4, $5)`,
		st.ID, st.FeatureID, st.EnvironmentID, st.IdentityID, st.Enabled)
}

func (t *tx) UpdateFeatureState(ctx context.Context, st *flags.FeatureState) error {
	return t.exec(ctx, "feature state",
		`UPDATE feature_states SET enabled = $2 WHERE id = $1`, st.ID, st.Enabled)
}

func (t *tx) DeleteFeatureState(ctx context.Context, id uuid.UUID) error {
	return t.exec(ctx, "feature state", `DELETE FROM feature_states WHERE id = $1`, id)
}

func (t *tx) DeleteEnvironmentStates(ctx context.Context, environmentID, projectID uuid.UUID) (int64, error) {
	tag, err := t.q.Exec(ctx, `
		DELETE FROM feature_states fs
		USING features f
		WHERE fs.feature_id = f.id AND fs.environment_id = $1 AND f.project_id = $2`,
		environmentID, projectID)
	if err != nil {
		return 0, mapError(err, "feature states")
	}
	return tag.RowsAffected(), nil
}

func (t *tx) DeleteFeatureStates(ctx context.Context, featureID, projectID uuid.UUID) (int64, error) {
	tag, err := t.q.Exec(ctx, `
		DELETE FROM feature_states fs
		USING environments e
		WHERE fs.environment_id = e.id AND fs.feature_id = $1 AND e.project_id = $2`,
		featureID, projectID)
	if err != nil {
		return 0, mapError(err, "feature states")
	}
	return tag.RowsAffected(), nil
}

func (t *tx) CreateFeatureStateValue(ctx context.Context, v *flags.FeatureStateValue) error {
	typ, i, s, b := v.Value.Columns()
	return t.exec(ctx, "feature state value", `
		INSERT INTO feature_state_values (id, feature_state_id, type, integer_value, string_value, boolean_value)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.FeatureStateID, string(typ), i, s, b)
}

func (t *tx) UpdateFeatureStateValue(ctx context.Context, v *flags.FeatureStateValue) error {
	typ, i, s, b := v.Value.Columns()
	return t.exec(ctx, "feature state value", `
		UPDATE feature_state_values
		SET type = $2, integer_value = $3, string_value = $4, boolean_value = $5
		WHERE id = $1`,
		v.ID, string(typ), i, s, b)
}
