package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/flagkit/pkg/config"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/pg"
	"github.com/dmitrymomot/flagkit/svc/flags"
	"github.com/dmitrymomot/flagkit/svc/flags/pgstore"
)

const postgresImage = "postgres:16-alpine"

// The container is started by the first test that needs it and shared by
// the rest of the run. Every test works inside its own organisation.
var shared struct {
	once      sync.Once
	container testcontainers.Container
	pool      *pgxpool.Pool
	cfg       pg.Config
	err       error
}

func TestMain(m *testing.M) {
	code := m.Run()
	if shared.pool != nil {
		shared.pool.Close()
	}
	if shared.container != nil {
		_ = shared.container.Terminate(context.Background())
	}
	os.Exit(code)
}

func startPostgres() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "flagkit",
			"POSTGRES_USER":     "flagkit",
			"POSTGRES_PASSWORD": "flagkit",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	shared.container, shared.err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if shared.err != nil {
		return
	}

	host, err := shared.container.Host(ctx)
	if err != nil {
		shared.err = err
		return
	}
	port, err := shared.container.MappedPort(ctx, "5432")
	if err != nil {
		shared.err = err
		return
	}

	shared.cfg, shared.err = config.Parse[pg.Config](map[string]string{
		"PG_CONN_URL":       fmt.Sprintf("postgres://flagkit:flagkit@%s:%s/flagkit?sslmode=disable", host, port.Port()),
		"PG_MAX_OPEN_CONNS": "16",
		"PG_TX_ATTEMPTS":    "50",
		"PG_RETRY_INTERVAL": "500ms",
		"PG_RETRY_ATTEMPTS": "10",
	})
	if shared.err != nil {
		return
	}
	if shared.pool, shared.err = pg.Connect(ctx, shared.cfg); shared.err != nil {
		return
	}
	shared.err = pgstore.Migrate(ctx, shared.pool, shared.cfg, logger.Discard())
}

func newStore(t *testing.T) *pgstore.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("requires Docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	shared.once.Do(startPostgres)
	require.NoError(t, shared.err)
	return pgstore.New(shared.pool, shared.cfg)
}

type suite struct {
	store *pgstore.Store
	svc   *flags.Service
	org   *flags.Organisation
}

func setup(t *testing.T) *suite {
	t.Helper()
	store := newStore(t)
	svc := flags.NewService(store)
	org, err := svc.CreateOrganisation(context.Background(), "Acme")
	require.NoError(t, err)
	return &suite{store: store, svc: svc, org: org}
}

func (e *suite) project(t *testing.T, name string) *flags.Project {
	t.Helper()
	p, err := e.svc.CreateProject(context.Background(), flags.CreateProjectInput{OrganisationID: e.org.ID, Name: name})
	require.NoError(t, err)
	return p
}

func (e *suite) feature(t *testing.T, in flags.CreateFeatureInput) *flags.Feature {
	t.Helper()
	f, err := e.svc.CreateFeature(context.Background(), in)
	require.NoError(t, err)
	return f
}

func (e *suite) environment(t *testing.T, projectID uuid.UUID, name string) *flags.Environment {
	t.Helper()
	out, err := e.svc.CreateEnvironment(context.Background(), flags.CreateEnvironmentInput{ProjectID: projectID, Name: name})
	require.NoError(t, err)
	return out
}

// requireOneDefaultPerPair checks that every feature of p holds exactly one
// default state in each environment of p and none elsewhere.
func requireOneDefaultPerPair(t *testing.T, e *suite, p *flags.Project) {
	t.Helper()
	ctx := context.Background()

	features, err := e.svc.ListFeatures(ctx, p.ID)
	require.NoError(t, err)
	envs, err := e.svc.ListEnvironments(ctx, p.ID)
	require.NoError(t, err)

	for _, f := range features {
		states, err := e.svc.ListFeatureStates(ctx, f.ID)
		require.NoError(t, err)

		defaults := make(map[uuid.UUID]int)
		for _, st := range states {
			require.NotNil(t, st.Value, "state %s has no value", st.ID)
			if !st.IsOverride() {
				defaults[st.EnvironmentID]++
			}
		}
		require.Len(t, defaults, len(envs), "feature %q", f.Name)
		for _, en := range envs {
			require.Equal(t, 1, defaults[en.ID], "feature %q in environment %q", f.Name, en.Name)
		}
	}
}

func TestPostgresDarkModeScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := setup(t)

	mobile := e.project(t, "Mobile")
	darkMode := e.feature(t, flags.CreateFeatureInput{ProjectID: mobile.ID, Name: "dark_mode"})
	prod := e.environment(t, mobile.ID, "Prod")

	generic, err := e.svc.DefaultState(ctx, darkMode.ID, prod.ID)
	require.NoError(t, err)
	assert.False(t, generic.Enabled)
	require.NotNil(t, generic.Value)
	assert.True(t, generic.Value.Value.IsNull())

	user, err := e.svc.CreateIdentity(ctx, prod.ID, "user123")
	require.NoError(t, err)
	override, err := e.svc.RequestOverride(ctx, darkMode.ID, user.ID, flags.OverrideInput{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, override.Value)
	assert.Equal(t, generic.Value.Value.Type(), override.Value.Value.Type())

	overrides, defaults, err := e.svc.ResolveStatesForIdentity(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, darkMode.ID, overrides[0].FeatureID)
	assert.Empty(t, defaults)

	res, err := e.svc.GetEffectiveValue(ctx, darkMode.ID, prod.ID, uuid.NullUUID{UUID: user.ID, Valid: true})
	require.NoError(t, err)
	assert.True(t, res.Overridden)
	assert.True(t, res.Enabled)

	found, err := e.svc.EnvironmentByAPIKey(ctx, prod.APIKey)
	require.NoError(t, err)
	assert.Equal(t, prod.ID, found.ID)
}

func TestPostgresReassignments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := setup(t)

	a := e.project(t, "A")
	b := e.project(t, "B")
	e.feature(t, flags.CreateFeatureInput{ProjectID: a.ID, Name: "a1"})
	e.feature(t, flags.CreateFeatureInput{ProjectID: b.ID, Name: "b1", DefaultEnabled: true})
	prod := e.environment(t, a.ID, "Prod")
	e.environment(t, b.ID, "Staging")

	_, err := e.svc.UpdateEnvironment(ctx, prod.ID, flags.UpdateEnvironmentInput{ProjectID: &b.ID})
	require.NoError(t, err)

	states, err := e.svc.ListEnvironmentStates(ctx, prod.ID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "b1", states[0].Feature.Name)
	assert.True(t, states[0].Enabled)

	moved := e.feature(t, flags.CreateFeatureInput{ProjectID: a.ID, Name: "moved"})
	_, err = e.svc.UpdateFeature(ctx, moved.ID, flags.UpdateFeatureInput{ProjectID: &b.ID})
	require.NoError(t, err)

	requireOneDefaultPerPair(t, e, a)
	requireOneDefaultPerPair(t, e, b)

	missing := uuid.New()
	_, err = e.svc.UpdateEnvironment(ctx, prod.ID, flags.UpdateEnvironmentInput{ProjectID: &missing})
	require.ErrorIs(t, err, flags.ErrValidation)
	requireOneDefaultPerPair(t, e, b)
}

func TestPostgresUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := setup(t)

	p := e.project(t, "Web")
	prod := e.environment(t, p.ID, "Prod")
	search := e.feature(t, flags.CreateFeatureInput{ProjectID: p.ID, Name: "search"})
	user, err := e.svc.CreateIdentity(ctx, prod.ID, "user")
	require.NoError(t, err)

	t.Run("duplicate default state", func(t *testing.T) {
		err := e.store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
			return tx.CreateFeatureState(ctx, &flags.FeatureState{ID: uuid.New(), FeatureID: search.ID, EnvironmentID: prod.ID})
		})
		require.ErrorIs(t, err, flags.ErrConflict)
	})

	t.Run("duplicate override", func(t *testing.T) {
		_, err := e.svc.RequestOverride(ctx, search.ID, user.ID, flags.OverrideInput{Enabled: true})
		require.NoError(t, err)

		err = e.store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
			return tx.CreateFeatureState(ctx, &flags.FeatureState{
				ID:            uuid.New(),
				FeatureID:     search.ID,
				EnvironmentID: prod.ID,
				IdentityID:    uuid.NullUUID{UUID: user.ID, Valid: true},
			})
		})
		require.ErrorIs(t, err, flags.ErrConflict)
	})

	t.Run("feature names fold like memstore", func(t *testing.T) {
		e.feature(t, flags.CreateFeatureInput{ProjectID: p.ID, Name: "Straße"})
		_, err := e.svc.CreateFeature(ctx, flags.CreateFeatureInput{ProjectID: p.ID, Name: "STRASSE"})
		require.ErrorIs(t, err, flags.ErrValidation)

		err = e.store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
			return tx.CreateFeature(ctx, &flags.Feature{
				ID: uuid.New(), Name: "SEARCH", ProjectID: p.ID, Type: flags.FeatureTypeFlag, CreatedAt: time.Now(),
			})
		})
		require.ErrorIs(t, err, flags.ErrValidation)

		err = e.store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
			found, err := r.FindFeatureByName(ctx, p.ID, "strasse")
			if err != nil {
				return err
			}
			assert.Equal(t, "Straße", found.Name)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestPostgresDeleteCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := setup(t)

	p := e.project(t, "Web")
	prod := e.environment(t, p.ID, "Prod")
	search := e.feature(t, flags.CreateFeatureInput{ProjectID: p.ID, Name: "search"})
	user, err := e.svc.CreateIdentity(ctx, prod.ID, "user")
	require.NoError(t, err)
	override, err := e.svc.RequestOverride(ctx, search.ID, user.ID, flags.OverrideInput{Enabled: true})
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteIdentity(ctx, user.ID))
	_, err = e.svc.GetFeatureState(ctx, override.ID)
	require.ErrorIs(t, err, flags.ErrNotFound)

	require.NoError(t, e.svc.DeleteProject(ctx, p.ID))
	_, err = e.svc.GetFeature(ctx, search.ID)
	require.ErrorIs(t, err, flags.ErrNotFound)
	_, err = e.svc.EnvironmentByAPIKey(ctx, prod.APIKey)
	require.ErrorIs(t, err, flags.ErrNotFound)
}

func TestPostgresConcurrentCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := setup(t)

	p := e.project(t, "Web")
	e.environment(t, p.ID, "Dev")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.svc.CreateFeature(ctx, flags.CreateFeatureInput{ProjectID: p.ID, Name: fmt.Sprintf("feature_%d", i)})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := e.svc.CreateEnvironment(ctx, flags.CreateEnvironmentInput{ProjectID: p.ID, Name: fmt.Sprintf("env_%d", i)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	features, err := e.svc.ListFeatures(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, features, workers)
	envs, err := e.svc.ListEnvironments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, envs, workers+1)

	requireOneDefaultPerPair(t, e, p)
}
