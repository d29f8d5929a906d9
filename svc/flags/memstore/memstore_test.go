package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/value"
	"github.com/dmitrymomot/flagkit/svc/flags"
	"github.com/dmitrymomot/flagkit/svc/flags/memstore"
)

type seed struct {
	org     *flags.Organisation
	project *flags.Project
	env     *flags.Environment
	feature *flags.Feature
}

func seedStore(t *testing.T, store *memstore.Store) seed {
	t.Helper()
	s := seed{
		org: &flags.Organisation{ID: uuid.New(), Name: "Acme"},
	}
	s.project = &flags.Project{ID: uuid.New(), Name: "Mobile", OrganisationID: s.org.ID}
	s.env = &flags.Environment{ID: uuid.New(), Name: "Prod", APIKey: "key-prod", ProjectID: s.project.ID}
	initial := "v"
	s.feature = &flags.Feature{ID: uuid.New(), Name: "dark_mode", ProjectID: s.project.ID, InitialValue: &initial, Type: flags.FeatureTypeFlag}

	err := store.WithTx(context.Background(), func(ctx context.Context, tx flags.Tx) error {
		return errors.Join(
			tx.CreateOrganisation(ctx, s.org),
			tx.CreateProject(ctx, s.project),
			tx.CreateEnvironment(ctx, s.env),
			tx.CreateFeature(ctx, s.feature),
		)
	})
	require.NoError(t, err)
	return s
}

func createState(ctx context.Context, tx flags.Tx, featureID, envID uuid.UUID, identity uuid.NullUUID) (*flags.FeatureState, error) {
	st := &flags.FeatureState{ID: uuid.New(), FeatureID: featureID, EnvironmentID: envID, IdentityID: identity}
	if err := tx.CreateFeatureState(ctx, st); err != nil {
		return nil, err
	}
	return st, tx.CreateFeatureStateValue(ctx, &flags.FeatureStateValue{ID: uuid.New(), FeatureStateID: st.ID, Value: value.Int(1)})
}

func TestRollbackDiscardsWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
		if _, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
		states, err := r.ListFeatureStates(ctx, s.feature.ID)
		require.NoError(t, err)
		assert.Empty(t, states)
		return nil
	})
	require.NoError(t, err)
}

func TestReadersSeeCommittedSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	inTx := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
			if _, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{}); err != nil {
				return err
			}
			close(inTx)
			<-release
			return nil
		})
	}()

	<-inTx
	err := store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
		states, err := r.ListDefaultStates(ctx, s.env.ID)
		require.NoError(t, err)
		assert.Empty(t, states)
		return nil
	})
	require.NoError(t, err)

	close(release)
	wg.Wait()

	err = store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
		states, err := r.ListDefaultStates(ctx, s.env.ID)
		require.NoError(t, err)
		require.Len(t, states, 1)
		require.NotNil(t, states[0].Value)
		assert.Equal(t, value.Int(1), states[0].Value.Value)
		return nil
	})
	require.NoError(t, err)
}

func TestUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	tests := []struct {
		name string
		fn   func(ctx context.Context, tx flags.Tx) error
		want error
	}{
		{
			name: "duplicate default state",
			fn: func(ctx context.Context, tx flags.Tx) error {
				if _, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{}); err != nil {
					return err
				}
				_, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{})
				return err
			},
			want: flags.ErrConflict,
		},
		{
			name: "second value for a state",
			fn: func(ctx context.Context, tx flags.Tx) error {
				st, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{})
				if err != nil {
					return err
				}
				return tx.CreateFeatureStateValue(ctx, &flags.FeatureStateValue{ID: uuid.New(), FeatureStateID: st.ID, Value: value.Bool(true)})
			},
			want: flags.ErrConflict,
		},
		{
			name: "feature name differing in case",
			fn: func(ctx context.Context, tx flags.Tx) error {
				return tx.CreateFeature(ctx, &flags.Feature{ID: uuid.New(), Name: "Dark_Mode", ProjectID: s.project.ID})
			},
			want: flags.ErrValidation,
		},
		{
			name: "project name",
			fn: func(ctx context.Context, tx flags.Tx) error {
				return tx.CreateProject(ctx, &flags.Project{ID: uuid.New(), Name: "Mobile", OrganisationID: s.org.ID})
			},
			want: flags.ErrValidation,
		},
		{
			name: "api key",
			fn: func(ctx context.Context, tx flags.Tx) error {
				return tx.CreateEnvironment(ctx, &flags.Environment{ID: uuid.New(), Name: "Dev", APIKey: "key-prod", ProjectID: s.project.ID})
			},
			want: flags.ErrConflict,
		},
		{
			name: "missing parent",
			fn: func(ctx context.Context, tx flags.Tx) error {
				return tx.CreateIdentity(ctx, &flags.Identity{ID: uuid.New(), Identifier: "u", EnvironmentID: uuid.New()})
			},
			want: flags.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.WithTx(ctx, tt.fn)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScopedStateDeletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	other := &flags.Project{ID: uuid.New(), Name: "Web", OrganisationID: s.org.ID}
	err := store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
		if err := tx.CreateProject(ctx, other); err != nil {
			return err
		}
		identity := &flags.Identity{ID: uuid.New(), Identifier: "u", EnvironmentID: s.env.ID}
		if err := tx.CreateIdentity(ctx, identity); err != nil {
			return err
		}
		if _, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{}); err != nil {
			return err
		}
		_, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{UUID: identity.ID, Valid: true})
		return err
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
		n, err := tx.DeleteEnvironmentStates(ctx, s.env.ID, other.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = tx.DeleteFeatureStates(ctx, s.feature.ID, s.project.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteOrganisationCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	err := store.WithTx(ctx, func(ctx context.Context, tx flags.Tx) error {
		if _, err := createState(ctx, tx, s.feature.ID, s.env.ID, uuid.NullUUID{}); err != nil {
			return err
		}
		return tx.DeleteOrganisation(ctx, s.org.ID)
	})
	require.NoError(t, err)

	err = store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
		_, err := r.GetEnvironmentByAPIKey(ctx, "key-prod")
		assert.ErrorIs(t, err, flags.ErrNotFound)
		_, err = r.GetFeature(ctx, s.feature.ID)
		assert.ErrorIs(t, err, flags.ErrNotFound)
		states, err := r.ListDefaultStates(ctx, s.env.ID)
		require.NoError(t, err)
		assert.Empty(t, states)
		return nil
	})
	require.NoError(t, err)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	s := seedStore(t, store)

	err := store.Read(ctx, func(ctx context.Context, r flags.Reader) error {
		f, err := r.GetFeature(ctx, s.feature.ID)
		require.NoError(t, err)
		*f.InitialValue = "changed"
		f.Name = "changed"

		again, err := r.GetFeature(ctx, s.feature.ID)
		require.NoError(t, err)
		assert.Equal(t, "v", *again.InitialValue)
		assert.Equal(t, "dark_mode", again.Name)
		return nil
	})
	require.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	store := memstore.New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := store.WithTx(ctx, func(context.Context, flags.Tx) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
