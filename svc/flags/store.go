package flags

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence collaborator of the engine.
//
// WithTx is the only write path: fn runs inside one transaction which is
// committed when fn returns nil and rolled back otherwise. Implementations
// serialize writers that touch the same rows and publish a transaction's
// effects atomically.
//
// Read runs fn against a consistent snapshot. It never blocks on in-flight
// transactions and never observes one half-applied.
//
// Infrastructure failures are returned joined with ErrUnavailable.
type Store interface {
	Read(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Reader returns plain records. Lookups by id or key return ErrNotFound when
// nothing matches. Lists are ordered by id, which is creation order.
// Every returned FeatureState carries its FeatureStateValue, or nil if the
// value row is missing.
type Reader interface {
	GetOrganisation(ctx context.Context, id uuid.UUID) (*Organisation, error)

	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, organisationID uuid.UUID) ([]*Project, error)

	GetEnvironment(ctx context.Context, id uuid.UUID) (*Environment, error)
	GetEnvironmentByAPIKey(ctx context.Context, apiKey string) (*Environment, error)
	ListEnvironments(ctx context.Context, projectID uuid.UUID) ([]*Environment, error)

	GetIdentity(ctx context.Context, id uuid.UUID) (*Identity, error)
	ListIdentities(ctx context.Context, environmentID uuid.UUID) ([]*Identity, error)

	GetFeature(ctx context.Context, id uuid.UUID) (*Feature, error)
	// FindFeatureByName matches names by FoldName within a project.
	FindFeatureByName(ctx context.Context, projectID uuid.UUID, name string) (*Feature, error)
	ListFeatures(ctx context.Context, projectID uuid.UUID) ([]*Feature, error)

	GetFeatureState(ctx context.Context, id uuid.UUID) (*FeatureState, error)
	FindFeatureState(ctx context.Context, key StateKey) (*FeatureState, error)
	// ListIdentityStates returns the overrides held by an identity.
	ListIdentityStates(ctx context.Context, identityID uuid.UUID) ([]*FeatureState, error)
	// ListDefaultStates returns the identity-less states of an environment.
	ListDefaultStates(ctx context.Context, environmentID uuid.UUID) ([]*FeatureState, error)
	// ListFeatureStates returns every state of a feature, defaults and overrides.
	ListFeatureStates(ctx context.Context, featureID uuid.UUID) ([]*FeatureState, error)
}

// Tx is an open write transaction.
//
// Uniqueness violations are reported as ErrConflict, except duplicate project
// names and case-insensitive duplicate feature names, which are ErrValidation.
// A reference to a missing parent row is ErrValidation. Deletes cascade the way
// foreign keys do: organisation -> projects -> environments and features ->
// identities and feature states -> feature state values.
type Tx interface {
	Reader

	CreateOrganisation(ctx context.Context, org *Organisation) error
	DeleteOrganisation(ctx context.Context, id uuid.UUID) error

	CreateProject(ctx context.Context, project *Project) error
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	// LockProjects takes row locks on the given projects in id order.
	// It returns ErrNotFound if any of them does not exist.
	LockProjects(ctx context.Context, ids ...uuid.UUID) error

	CreateEnvironment(ctx context.Context, env *Environment) error
	UpdateEnvironment(ctx context.Context, env *Environment) error
	DeleteEnvironment(ctx context.Context, id uuid.UUID) error
	// LockEnvironment loads an environment and holds its row lock until the
	// transaction ends.
	LockEnvironment(ctx context.Context, id uuid.UUID) (*Environment, error)

	CreateIdentity(ctx context.Context, identity *Identity) error
	DeleteIdentity(ctx context.Context, id uuid.UUID) error

	CreateFeature(ctx context.Context, feature *Feature) error
	UpdateFeature(ctx context.Context, feature *Feature) error
	DeleteFeature(ctx context.Context, id uuid.UUID) error
	// LockFeature loads a feature and holds its row lock until the transaction ends.
	LockFeature(ctx context.Context, id uuid.UUID) (*Feature, error)

	// CreateFeatureState inserts the state row only; its Value field is ignored.
	CreateFeatureState(ctx context.Context, state *FeatureState) error
	// UpdateFeatureState persists the Enabled flag.
	UpdateFeatureState(ctx context.Context, state *FeatureState) error
	DeleteFeatureState(ctx context.Context, id uuid.UUID) error
	// DeleteEnvironmentStates removes the states of an environment whose
	// feature belongs to projectID, overrides included.
	DeleteEnvironmentStates(ctx context.Context, environmentID, projectID uuid.UUID) (int64, error)
	// DeleteFeatureStates removes the states of a feature held in any
	// environment of projectID, overrides included.
	DeleteFeatureStates(ctx context.Context, featureID, projectID uuid.UUID) (int64, error)

	// CreateFeatureStateValue returns ErrConflict if the state already owns a value.
	CreateFeatureStateValue(ctx context.Context, v *FeatureStateValue) error
	UpdateFeatureStateValue(ctx context.Context, v *FeatureStateValue) error
}
