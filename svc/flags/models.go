package flags

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/value"
)

// FeatureType distinguishes on/off flags from remote config values.
type FeatureType string

const (
	FeatureTypeFlag   FeatureType = "FLAG"
	FeatureTypeConfig FeatureType = "CONFIG"
)

func (t FeatureType) Valid() bool {
	return t == FeatureTypeFlag || t == FeatureTypeConfig
}

type Organisation struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Project names are unique within an organisation (case-sensitive).
type Project struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Environment is a deployment context within a project. APIKey is the opaque
// routing key clients use to address it.
type Environment struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	ProjectID uuid.UUID `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is an end user or session scoped to one environment.
// Identifiers are not required to be unique.
type Identity struct {
	ID            uuid.UUID `json:"id"`
	Identifier    string    `json:"identifier"`
	EnvironmentID uuid.UUID `json:"environment_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Feature names are unique within a project, compared by FoldName.
type Feature struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	ProjectID      uuid.UUID   `json:"project_id"`
	InitialValue   *string     `json:"initial_value"`
	DefaultEnabled bool        `json:"default_enabled"`
	Type           FeatureType `json:"type"`
	CreatedAt      time.Time   `json:"created_at"`
}

// FeatureState is the enabled flag and value of a feature in an environment.
// A state without an identity is the environment default; a state with an
// identity overrides the default for that identity.
type FeatureState struct {
	ID            uuid.UUID          `json:"id"`
	FeatureID     uuid.UUID          `json:"feature_id"`
	EnvironmentID uuid.UUID          `json:"environment_id"`
	IdentityID    uuid.NullUUID      `json:"identity_id"`
	Enabled       bool               `json:"enabled"`
	Value         *FeatureStateValue `json:"feature_state_value"`
}

// IsOverride reports whether the state belongs to an identity.
func (s *FeatureState) IsOverride() bool {
	return s.IdentityID.Valid
}

// Key returns the (feature, environment, identity) triple of the state.
func (s *FeatureState) Key() StateKey {
	return StateKey{FeatureID: s.FeatureID, EnvironmentID: s.EnvironmentID, IdentityID: s.IdentityID}
}

// FeatureStateValue is owned 1:1 by a FeatureState.
type FeatureStateValue struct {
	ID             uuid.UUID   `json:"id"`
	FeatureStateID uuid.UUID   `json:"feature_state_id"`
	Value          value.Value `json:"value"`
}

// StateKey identifies at most one FeatureState.
type StateKey struct {
	FeatureID     uuid.UUID
	EnvironmentID uuid.UUID
	IdentityID    uuid.NullUUID
}

// DefaultKey is the key of the environment default state of a feature.
func DefaultKey(featureID, environmentID uuid.UUID) StateKey {
	return StateKey{FeatureID: featureID, EnvironmentID: environmentID}
}

// EffectiveState is one row of an evaluation answer.
type EffectiveState struct {
	Feature    *Feature      `json:"feature"`
	State      *FeatureState `json:"-"`
	Value      any           `json:"feature_state_value"`
	Enabled    bool          `json:"enabled"`
	Overridden bool          `json:"overridden"`
}

func newID() uuid.UUID {
	// v7 ids sort in creation order, which is the listing order of every relation.
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
