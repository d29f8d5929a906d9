package flags

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/value"
)

// Event is an inbound mutation handled by Service.Handle.
type Event interface {
	eventName() string
}

// EntityKind names the entities that can be moved between projects.
type EntityKind string

const (
	EntityFeature     EntityKind = "feature"
	EntityEnvironment EntityKind = "environment"
)

type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

// ProjectReassigned moves a feature or an environment. OldProjectID must match
// the entity's current project, otherwise Handle fails with ErrConflict.
type ProjectReassigned struct {
	Entity       EntityRef
	OldProjectID uuid.UUID
	NewProjectID uuid.UUID
}

type FeatureCreated struct {
	Input CreateFeatureInput
}

type EnvironmentCreated struct {
	Input CreateEnvironmentInput
}

// OverrideRequested creates an identity override. A nil Value inherits the
// environment default value.
type OverrideRequested struct {
	FeatureID  uuid.UUID
	IdentityID uuid.UUID
	Enabled    bool
	Value      any
}

func (ProjectReassigned) eventName() string  { return "project_reassigned" }
func (FeatureCreated) eventName() string     { return "feature_created" }
func (EnvironmentCreated) eventName() string { return "environment_created" }
func (OverrideRequested) eventName() string  { return "override_requested" }

// Handle applies an inbound event. Each event runs in its own transaction
// together with the cascade it triggers.
func (s *Service) Handle(ctx context.Context, ev Event) error {
	var err error
	switch e := ev.(type) {
	case ProjectReassigned:
		err = s.handleReassigned(ctx, e)
	case *ProjectReassigned:
		err = s.handleReassigned(ctx, *e)
	case FeatureCreated:
		_, err = s.CreateFeature(ctx, e.Input)
	case *FeatureCreated:
		_, err = s.CreateFeature(ctx, e.Input)
	case EnvironmentCreated:
		_, err = s.CreateEnvironment(ctx, e.Input)
	case *EnvironmentCreated:
		_, err = s.CreateEnvironment(ctx, e.Input)
	case OverrideRequested:
		_, err = s.RequestOverride(ctx, e.FeatureID, e.IdentityID, overrideInput(e))
	case *OverrideRequested:
		_, err = s.RequestOverride(ctx, e.FeatureID, e.IdentityID, overrideInput(*e))
	default:
		return invalid(fmt.Sprintf("unsupported event %T", ev))
	}
	if err != nil {
		return err
	}
	s.log.DebugContext(ctx, "event handled", logger.Event(ev.eventName()))
	return nil
}

func (s *Service) handleReassigned(ctx context.Context, e ProjectReassigned) error {
	if e.NewProjectID == uuid.Nil {
		return invalid("new project is required")
	}
	expected := uuid.NullUUID{UUID: e.OldProjectID, Valid: true}
	target := e.NewProjectID

	switch e.Entity.Kind {
	case EntityFeature:
		_, err := s.updateFeature(ctx, e.Entity.ID, UpdateFeatureInput{ProjectID: &target}, expected)
		return err
	case EntityEnvironment:
		_, err := s.updateEnvironment(ctx, e.Entity.ID, UpdateEnvironmentInput{ProjectID: &target}, expected)
		return err
	default:
		return invalid(fmt.Sprintf("entity kind %q cannot be reassigned", e.Entity.Kind))
	}
}

func overrideInput(e OverrideRequested) OverrideInput {
	in := OverrideInput{Enabled: e.Enabled}
	if e.Value != nil {
		v := value.From(e.Value)
		in.Value = &v
	}
	return in
}
