// Package flags keeps feature states consistent and resolves them.
//
// An organisation owns projects; a project owns features and environments.
// Every (feature, environment) pair of the same project has exactly one
// environment default FeatureState, and an identity of that environment may
// hold one override per feature. Each state owns exactly one FeatureStateValue.
//
// Creating a feature or an environment, or moving one to another project, runs
// a cascade in the same store transaction as the write: states of the old
// project are deleted, then defaults for the current project are materialized.
// The feature cascade overwrites the Enabled flag of existing defaults with
// DefaultEnabled, the environment cascade only creates missing ones.
//
// Service is the entry point used by transports:
//
//	svc := flags.NewService(memstore.New(), flags.WithLogger(log))
//	org, _ := svc.CreateOrganisation(ctx, "Acme")
//	project, _ := svc.CreateProject(ctx, flags.CreateProjectInput{OrganisationID: org.ID, Name: "Mobile"})
//	feature, _ := svc.CreateFeature(ctx, flags.CreateFeatureInput{ProjectID: project.ID, Name: "dark_mode"})
//	env, _ := svc.CreateEnvironment(ctx, flags.CreateEnvironmentInput{ProjectID: project.ID, Name: "Prod"})
//	state, _ := svc.GetEffectiveValue(ctx, feature.ID, env.ID, uuid.NullUUID{})
//
// The engine functions (CreateOrGetDefaultState, CreateOverrideState,
// CascadeFeatureSaved and friends) operate on an open Tx and can be composed by
// other callers that manage their own transactions.
//
// Errors are classified with errors.Is against ErrNotFound, ErrConflict,
// ErrInvalidAssociation, ErrValidation and ErrUnavailable.
package flags
