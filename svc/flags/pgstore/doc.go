// Package pgstore implements flags.Store on PostgreSQL with pgx/v5.
//
// The schema lives in the embedded migrations directory and is applied with
// Migrate (goose). Invariants are enforced by the database as well as by the
// engine: partial unique indexes allow one default state per (feature,
// environment) and one override per (feature, environment, identity), feature
// names are unique per project on their flags.FoldName form, and foreign keys cascade
// deletes from organisations down to feature state values.
//
// Usage:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//	svc := flags.NewService(pgstore.New(pool, cfg))
//
// PostgreSQL errors are mapped to the flags sentinels: missing rows to
// ErrNotFound, duplicate project or feature names and broken references to
// ErrValidation, other unique violations to ErrConflict and connection
// failures to ErrUnavailable.
package pgstore
