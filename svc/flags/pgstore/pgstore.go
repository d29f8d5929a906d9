package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/flagkit/pkg/pg"
	"github.com/dmitrymomot/flagkit/svc/flags"
)

// Migrations holds the schema, applied with Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const migrationsDir = "migrations"

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log pg.MigrateLogger) error {
	cfg.MigrationsPath = migrationsDir
	return pg.Migrate(ctx, pool, cfg, log, pg.WithMigrationsFS(Migrations))
}

// Store is a PostgreSQL flags.Store.
//
// Write transactions run at REPEATABLE READ. Mutations lock the environment
// and feature rows they depend on with SELECT ... FOR UPDATE and bump
// lock_version on their projects, so concurrent cascades on the same project
// serialize; a transaction that loses a race is re-run by pg.InTx. Reads run in REPEATABLE READ READ ONLY
// transactions and see one snapshot.
type Store struct {
	db    pg.TxBeginner
	write pg.TxOptions
	read  pg.TxOptions
}

var _ flags.Store = (*Store)(nil)

// New takes the transaction retry settings from cfg.
func New(db pg.TxBeginner, cfg pg.Config) *Store {
	return &Store{
		db:    db,
		write: pg.TxOptionsFromConfig(cfg, pgx.RepeatableRead),
		read: pg.TxOptions{
			IsoLevel:   pgx.RepeatableRead,
			AccessMode: pgx.ReadOnly,
			Attempts:   1,
		},
	}
}

func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, r flags.Reader) error) error {
	err := pg.InTx(ctx, s.db, s.read, func(tx pgx.Tx) error {
		return fn(ctx, &reader{q: tx})
	})
	return txError(err)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx flags.Tx) error) error {
	err := pg.InTx(ctx, s.db, s.write, func(dbtx pgx.Tx) error {
		return fn(ctx, &tx{reader{q: dbtx}})
	})
	return txError(err)
}

// txError classifies what escaped the transaction: domain errors and context
// cancellation pass through, a serialization failure that survived every
// attempt is a conflict, everything else is an infrastructure failure.
func txError(err error) error {
	switch {
	case err == nil:
		return nil
	case flags.IsDomainError(err), errors.Is(err, flags.ErrUnavailable):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case pg.IsRetryableTxError(err):
		return errors.Join(flags.ErrConflict, err)
	}
	return errors.Join(flags.ErrUnavailable, err)
}

// Constraints whose violation is an input error rather than a conflict.
var validationConstraints = map[string]string{
	"projects_organisation_name_key":   "project name already exists in this organisation",
	"features_project_folded_name_key": "feature name already exists in this project",
}

// mapError translates a statement error into the flags error taxonomy.
// Serialization failures and deadlocks are returned unchanged so the
// transaction is re-run.
func mapError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case pg.IsNotFoundError(err):
		return errors.Join(flags.ErrNotFound, fmt.Errorf("%s not found", what))
	case pg.IsRetryableTxError(err):
		return err
	case pg.IsDuplicateKeyError(err):
		if msg, ok := validationConstraints[pg.ConstraintName(err)]; ok {
			return errors.Join(flags.ErrValidation, errors.New(msg), err)
		}
		return errors.Join(flags.ErrConflict, fmt.Errorf("%s already exists", what), err)
	case pg.IsForeignKeyViolationError(err):
		return errors.Join(flags.ErrValidation, fmt.Errorf("%s references a missing record", what), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return errors.Join(flags.ErrUnavailable, fmt.Errorf("%s: %w", what, err))
}
