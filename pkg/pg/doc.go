// Package pg bootstraps the PostgreSQL layer used by the feature store.
//
// It wraps pgx/v5 connection pooling, goose migrations, health checks and
// transaction handling behind a handful of functions:
//
//   - Config is populated from environment variables (github.com/caarlos0/env)
//     and controls pool limits, retry behaviour and migration settings.
//
//   - Connect opens a *pgxpool.Pool, retrying until the database answers a ping.
//
//   - Migrate applies goose migrations either from a directory on disk or from
//     an embedded file system passed with WithMigrationsFS.
//
//   - InTx runs a function inside a transaction with the requested isolation
//     level and retries it when PostgreSQL reports a serialization failure or a
//     deadlock.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log, pg.WithMigrationsFS(migrations.FS)); err != nil {
//		return err
//	}
//
//	err = pg.InTx(ctx, pool, pg.TxOptions{IsoLevel: pgx.RepeatableRead, Attempts: 3}, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "UPDATE features SET default_enabled = true WHERE id = $1", id)
//		return err
//	})
//
// # Error Handling
//
// Helpers such as IsDuplicateKeyError, IsForeignKeyViolationError and
// IsRetryableTxError classify errors returned by pgx so that callers can
// translate them into domain errors without depending on SQLSTATE codes.
package pg
