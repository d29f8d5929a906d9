package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions controls InTx.
type TxOptions struct {
	IsoLevel   pgx.TxIsoLevel
	AccessMode pgx.TxAccessMode

	// Attempts is the total number of runs, including the first one. Zero means one.
	Attempts uint64
	// RetryInterval is the pause between runs. Zero means 20ms.
	RetryInterval time.Duration
}

const defaultTxRetryInterval = 20 * time.Millisecond

// TxOptionsFromConfig returns write-transaction options using cfg's retry settings.
func TxOptionsFromConfig(cfg Config, iso pgx.TxIsoLevel) TxOptions {
	return TxOptions{
		IsoLevel:      iso,
		AccessMode:    pgx.ReadWrite,
		Attempts:      cfg.TxAttempts,
		RetryInterval: cfg.TxRetryInterval,
	}
}

// InTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise. Serialization failures and deadlocks
// re-run fn from scratch until Attempts is exhausted; every other error is
// returned to the caller as is.
func InTx(ctx context.Context, db TxBeginner, opts TxOptions, fn func(pgx.Tx) error) error {
	attempts := max(opts.Attempts, 1)
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultTxRetryInterval
	}

	txOpts := pgx.TxOptions{IsoLevel: opts.IsoLevel, AccessMode: opts.AccessMode}
	backoff := retry.WithMaxRetries(attempts-1, retry.NewConstant(interval))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := pgx.BeginTxFunc(ctx, db, txOpts, fn)
		if IsRetryableTxError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
