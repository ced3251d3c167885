package composables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/constants"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/repo"
)

var (
	ErrNoTx   = errors.New("no transaction found in context")
	ErrNoPool = errors.New("no database pool found in context")
)

func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, constants.TxKey, tx)
}

// UseTx returns the transaction from the context, falling back to the pool.
func UseTx(ctx context.Context) (repo.Tx, error) {
	tx := ctx.Value(constants.TxKey)
	if tx == nil {
		return UsePool(ctx)
	}
	return tx.(repo.Tx), nil
}

func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, constants.PoolKey, pool)
}

func UsePool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, ok := ctx.Value(constants.PoolKey).(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, ErrNoPool
	}
	return pool, nil
}

// BeginTx begins a transaction on the pool. Callers own Commit/Rollback.
func BeginTx(ctx context.Context) (pgx.Tx, error) {
	pool, err := UsePool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.Begin(ctx)
}

// InTx runs fn in a transaction. When the context already carries a pgx.Tx the
// work runs inside a savepoint of that transaction, otherwise a new
// transaction is started on the pool.
func InTx(ctx context.Context, fn func(context.Context) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if existing, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok && existing != nil {
		tx, err = existing.Begin(ctx)
	} else {
		tx, err = BeginTx(ctx)
	}
	if err != nil {
		return err
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		if rErr := tx.Rollback(context.WithoutCancel(ctx)); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
