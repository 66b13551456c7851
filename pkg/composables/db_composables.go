package composables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/constants"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/repo"
)

var ErrNoPool = errors.New("no database pool found in context")

func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, constants.TxKey, tx)
}

// UseTx returns the transaction in ctx, or the pool when there is none so
// reads outside a unit of work still go through one interface.
func UseTx(ctx context.Context) (repo.Tx, error) {
	if tx, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok && tx != nil {
		return tx, nil
	}
	return UsePool(ctx)
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

// InTx runs fn in a new transaction, or in the one already in ctx. A scan
// batch and the master writes it triggers therefore commit together.
// A panic in fn rolls the transaction back before propagating.
func InTx(ctx context.Context, fn func(context.Context) error) (err error) {
	if existing, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok && existing != nil {
		return fn(ctx)
	}

	pool, err := UsePool(ctx)
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	rollback := func(cause any) {
		if rErr := tx.Rollback(context.WithoutCancel(ctx)); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			UseLogger(ctx).WithFields(logrus.Fields{"cause": cause, "error": rErr.Error()}).Warn("rollback failed")
			if e, ok := cause.(error); ok {
				err = errors.Join(e, rErr)
			}
		}
	}
	defer func() {
		if r := recover(); r != nil {
			rollback(r)
			panic(r)
		}
	}()

	if err = fn(WithTx(ctx, tx)); err != nil {
		rollback(err)
		return err
	}
	return tx.Commit(ctx)
}

func InTxResult[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := InTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}
