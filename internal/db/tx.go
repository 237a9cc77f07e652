package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// TxManager starts transactions at a given isolation level and runs a function
// inside them. The transaction travels in the context so that repositories
// built on Querier participate transparently.
type TxManager interface {
	InTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(ctx context.Context) error) error
}

// InTx runs fn inside a transaction at the requested isolation level. The
// transaction is committed when fn returns nil and rolled back otherwise. A
// panic inside fn rolls back before repanicking.
func (c *Connection) InTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(ctx context.Context) error) error {
	tx, err := c.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
				slog.Error("failed to rollback transaction after panic", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			slog.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Querier returns the transaction bound to ctx, or the pool when ctx carries
// none.
func (c *Connection) Querier(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}
