package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type txState struct {
	tx    pgx.Tx
	hooks []func(context.Context)
}

// WithTx executes fn within a ReadCommitted transaction carried by the context.
// Repositories resolve their connection through Conn, so every write issued by
// fn, across packages, joins the same transaction. A nested call joins the
// outer transaction instead of opening a new one.
//
// ReadCommitted keeps concurrent `col = col + $1` updates on one row from
// failing with serialization errors; rows that need a stable read use FOR UPDATE.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context) error) error {
	if state := stateFrom(ctx); state != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	state := &txState{tx: tx}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	for _, hook := range state.hooks {
		hook(ctx)
	}

	return nil
}

// Conn returns the transaction bound to ctx, or the pool when there is none.
func Conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if state := stateFrom(ctx); state != nil {
		return state.tx
	}
	return pool
}

// AfterCommit defers fn until the transaction bound to ctx commits. Hooks of a
// rolled back transaction are dropped. Outside a transaction fn runs at once.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if state := stateFrom(ctx); state != nil {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn(ctx)
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	return stateFrom(ctx) != nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func stateFrom(ctx context.Context) *txState {
	state, _ := ctx.Value(txKey{}).(*txState)
	return state
}
