package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommandTag is the subset of pgconn.CommandTag callers use.
type CommandTag interface {
	RowsAffected() int64
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Querier is implemented by both the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is the database handle consumed by the SQL store. It is satisfied by
// PoolAdapter in production and by fakes in tests.
type DB interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// PoolAdapter adapts a pgx pool to DB.
type PoolAdapter struct {
	pool *pgxpool.Pool
}

func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

func (p *PoolAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p *PoolAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *PoolAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *PoolAdapter) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
