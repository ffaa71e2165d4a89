package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Overridden in tests.
var (
	parsePGConfig = pgxpool.ParseConfig
	newPGPool     = pgxpool.NewWithConfig
	pingPGPool    = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
	closePGPool   = func(pool *pgxpool.Pool) { pool.Close() }
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB opens a pool sized by maxConns and minConns. The relationship
// store holds a connection for the length of each create or accept
// transaction, so maxConns bounds concurrent friend-request writes.
func NewPostgresDB(dsn string, maxConns, minConns int32) (*PostgresDB, error) {
	config, err := parsePGConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := newPGPool(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pingPGPool(ctx, pool); err != nil {
		closePGPool(pool)
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		closePGPool(db.Pool)
	}
}

func (db *PostgresDB) Health(ctx context.Context) error {
	return pingPGPool(ctx, db.Pool)
}
