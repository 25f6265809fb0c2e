package database

import (
	"context"
	"fmt"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cfg "github.com/quickbite/food-ordering-app/backend/config"
)

const defaultPingTimeout = 5 * time.Second

// Postgres wraps the pgx connection pool together with the transactor used
// by repositories to compose transactional units of work.
type Postgres struct {
	Pool       *pgxpool.Pool
	DBGetter   tx.DBGetter
	Transactor *tx.Transactor
}

// Option configures the connection pool.
type Option func(*pgxpool.Config)

// MaxPoolSize sets the maximum number of pooled connections.
func MaxPoolSize(size int32) Option {
	return func(c *pgxpool.Config) {
		c.MaxConns = size
	}
}

// ConnTimeout sets the per-connection dial timeout in seconds.
func ConnTimeout(seconds int) Option {
	return func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = time.Duration(seconds) * time.Second
	}
}

// HealthCheckPeriod sets how often idle pooled connections are checked,
// in seconds.
func HealthCheckPeriod(seconds int) Option {
	return func(c *pgxpool.Config) {
		c.HealthCheckPeriod = time.Duration(seconds) * time.Second
	}
}

// Isolation sets the session default transaction isolation level. Row-level
// FOR UPDATE locks inside the payment commit do the heavy lifting; the
// session default covers every other transactional path.
func Isolation(level pgx.TxIsoLevel) Option {
	return func(c *pgxpool.Config) {
		c.ConnConfig.RuntimeParams["default_transaction_isolation"] = string(level)
	}
}

// New creates the connection pool and the transactor bound to it.
func New(config *cfg.Config, opts ...Option) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DB.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	transactor, dbGetter := tx.NewTransactorFromPool(pool)

	return &Postgres{
		Pool:       pool,
		DBGetter:   dbGetter,
		Transactor: transactor,
	}, nil
}

// Ping reports store liveness for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
