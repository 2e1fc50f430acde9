// Package postgres implements the PostgreSQL persistence layer for enrollments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alem-hub/study-hours/internal/domain/shared"
)

// ErrMigrationFailed wraps every error returned by Migrator.Migrate.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// ══════════════════════════════════════════════════════════════════════════════
// POOL
// ══════════════════════════════════════════════════════════════════════════════

// PoolOptions tunes the pool built from a database URL. Zero fields keep
// whatever the URL or pgx sets.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolOptions returns the pool settings used when config is silent.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

func setIfPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// ParsePoolConfig parses databaseURL and applies opts on top.
func ParsePoolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}

	setIfPositive(&cfg.MaxConns, opts.MaxConns)
	setIfPositive(&cfg.MinConns, opts.MinConns)
	setIfPositive(&cfg.MaxConnLifetime, opts.MaxConnLifetime)
	setIfPositive(&cfg.MaxConnIdleTime, opts.MaxConnIdleTime)
	setIfPositive(&cfg.HealthCheckPeriod, opts.HealthCheckPeriod)
	return cfg, nil
}

// Connection is the service's pgx pool. It satisfies Querier, so a
// StudentRepository can run on the pool or inside WithTx.
type Connection struct {
	*pgxpool.Pool
}

// NewConnectionFromURL opens a pool for databaseURL and pings it once.
func NewConnectionFromURL(ctx context.Context, databaseURL string, opts PoolOptions) (*Connection, error) {
	cfg, err := ParsePoolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Connection{Pool: pool}, nil
}

// WithTx runs fn in a read-committed transaction, committing when fn
// returns nil and rolling back otherwise, including on panic.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, c.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// Querier is the subset of *pgxpool.Pool and pgx.Tx the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*Connection)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// constraintErrors maps schema constraint names to domain errors.
var constraintErrors = map[string]error{
	"students_pkey":          shared.ErrStudentAlreadyExists,
	"valid_category":         shared.ErrInvalidCategory,
	"display_name_not_blank": shared.ErrInvalidDisplayName,
}

// domainError translates a constraint violation into a domain error. It
// returns nil for anything else.
func domainError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
		return mapped
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return shared.ErrStudentAlreadyExists
	case codeCheckViolation:
		return shared.ErrInvalidCategory
	}
	return nil
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
