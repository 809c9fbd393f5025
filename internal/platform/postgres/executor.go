package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phrazzld/pgunit/config"
	"github.com/phrazzld/pgunit/internal/projectroot"
)

// PingTimeout bounds the connectivity check performed by Open.
const PingTimeout = 5 * time.Second

// Result is the outcome of Execute.
type Result struct {
	Rows         []map[string]any
	RowsAffected int64
}

// Value returns the rows when the statement produced any, otherwise the
// number of affected rows.
func (r Result) Value() any {
	if len(r.Rows) > 0 {
		return r.Rows
	}
	return r.RowsAffected
}

// Executor runs statements over a connection pool.
type Executor struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	closeOnce sync.Once
}

// Open connects to the database described by cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := cfg.URL()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", MapError(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed for %s: %w",
			projectroot.MaskSensitiveValue(dsn), MapError(err))
	}

	logger.DebugContext(ctx, "database session opened",
		"url", projectroot.MaskSensitiveValue(dsn))

	return &Executor{pool: pool, logger: logger}, nil
}

// Execute runs a single statement with optional parameters and collects
// any returned rows.
func (e *Executor) Execute(ctx context.Context, sql string, args ...any) (Result, error) {
	e.logger.DebugContext(ctx, "executing statement", "sql", sql, "args", args)

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return Result{}, e.fail(ctx, sql, err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return Result{}, e.fail(ctx, sql, err)
	}

	return Result{
		Rows:         collected,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// ExecBatch sends a multi-statement script over the simple query protocol.
// PostgreSQL runs the statements in order but not as one transaction unless
// the script says so; a failure stops the batch where it occurred.
func (e *Executor) ExecBatch(ctx context.Context, sql string) error {
	e.logger.DebugContext(ctx, "executing batch", "sql", sql)

	if _, err := e.pool.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol); err != nil {
		return e.fail(ctx, sql, err)
	}
	return nil
}

// Close closes the pool. Calling it more than once is a no-op.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.pool.Close()
		e.logger.Debug("database session closed")
	})
}

func (e *Executor) fail(ctx context.Context, sql string, err error) error {
	mapped := MapError(err)
	e.logger.DebugContext(ctx, "statement failed", "sql", sql, "error", mapped)
	return mapped
}
