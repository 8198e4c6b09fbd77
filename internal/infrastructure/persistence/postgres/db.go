// Package postgres wraps a pgx connection pool with the tenant-aware
// transaction manager every application service depends on through
// port.TransactionManager. Adapted from the teacher's sql.DB wrapper,
// generalized from a single *sql.Tx parameter to a context-carried
// pgx.Tx so nested WithSavepoint calls can find the enclosing
// transaction without threading it through every call signature.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DB wraps a pgxpool.Pool with the application's transaction discipline.
type DB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// New opens a connection pool against cfg.DSN and verifies it with Ping.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	logger.Info("database connection established", zap.Int32("max_conns", poolCfg.MaxConns))
	return &DB{Pool: pool, logger: logger}, nil
}

// Close releases all pooled connections.
func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.Pool.Close()
}

// Querier is satisfied by both a pgxpool.Pool and a pgx.Tx; repository
// adapters accept it so the same query code runs whether or not a
// transaction is open on the context.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Querier returns the pgx.Tx carried on ctx if one is open, otherwise the
// pool itself. Repository adapters call this at the top of every method
// instead of holding a reference to either directly.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

// WithTransaction opens a transaction, stores it on ctx for Querier and
// WithSavepoint to find, and commits on a nil return or rolls back
// otherwise. Nested calls reuse the already-open transaction instead of
// starting a second one, so a service that itself calls another
// service's WithTransaction-wrapped method composes into one commit unit.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Error("failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}

// WithSavepoint runs fn within a nested savepoint inside the transaction
// already open on ctx. It is an error to call it without an enclosing
// WithTransaction.
func (db *DB) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return fmt.Errorf("postgres: WithSavepoint called outside a transaction")
	}

	savepoint := "sp_" + sanitizeSavepointName(name)
	if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("postgres: create savepoint %s: %w", savepoint, err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			db.logger.Error("failed to roll back to savepoint", zap.String("savepoint", savepoint), zap.Error(rbErr))
		}
		return err
	}

	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("postgres: release savepoint %s: %w", savepoint, err)
	}
	return nil
}

// sanitizeSavepointName keeps identifiers predictable since names are
// built from caller-supplied strings like "row_42".
func sanitizeSavepointName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "anon"
	}
	return string(out)
}

// WithTenant sets the `app.current_tenant` session GUC that row-level
// security policies key off of, for the duration of the transaction
// already open on ctx.
func WithTenant(ctx context.Context, db *DB, tenantID string) error {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return fmt.Errorf("postgres: WithTenant called outside a transaction")
	}
	_, err := tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID)
	return err
}
