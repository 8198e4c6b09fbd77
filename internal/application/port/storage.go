package port

import "context"

// TransactionManager runs fn within a storage transaction, reusing an
// enclosing transaction found on ctx when one is already present (so that
// nested WithTransaction calls compose into a single commit/rollback unit).
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// WithSavepoint runs fn within a nested savepoint inside the current
	// transaction on ctx; it is an error to call it without an enclosing
	// transaction. Used for the one-savepoint-per-row discipline in the
	// ingestion pipeline.
	WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
