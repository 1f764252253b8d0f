package sqlutil

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Run executes fn inside a *sqlx.Tx.
// If fn returns an error the tx rolls back, else it commits.
func Run(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil) // BEGIN
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback() // ROLLBACK
		return err
	}
	return tx.Commit() // COMMIT
}
