package postgres

import (
	"context"
	"database/sql"
)

// runInTx starts a transaction and runs fn. A nil return commits, any
// error rolls back. Partial application of multi-row mutations is
// structurally impossible for callers.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
