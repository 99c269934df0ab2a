package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type sessionKey struct{}

// sessionFrom returns the transaction carried by the context, or nil when no
// edit session is open.
func sessionFrom(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(sessionKey{}).(pgx.Tx)
	return tx
}

// WithEdit runs fn inside a transactional edit session.
//
// When the context already carries an open session the callback joins it and
// the outer caller stays responsible for commit or rollback. Otherwise a new
// transaction is opened, committed when fn succeeds, and rolled back when it
// fails or panics.
func (s *PostgresStore) WithEdit(ctx context.Context, fn func(ctx context.Context) error) error {
	if sessionFrom(ctx) != nil {
		// nested call inside a caller-managed session
		return fn(ctx)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open edit session: %w", err)
	}

	// rollback is a no-op after a successful commit; deferring it guarantees
	// teardown on every exit path including panics
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(context.WithValue(ctx, sessionKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit edit session: %w", err)
	}
	return nil
}
