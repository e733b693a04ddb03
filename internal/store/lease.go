package store

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease tries once to take the advisory lease on key for owner.
// An expired lease held by anyone is taken over. It reports whether owner
// now holds the lease.
func (s *Store) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := s.guard(ctx, ""); err != nil {
		return false, err
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify("", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM advisory_locks WHERE key = ? AND expires_at <= ?
	`, key, now.UnixMilli())
	if err != nil {
		return false, classify("", fmt.Errorf("expire lease: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO advisory_locks (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, owner, now.Add(ttl).UnixMilli())
	if err != nil {
		return false, classify("", fmt.Errorf("insert lease: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, classify("", fmt.Errorf("commit: %w", err))
	}
	return n == 1, nil
}

// ReleaseLease drops owner's lease on key. Releasing a lease that has
// already expired or been taken over is not an error.
func (s *Store) ReleaseLease(ctx context.Context, key, owner string) error {
	if err := s.guard(ctx, ""); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM advisory_locks WHERE key = ? AND owner = ?
	`, key, owner)
	if err != nil {
		return classify("", fmt.Errorf("release lease: %w", err))
	}
	return nil
}
