package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/mealplan/internal/plan"
)

// ErrNotFound is wrapped by lookups that find no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is wrapped by inserts that hit a uniqueness constraint.
var ErrDuplicate = errors.New("already exists")

var errClosed = errors.New("store is closed")

// guard fails fast when the store is closed or ctx is already done.
func (s *Store) guard(ctx context.Context, planID string) error {
	if err := s.ping(ctx); err != nil {
		return classify(planID, err)
	}
	return nil
}

// classify maps driver failures that are worth retrying onto
// STORE_UNAVAILABLE. Other errors are returned unchanged.
func classify(planID string, err error) error {
	if err == nil {
		return nil
	}

	var pe *plan.Error
	if errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, errClosed) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return plan.NewStoreUnavailable(planID, err)
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrProtocol:
			return plan.NewStoreUnavailable(planID, err)
		}
	}

	if err.Error() == "sql: database is closed" {
		return plan.NewStoreUnavailable(planID, err)
	}

	return err
}

// isConstraint reports whether err is a SQLite uniqueness or primary key
// violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrConstraint
}
