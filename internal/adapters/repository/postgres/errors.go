package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/payday/internal/adapters/repository"
)

const uniqueViolation = "23505"

// mapError translates driver errors into repository error kinds.
func mapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, repository.ErrNotFound)
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%s: %w", msg, repository.ErrTxDone)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", msg, repository.ErrDuplicatePayout, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
