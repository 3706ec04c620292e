package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// ErrUniqueViolation marks a write rejected by a unique or primary-key constraint.
var ErrUniqueViolation = errors.New("platform/db: unique violation")

// IsUniqueViolation reports whether err carries PostgreSQL error 23505.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrUniqueViolation) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Constraint returns the violated constraint name, if any.
func Constraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// Classify wraps unique violations with ErrUniqueViolation and leaves other errors untouched.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrUniqueViolation) {
		return err
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
