package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors for Postgres constraint violations. Repositories tag driver
// errors with these so services can map them to domain errors without
// inspecting SQLSTATE codes.
var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// WrapError tags constraint violations and returns every other error
// unchanged.
func WrapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w (%s)", ErrUniqueViolation, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w (%s)", ErrForeignKeyViolation, pqErr.Constraint)
		}
	}
	return err
}
