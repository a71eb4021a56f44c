package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrDuplicateID is returned when an insert reuses an existing id.
	ErrDuplicateID = errors.New("id already exists")
	// ErrScheduleGone is returned when a job references a deleted schedule.
	ErrScheduleGone = errors.New("schedule no longer exists")
)

// classifyPgError maps well-known postgres error codes onto repository
// sentinels so callers can branch with errors.Is.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return errors.Join(ErrDuplicateID, err)
	case pgerrcode.ForeignKeyViolation:
		return errors.Join(ErrScheduleGone, err)
	default:
		return err
	}
}
