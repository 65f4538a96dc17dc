package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the postgres error code for a unique constraint
// failure.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a postgres unique constraint
// failure. Repositories map it to repository.ErrDuplicate so the service
// layer can tell a replayed payment from a broken write.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
