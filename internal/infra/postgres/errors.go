package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrCodeUniqueViolation = "23505"

// isConstraintViolation は指定した制約の unique_violation かどうかを判定します
func isConstraintViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeUniqueViolation && pgErr.ConstraintName == constraint
	}
	return false
}
