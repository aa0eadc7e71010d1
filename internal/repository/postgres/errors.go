package postgres

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqUndefinedTable  = "42P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	return string(pqErr.Code)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
// An empty constraint matches any constraint.
func IsUniqueViolation(err error, constraint string) bool {
	if pqCode(err) != pqUniqueViolation {
		return false
	}
	if constraint == "" {
		return true
	}
	var pqErr *pq.Error
	errors.As(err, &pqErr)
	return pqErr.Constraint == constraint
}

// IsUndefinedTable reports whether err means the session_kv table is missing,
// which happens when the server starts with schema creation disabled.
func IsUndefinedTable(err error) bool {
	return pqCode(err) == pqUndefinedTable
}
