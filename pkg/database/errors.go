package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// IsUniqueViolation reconoce violaciones de unicidad de Postgres y SQLite
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// modernc.org/sqlite: SQLITE_CONSTRAINT_UNIQUE y SQLITE_CONSTRAINT_PRIMARYKEY
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		if c := coded.Code(); c == 2067 || c == 1555 {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
