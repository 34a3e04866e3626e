package database

import (
	"database/sql"
	"errors"
)

// isNoRows reports whether err is sql.ErrNoRows, the signal repositories use
// to distinguish "not found" (a benign, expected outcome throughout the
// pipeline) from a genuine database failure.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
