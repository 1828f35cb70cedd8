package db

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrStoreUnavailable is returned when the store cannot be opened or a
	// transaction fails for a reason other than capacity.
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrQuotaExceeded is returned when the database reports it is out of space.
	ErrQuotaExceeded = errors.New("durable store quota exceeded")
)

// IsQuotaExceeded reports whether err is a capacity failure from either
// supported driver.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_FULL
	}

	// Class 53: insufficient resources (disk_full, out_of_memory, ...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "53"
	}

	return false
}
