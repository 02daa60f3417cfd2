package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
)

const sqliteConstraint = 19

// ErrConstraint marks a write rejected by a table constraint. All cache writes are upserts,
// so seeing it means the caller handed over a malformed row.
var ErrConstraint = errors.New("cache constraint violation")

// nowMillis is the clock used for cache-local timestamps.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Extended result codes keep the primary code in the low byte.
		return sqliteErr.Code()&0xff == sqliteConstraint
	}
	return false
}

func wrapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintError(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withTx runs fn inside a transaction, rolling back on error.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullableValue[T any](value *T) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullIntPtr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func nullSmallIntPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func clampCounter(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
