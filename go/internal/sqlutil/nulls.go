// Package sqlutil maps optional model fields to nullable database/sql columns.
package sqlutil

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Nullable stores a nil v as NULL. T must be a database/sql value type
// (string, int64, float64, bool, []byte or time.Time).
func Nullable[T any](v *T) sql.Null[T] {
	if v == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *v, Valid: true}
}

// Optional reads NULL back as nil.
func Optional[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	return &n.V
}

// NullUUID stores an optional id, such as a player's user id.
func NullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// OptionalUUID reads a nullable id column.
func OptionalUUID(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	return &n.UUID
}

// Timestamp reads a nullable lifecycle timestamp (started_at, finished_at,
// sent_at) in UTC.
func Timestamp(n sql.Null[time.Time]) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.V.UTC()
	return &t
}
