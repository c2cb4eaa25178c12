// Package repository implements all database queries for the lecture
// registration system. It uses pgx directly (no ORM) for transparency and
// performance. Every query takes an explicit DB scope so the same method can
// run inside a caller-owned transaction or directly against the pool.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrLectureNotFound is returned when the referenced lecture does not exist.
var ErrLectureNotFound = errors.New("lecture not found")

// ErrLectureFull is returned when a lecture has no remaining capacity.
var ErrLectureFull = errors.New("lecture is fully booked")

// ErrAlreadyRegistered is returned when a user holds a registration for the
// lecture already.
var ErrAlreadyRegistered = errors.New("user already registered for this lecture")

// ErrAdmissionConflict is returned when the store rejects the transaction with
// a serialization conflict. The caller may safely retry the same request.
var ErrAdmissionConflict = errors.New("admission conflict")

// ErrTimeout is returned when the admission transaction exceeds its time
// budget. The caller may safely retry the same request.
var ErrTimeout = errors.New("admission timed out")

// DB is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
// Methods that must participate in one atomic unit receive the same pgx.Tx;
// reads callable outside a transaction receive the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgreSQL error codes relevant to the admission protocol.
const (
	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
)

// IsSerializationFailure reports whether err is a storage-level conflict that
// invalidated the transaction's read set. Deadlocks are classified the same
// way: both resolve by retrying the whole transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgCodeSerializationFailure || pgErr.Code == pgCodeDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}
