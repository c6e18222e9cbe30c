package errors

// Postgres helpers used by the optional result mirror

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the mirror cares about
const (
	pgErrUniqueViolation     = "23505"
	pgErrNotNullViolation    = "23502"
	pgErrCheckViolation      = "23514"
	pgErrInvalidTextRepr     = "22P02"
	pgErrSerializationFail   = "40001"
	pgErrDeadlockDetected    = "40P01"
	pgErrLockNotAvailable    = "55P03"
	pgErrReadOnlyTransaction = "25006"
	pgErrCannotConnectNow    = "57P03"
	pgErrUndefinedTable      = "42P01"
)

// ExtractPgError returns the root *pgconn.PgError, if any
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(Root(err), &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether err is a Postgres error with the given SQLSTATE
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsDuplicateKey reports a unique constraint violation
func IsDuplicateKey(err error) bool { return IsSQLState(err, pgErrUniqueViolation) }

// IsUndefinedTable reports a query against a table that does not exist
func IsUndefinedTable(err error) bool { return IsSQLState(err, pgErrUndefinedTable) }

// DBErrorCode maps a Postgres error to an ErrorCode; ok is false for non-Postgres errors
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgErrNotNullViolation, pgErrCheckViolation:
		return ErrorCodeValidation, true
	case pgErrInvalidTextRepr:
		return ErrorCodeInvalidArgument, true
	case pgErrReadOnlyTransaction, pgErrCannotConnectNow:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with its mapped code; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// IsRetryable reports whether a database error is transient contention.
// Local cancellation and deadlines are never retryable here.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	root := Root(err)
	var pgErr *pgconn.PgError
	if stderrs.As(root, &pgErr) {
		switch pgErr.Code {
		case pgErrSerializationFail, pgErrDeadlockDetected, pgErrLockNotAvailable, pgErrCannotConnectNow:
			return true
		}
		return false
	}
	s := strings.ToLower(root.Error())
	return strings.Contains(s, "commit unexpectedly resulted in rollback") ||
		strings.Contains(s, "deadlock detected") ||
		strings.Contains(s, "terminating connection due to administrator command")
}
