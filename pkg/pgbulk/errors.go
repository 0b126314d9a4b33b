package pgbulk

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for bulk upsert failures.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := bulk.Upsert(ctx, pool, rows, opts)
//	if errors.Is(err, pgbulk.ErrUnsupportedExpression) {
//	    // The merge condition used an operator with no SQL form
//	}
var (
	// ErrInvalidOptions indicates the provided options are invalid.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrUnsupportedExpression indicates the merge condition could not be
	// translated to SQL. Raised before any database work.
	ErrUnsupportedExpression = errors.New("unsupported expression")

	// ErrSchemaMismatch indicates table metadata could not be resolved or
	// does not describe an upsertable table.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrStagingFailed indicates creating or loading the staging table failed.
	ErrStagingFailed = errors.New("staging failed")

	// ErrMergeFailed indicates the merge statement failed.
	ErrMergeFailed = errors.New("merge failed")

	// ErrCommitFailed indicates the transaction could not be committed.
	ErrCommitFailed = errors.New("commit failed")

	// ErrInvalidInput indicates a row source could not be read or decoded.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")
)

// usagePatterns are fragments of cobra/pflag argument errors.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"required flag",
	"invalid argument",
	"flag needs an argument",
}

// OperationError reports the last phase a bulk upsert reached before it failed.
// It wraps the underlying cause, so errors.Is works against the sentinels above
// and against driver errors such as *pgconn.PgError.
type OperationError struct {
	Phase Phase
	Table string
	Err   error
}

func (e *OperationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("bulk upsert aborted in phase %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("bulk upsert into %s aborted in phase %s: %v", e.Table, e.Phase, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrUnsupportedExpression),
		errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrSchemaMismatch):
		return ExitSchemaMismatch
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrInvalidInput):
		return ExitInputError
	case errors.Is(err, ErrStagingFailed),
		errors.Is(err, ErrMergeFailed),
		errors.Is(err, ErrCommitFailed):
		return ExitExecutionFailed
	}

	errStr := err.Error()
	for _, pattern := range usagePatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
