package pgbulk

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Upsert committed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid options, configuration or merge condition
	ExitConnectionError = 11 // Failed to connect to database
	ExitInputError      = 12 // Row source could not be read or decoded
	ExitExecutionFailed = 13 // Staging, merge or commit failed
	ExitSchemaMismatch  = 14 // Target table missing or has no primary key
)

const (
	// DefaultExistingVar is the variable name bound to the row already stored in the target table.
	DefaultExistingVar = "existing"

	// DefaultIncomingVar is the variable name bound to the row proposed for insertion.
	DefaultIncomingVar = "incoming"

	// StagingTablePrefix prefixes every generated staging table name.
	StagingTablePrefix = "temp_"

	// TargetAlias is the alias given to the target table in the merge statement.
	// Predicate fields rooted at the existing variable render against it.
	TargetAlias = "target"

	// ExcludedAlias is PostgreSQL's name for the row proposed for insertion
	// inside an ON CONFLICT DO UPDATE clause.
	ExcludedAlias = "EXCLUDED"

	// DefaultRetryInitialDelay is the default initial delay before the first connect retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between connect retries.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of connect retries.
	DefaultRetryMaxAttempts = 3

	// DefaultTimeout bounds a whole CLI upsert run.
	DefaultTimeout = 30 * time.Minute

	// MaxErrorPreviewLength is the maximum number of characters of a SQL
	// statement shown in error messages.
	MaxErrorPreviewLength = 200
)
