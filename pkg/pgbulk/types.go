package pgbulk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ConflictAction selects what the merge does with an incoming row whose
// primary key already exists in the target table.
type ConflictAction int

const (
	// DoUpdate overwrites every non-key column of the existing row, optionally
	// gated by a merge condition. It is the zero value and the default.
	DoUpdate ConflictAction = iota

	// DoNothing leaves the existing row untouched.
	DoNothing
)

// String returns the canonical textual form used by the CLI and config file.
func (a ConflictAction) String() string {
	switch a {
	case DoUpdate:
		return "update"
	case DoNothing:
		return "skip"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the ConflictAction is a defined value.
func (a ConflictAction) IsValid() bool {
	return a == DoUpdate || a == DoNothing
}

// ParseConflictAction accepts "update", "skip" and their common aliases.
func ParseConflictAction(s string) (ConflictAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "update", "do-update", "doupdate":
		return DoUpdate, nil
	case "skip", "nothing", "do-nothing", "donothing":
		return DoNothing, nil
	default:
		return DoUpdate, fmt.Errorf("unknown conflict action %q (expected update or skip): %w", s, ErrInvalidOptions)
	}
}

// Phase is the lifecycle state of a single bulk upsert call.
//
//	Idle -> TransactionOpen -> Staged -> Merged -> Committed
//
// Any failure after Idle moves the call to Aborted.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTransactionOpen
	PhaseStaged
	PhaseMerged
	PhaseCommitted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTransactionOpen:
		return "transaction-open"
	case PhaseStaged:
		return "staged"
	case PhaseMerged:
		return "merged"
	case PhaseCommitted:
		return "committed"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// TableRef names a target table explicitly, overriding what the metadata
// provider derives from the row type.
type TableRef struct {
	Schema string
	Name   string
}

// Options configures a single bulk upsert call.
type Options struct {
	// OnConflict selects the merge policy. Defaults to DoUpdate.
	OnConflict ConflictAction

	// MergeCondition gates updates of existing rows. Nil means unconditional.
	// Ignored by DoNothing, though it is still validated.
	MergeCondition *Condition

	// Table overrides the target table resolved from the row type.
	Table *TableRef

	// Logger receives progress and diagnostic output. Defaults to a no-op logger.
	Logger Logger

	// Metrics receives phase timings and row counts. Defaults to NoopMetricsReporter.
	Metrics MetricsReporter

	// Progress observes phases and staged rows as they happen. Defaults to
	// NoopProgressReporter.
	Progress ProgressReporter

	// CountTarget logs the target table's row count after the merge. The
	// count scans the whole table inside the transaction.
	CountTarget bool
}

// Validate checks the options and returns a multi-error if several problems occur.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	var errs []error

	if !o.OnConflict.IsValid() {
		errs = append(errs, fmt.Errorf("OnConflict %s is not a valid action: %w", o.OnConflict, ErrInvalidOptions))
	}

	if c := o.MergeCondition; c != nil {
		if c.Body == nil {
			errs = append(errs, fmt.Errorf("MergeCondition has no body: %w", ErrInvalidOptions))
		}
		if c.Existing == "" || c.Incoming == "" {
			errs = append(errs, fmt.Errorf("MergeCondition must declare both row variables: %w", ErrInvalidOptions))
		} else if c.Existing == c.Incoming {
			errs = append(errs, fmt.Errorf("MergeCondition variables must differ, both are %q: %w", c.Existing, ErrInvalidOptions))
		}
	}

	if o.Table != nil && o.Table.Name == "" {
		errs = append(errs, fmt.Errorf("Table override requires a name: %w", ErrInvalidOptions))
	}

	return errors.Join(errs...)
}

// WithDefaults returns a copy of o with nil collaborators replaced by no-ops.
// A nil receiver yields the default options.
func (o *Options) WithDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Logger == nil {
		out.Logger = nopLogger{}
	}
	if out.Metrics == nil {
		out.Metrics = NoopMetricsReporter{}
	}
	if out.Progress == nil {
		out.Progress = NoopProgressReporter{}
	}
	return out
}

// Result summarises a bulk upsert call.
type Result struct {
	// StagingTable is the name of the transaction-scoped staging table.
	StagingTable string

	// Staged is the row count read back from the staging table after COPY.
	Staged int64

	// Affected is the number of target rows inserted or updated by the merge.
	Affected int64

	// Phase is the final lifecycle state.
	Phase Phase

	// Duration covers the call from validation to commit or abort.
	Duration time.Duration
}

// Column describes one column of the target table and how to read it from a row.
type Column struct {
	// Name is the column name in the database.
	Name string

	// Field is the Go struct field the column maps from. Empty for catalog rows.
	Field string

	// DataType is the PostgreSQL type name when known.
	DataType string

	// PrimaryKey marks columns of the conflict target.
	PrimaryKey bool

	// Identity marks identity columns. Their generated values are overridden
	// by the merge so the caller's key values are kept.
	Identity bool

	// Value extracts this column's value from a row.
	Value func(row any) (any, error)
}

// Table is the metadata a bulk upsert needs about its target.
// Columns are in table order and must not change during a call.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
}

// Identifier returns the schema-qualified identifier of the table.
func (t *Table) Identifier() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

// Qualified returns the quoted, schema-qualified table name for use in SQL.
func (t *Table) Qualified() string {
	return t.Identifier().Sanitize()
}

// String returns the unquoted dotted name, for logs and errors.
func (t *Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// KeyColumns returns the primary key columns in table order.
func (t *Table) KeyColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

// NonKeyColumns returns the columns an update overwrites.
func (t *Table) NonKeyColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if !c.PrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

// ColumnNames returns every column name in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a column by Go field name first, then by column name.
func (t *Table) Lookup(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Field != "" && c.Field == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate reports metadata that cannot drive a bulk upsert.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("table metadata is nil: %w", ErrSchemaMismatch)
	}
	var errs []error

	if t.Name == "" {
		errs = append(errs, fmt.Errorf("table name is required: %w", ErrSchemaMismatch))
	}
	if len(t.Columns) == 0 {
		errs = append(errs, fmt.Errorf("table %s has no columns: %w", t, ErrSchemaMismatch))
	}

	seen := make(map[string]bool, len(t.Columns))
	keys := 0
	for _, c := range t.Columns {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("table %s has a column without a name: %w", t, ErrSchemaMismatch))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("table %s maps column %q twice: %w", t, c.Name, ErrSchemaMismatch))
		}
		seen[c.Name] = true
		if c.Value == nil {
			errs = append(errs, fmt.Errorf("column %s.%s has no value accessor: %w", t, c.Name, ErrSchemaMismatch))
		}
		if c.PrimaryKey {
			keys++
		}
	}
	if len(t.Columns) > 0 && keys == 0 {
		errs = append(errs, fmt.Errorf("table %s has no primary key: %w", t, ErrSchemaMismatch))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is used by AuthMethodAWSIAM to sign the token.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name
	// ("project:region:instance") used by AuthMethodGoogleIAM.
	GoogleInstance string

	// Azure Entra ID parameters. If all three are provided, Service Principal
	// authentication is used. Otherwise the DefaultAzureCredential chain is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps CLI and config spellings to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam", "awsiam":
		return AuthMethodAWSIAM, nil
	case "google", "gcp", "google-iam", "cloudsql":
		return AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra", "entraid":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("auth method %q: %w", s, ErrUnsupportedAuthMethod)
	}
}
