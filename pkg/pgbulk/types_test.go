package pgbulk_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

func constant(v any) func(any) (any, error) {
	return func(any) (any, error) { return v, nil }
}

func peopleTable() *pgbulk.Table {
	return &pgbulk.Table{
		Schema: "public",
		Name:   "People",
		Columns: []pgbulk.Column{
			{Name: "Id", Field: "ID", DataType: "bigint", PrimaryKey: true, Identity: true, Value: constant(int64(1))},
			{Name: "Name", Field: "Name", DataType: "text", Value: constant("alice")},
			{Name: "Version", DataType: "integer", Value: constant(int32(3))},
		},
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name      string
		opts      *pgbulk.Options
		wantError bool
	}{
		{"nil options", nil, false},
		{"zero options", &pgbulk.Options{}, false},
		{"skip with condition", &pgbulk.Options{
			OnConflict:     pgbulk.DoNothing,
			MergeCondition: pgbulk.When(pgbulk.Eq(pgbulk.Existing("Name"), pgbulk.Incoming("Name"))),
		}, false},
		{"invalid action", &pgbulk.Options{OnConflict: pgbulk.ConflictAction(7)}, true},
		{"condition without body", &pgbulk.Options{MergeCondition: pgbulk.When(nil)}, true},
		{"condition with same variables", &pgbulk.Options{
			MergeCondition: pgbulk.WhenVars("row", "row", pgbulk.Eq(pgbulk.Ref("row", "a"), pgbulk.Value(1))),
		}, true},
		{"condition missing variable", &pgbulk.Options{
			MergeCondition: pgbulk.WhenVars("", "incoming", pgbulk.Eq(pgbulk.Incoming("a"), pgbulk.Value(1))),
		}, true},
		{"table override without name", &pgbulk.Options{Table: &pgbulk.TableRef{Schema: "s"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, pgbulk.ErrInvalidOptions)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOptions_ValidateCollectsAllErrors(t *testing.T) {
	opts := &pgbulk.Options{
		OnConflict:     pgbulk.ConflictAction(9),
		MergeCondition: &pgbulk.Condition{},
		Table:          &pgbulk.TableRef{},
	}

	err := opts.Validate()
	require.Error(t, err)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 4)
}

func TestOptions_WithDefaults(t *testing.T) {
	var nilOpts *pgbulk.Options
	got := nilOpts.WithDefaults()
	assert.Equal(t, pgbulk.DoUpdate, got.OnConflict)
	assert.NotNil(t, got.Logger)
	assert.NotNil(t, got.Metrics)

	got.Logger.Info("discarded %d", 1)
	got.Metrics.IncError("t", pgbulk.PhaseAborted)
}

func TestParseConflictAction(t *testing.T) {
	tests := []struct {
		in      string
		want    pgbulk.ConflictAction
		wantErr bool
	}{
		{"", pgbulk.DoUpdate, false},
		{"update", pgbulk.DoUpdate, false},
		{"DO-UPDATE", pgbulk.DoUpdate, false},
		{"skip", pgbulk.DoNothing, false},
		{"nothing", pgbulk.DoNothing, false},
		{" do-nothing ", pgbulk.DoNothing, false},
		{"replace", pgbulk.DoUpdate, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := pgbulk.ParseConflictAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, pgbulk.ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) pgbulk.ConflictAction {
	t.Helper()
	a, err := pgbulk.ParseConflictAction(s)
	require.NoError(t, err)
	return a
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", pgbulk.PhaseIdle.String())
	assert.Equal(t, "transaction-open", pgbulk.PhaseTransactionOpen.String())
	assert.Equal(t, "staged", pgbulk.PhaseStaged.String())
	assert.Equal(t, "merged", pgbulk.PhaseMerged.String())
	assert.Equal(t, "committed", pgbulk.PhaseCommitted.String())
	assert.Equal(t, "aborted", pgbulk.PhaseAborted.String())
	assert.Equal(t, "Unknown(42)", pgbulk.Phase(42).String())
}

func TestTable_Accessors(t *testing.T) {
	tbl := peopleTable()

	assert.Equal(t, `"public"."People"`, tbl.Qualified())
	assert.Equal(t, "public.People", tbl.String())
	assert.Equal(t, []string{"Id", "Name", "Version"}, tbl.ColumnNames())

	keys := tbl.KeyColumns()
	require.Len(t, keys, 1)
	assert.Equal(t, "Id", keys[0].Name)
	assert.Len(t, tbl.NonKeyColumns(), 2)

	tbl.Schema = ""
	assert.Equal(t, `"People"`, tbl.Qualified())
}

func TestTable_Lookup(t *testing.T) {
	tbl := peopleTable()

	col, ok := tbl.Lookup("ID")
	require.True(t, ok)
	assert.Equal(t, "Id", col.Name)

	col, ok = tbl.Lookup("Id")
	require.True(t, ok)
	assert.Equal(t, "Id", col.Name)

	col, ok = tbl.Lookup("Version")
	require.True(t, ok)
	assert.Equal(t, "Version", col.Name)

	_, ok = tbl.Lookup("Missing")
	assert.False(t, ok)
}

func TestTable_Validate(t *testing.T) {
	require.NoError(t, peopleTable().Validate())

	var nilTable *pgbulk.Table
	assert.ErrorIs(t, nilTable.Validate(), pgbulk.ErrSchemaMismatch)

	noKey := peopleTable()
	noKey.Columns[0].PrimaryKey = false
	assert.ErrorIs(t, noKey.Validate(), pgbulk.ErrSchemaMismatch)

	dup := peopleTable()
	dup.Columns[2].Name = "Name"
	assert.ErrorContains(t, dup.Validate(), `maps column "Name" twice`)

	noAccessor := peopleTable()
	noAccessor.Columns[1].Value = nil
	assert.ErrorContains(t, noAccessor.Validate(), "no value accessor")

	empty := &pgbulk.Table{Name: "t"}
	assert.ErrorContains(t, empty.Validate(), "has no columns")
}

func TestParseAuthMethod(t *testing.T) {
	tests := []struct {
		in   string
		want pgbulk.AuthMethod
	}{
		{"", pgbulk.AuthMethodStandard},
		{"aws", pgbulk.AuthMethodAWSIAM},
		{"cloudsql", pgbulk.AuthMethodGoogleIAM},
		{"Azure", pgbulk.AuthMethodAzureEntraID},
	}
	for _, tt := range tests {
		got, err := pgbulk.ParseAuthMethod(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.True(t, got.IsValid())
	}

	_, err := pgbulk.ParseAuthMethod("kerberos")
	assert.ErrorIs(t, err, pgbulk.ErrUnsupportedAuthMethod)
	assert.False(t, pgbulk.AuthMethod(99).IsValid())
}
