package services_test

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgbulk/internal/logging"
	"github.com/vvka-141/pgbulk/internal/services"
	"github.com/vvka-141/pgbulk/internal/tablemeta"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

type Person struct {
	ID   int64  `db:"Id,pk"`
	Name string `db:"Name"`
}

func (Person) TableName() string { return "People" }

// fakeTx implements the pgx.Tx methods a bulk upsert uses. The embedded
// interface satisfies the rest and panics if they are called.
type fakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	statements []string
	copied     int64
	failOn     string
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, sql)
	if f.failOn != "" && strings.HasPrefix(sql, f.failOn) {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	}
	if strings.HasPrefix(sql, "INSERT") {
		return pgconn.NewCommandTag("INSERT 0 " + strconv.FormatInt(f.copied, 10)), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, sql)
	return countRow(f.copied)
}

func (f *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	f.statements = append(f.statements, "COPY "+table.Sanitize())
	f.mu.Unlock()
	var n int64
	for src.Next() {
		if _, err := src.Values(); err != nil {
			return 0, err
		}
		n++
	}
	if err := src.Err(); err != nil {
		return 0, err
	}
	f.copied = n
	return n, nil
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type countRow int64

func (c countRow) Scan(dest ...any) error {
	*dest[0].(*int64) = int64(c)
	return nil
}

type fakeDB struct {
	tx       *fakeTx
	beginErr error
	begins   int
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.begins++
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	phases []pgbulk.Phase
	rows   map[string]int64
	errors []pgbulk.Phase
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{rows: map[string]int64{}}
}

func (m *recordingMetrics) ObservePhase(_ string, p pgbulk.Phase, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phases = append(m.phases, p)
}

func (m *recordingMetrics) AddRows(_ string, kind string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[kind] += n
}

func (m *recordingMetrics) IncError(_ string, p pgbulk.Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, p)
}

type recordingProgress struct {
	phases []pgbulk.Phase
	rows   []int64
}

func (p *recordingProgress) PhaseEntered(_ string, phase pgbulk.Phase) {
	p.phases = append(p.phases, phase)
}

func (p *recordingProgress) RowsStaged(_ string, n int64) {
	p.rows = append(p.rows, n)
}

func people(rows ...Person) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func newService(metrics pgbulk.MetricsReporter) *services.BulkService {
	return services.NewBulkService(tablemeta.NewReflectProvider(), logging.NewNullLogger(), metrics)
}

func TestBulkService_CommitsAfterStageAndMerge(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	metrics := newRecordingMetrics()

	res, err := newService(metrics).Upsert(context.Background(), db, Person{},
		people(Person{1, "alice"}, Person{2, "bob"}), nil)

	require.NoError(t, err)
	assert.Equal(t, pgbulk.PhaseCommitted, res.Phase)
	assert.Equal(t, int64(2), res.Staged)
	assert.Equal(t, int64(2), res.Affected)
	assert.True(t, strings.HasPrefix(res.StagingTable, "temp_"))
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)

	require.Len(t, tx.statements, 5)
	assert.True(t, strings.HasPrefix(tx.statements[0], `CREATE TEMP TABLE "`+res.StagingTable+`" (LIKE "People" INCLUDING ALL)`))
	assert.True(t, strings.HasPrefix(tx.statements[1], "ALTER TABLE"))
	assert.Equal(t, `COPY "`+res.StagingTable+`"`, tx.statements[2])
	assert.True(t, strings.HasPrefix(tx.statements[3], "SELECT COUNT(*)"))
	assert.Contains(t, tx.statements[4], `ON CONFLICT ("Id") DO UPDATE SET "Name" = EXCLUDED."Name"`)

	assert.Equal(t, []pgbulk.Phase{
		pgbulk.PhaseTransactionOpen, pgbulk.PhaseStaged, pgbulk.PhaseMerged, pgbulk.PhaseCommitted,
	}, metrics.phases)
	assert.Equal(t, int64(2), metrics.rows["staged"])
	assert.Equal(t, int64(2), metrics.rows["affected"])
	assert.Empty(t, metrics.errors)
}

func TestBulkService_TranslationErrorBeforeAnyDatabaseWork(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	metrics := newRecordingMetrics()
	opts := &pgbulk.Options{
		MergeCondition: pgbulk.When(pgbulk.Eq(
			&pgbulk.Binary{Op: pgbulk.OpMod, Left: pgbulk.Existing("ID"), Right: pgbulk.Value(2)},
			pgbulk.Value(0),
		)),
	}

	res, err := newService(metrics).Upsert(context.Background(), db, Person{}, people(Person{1, "a"}), opts)

	require.Error(t, err)
	assert.ErrorIs(t, err, pgbulk.ErrUnsupportedExpression)
	assert.Zero(t, db.begins)
	assert.Equal(t, pgbulk.PhaseAborted, res.Phase)

	var opErr *pgbulk.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, pgbulk.PhaseIdle, opErr.Phase)
	assert.Equal(t, []pgbulk.Phase{pgbulk.PhaseIdle}, metrics.errors)
}

func TestBulkService_InvalidOptionsBeforeAnyDatabaseWork(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), db, Person{}, people(),
		&pgbulk.Options{OnConflict: pgbulk.ConflictAction(5)})

	assert.ErrorIs(t, err, pgbulk.ErrInvalidOptions)
	assert.Zero(t, db.begins)
}

func TestBulkService_SchemaMismatch(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), db, 42, people(), nil)

	assert.ErrorIs(t, err, pgbulk.ErrSchemaMismatch)
	assert.Zero(t, db.begins)
}

func TestBulkService_MergeFailureRollsBack(t *testing.T) {
	tx := &fakeTx{failOn: "INSERT INTO"}
	metrics := newRecordingMetrics()

	res, err := newService(metrics).Upsert(context.Background(), &fakeDB{tx: tx}, Person{}, people(Person{1, "a"}), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, pgbulk.ErrMergeFailed)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))

	var opErr *pgbulk.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, pgbulk.PhaseStaged, opErr.Phase)
	assert.Equal(t, "People", opErr.Table)

	assert.Equal(t, pgbulk.PhaseAborted, res.Phase)
	assert.Equal(t, int64(1), res.Staged)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
	assert.Equal(t, []pgbulk.Phase{pgbulk.PhaseStaged}, metrics.errors)
}

func TestBulkService_StagingFailureRollsBack(t *testing.T) {
	tx := &fakeTx{failOn: "CREATE TEMP TABLE"}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: tx}, Person{}, people(Person{1, "a"}), nil)

	assert.ErrorIs(t, err, pgbulk.ErrStagingFailed)
	var opErr *pgbulk.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, pgbulk.PhaseTransactionOpen, opErr.Phase)
	assert.True(t, tx.rolledBack)
	assert.Len(t, tx.statements, 1)
}

func TestBulkService_RowErrorRollsBack(t *testing.T) {
	tx := &fakeTx{}
	bad := errors.New("row decode failed")
	rows := func(yield func(any, error) bool) {
		if yield(Person{1, "a"}, nil) {
			yield(nil, bad)
		}
	}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: tx}, Person{}, rows, nil)

	assert.ErrorIs(t, err, bad)
	assert.ErrorIs(t, err, pgbulk.ErrStagingFailed)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestBulkService_BeginFailure(t *testing.T) {
	db := &fakeDB{beginErr: errors.New("connection reset")}

	res, err := newService(newRecordingMetrics()).Upsert(context.Background(), db, Person{}, people(), nil)

	assert.ErrorIs(t, err, pgbulk.ErrConnectionFailed)
	assert.Equal(t, pgbulk.PhaseAborted, res.Phase)
}

func TestBulkService_CommitFailure(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: tx}, Person{}, people(Person{1, "a"}), nil)

	assert.ErrorIs(t, err, pgbulk.ErrCommitFailed)
	var opErr *pgbulk.OperationError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, pgbulk.PhaseMerged, opErr.Phase)
	assert.True(t, tx.rolledBack)
}

func TestBulkService_SkipPolicyWithTableOverride(t *testing.T) {
	tx := &fakeTx{}
	opts := &pgbulk.Options{
		OnConflict: pgbulk.DoNothing,
		Table:      &pgbulk.TableRef{Schema: "archive", Name: "people_2024"},
	}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: tx}, Person{}, people(Person{1, "a"}), opts)

	require.NoError(t, err)
	assert.Contains(t, tx.statements[0], `(LIKE "archive"."people_2024" INCLUDING ALL)`)
	last := tx.statements[len(tx.statements)-1]
	assert.True(t, strings.HasPrefix(last, `INSERT INTO "archive"."people_2024" AS target`))
	assert.True(t, strings.HasSuffix(last, "DO NOTHING"))
}

func TestBulkService_OptionsLoggerOverridesDefault(t *testing.T) {
	logger := logging.NewRecordingLogger()

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: &fakeTx{}}, Person{},
		people(Person{1, "a"}), &pgbulk.Options{Logger: logger})

	require.NoError(t, err)
	assert.True(t, logger.Contains(logging.LevelVerbose, "OVERRIDING SYSTEM VALUE"))
	assert.True(t, logger.Contains(logging.LevelInfo, "Staged 1 rows"))
	assert.True(t, logger.Contains(logging.LevelInfo, "1 staged, 1 merged"))
}

func TestBulkService_UpsertWithConnectorRequiresConnector(t *testing.T) {
	_, err := newService(newRecordingMetrics()).UpsertWithConnector(context.Background(), nil, Person{}, people(), nil)

	assert.ErrorIs(t, err, pgbulk.ErrInvalidOptions)
}

func TestNewBulkService_PanicsOnNilDependencies(t *testing.T) {
	provider := tablemeta.NewReflectProvider()
	logger := logging.NewNullLogger()
	metrics := pgbulk.NoopMetricsReporter{}

	assert.PanicsWithValue(t, "provider cannot be nil", func() { services.NewBulkService(nil, logger, metrics) })
	assert.PanicsWithValue(t, "logger cannot be nil", func() { services.NewBulkService(provider, nil, metrics) })
	assert.PanicsWithValue(t, "metrics cannot be nil", func() { services.NewBulkService(provider, logger, nil) })
}

func TestBulkService_ReportsProgress(t *testing.T) {
	progress := &recordingProgress{}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: &fakeTx{}}, Person{},
		people(Person{1, "alice"}, Person{2, "bob"}), &pgbulk.Options{Progress: progress})

	require.NoError(t, err)
	assert.Equal(t, []pgbulk.Phase{
		pgbulk.PhaseTransactionOpen, pgbulk.PhaseStaged, pgbulk.PhaseMerged, pgbulk.PhaseCommitted,
	}, progress.phases)
	assert.Equal(t, []int64{1, 2}, progress.rows)
}

func TestBulkService_ReportsAbortToProgress(t *testing.T) {
	progress := &recordingProgress{}
	tx := &fakeTx{failOn: "INSERT INTO"}

	_, err := newService(newRecordingMetrics()).Upsert(context.Background(), &fakeDB{tx: tx}, Person{},
		people(Person{1, "alice"}), &pgbulk.Options{Progress: progress})

	require.Error(t, err)
	assert.Equal(t, []pgbulk.Phase{
		pgbulk.PhaseTransactionOpen, pgbulk.PhaseStaged, pgbulk.PhaseAborted,
	}, progress.phases)
}
