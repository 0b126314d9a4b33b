package services

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/vvka-141/pgbulk/internal/merge"
	"github.com/vvka-141/pgbulk/internal/staging"
	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// BulkService runs bulk upserts: stage rows into a temporary table, then
// merge them into the target in the same transaction.
//
// Thread-Safety: safe for concurrent use. Each call uses its own connection,
// transaction and uniquely named staging table.
type BulkService struct {
	provider pgbulk.MetadataProvider
	logger   pgbulk.Logger
	metrics  pgbulk.MetricsReporter
	newName  func() string
}

// NewBulkService creates a BulkService.
//
// Panics on nil dependencies: these are wiring mistakes that should surface
// at startup rather than on the first upsert.
func NewBulkService(provider pgbulk.MetadataProvider, logger pgbulk.Logger, metrics pgbulk.MetricsReporter) *BulkService {
	if provider == nil {
		panic("provider cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if metrics == nil {
		panic("metrics cannot be nil")
	}
	return &BulkService{
		provider: provider,
		logger:   logger,
		metrics:  metrics,
		newName:  staging.NewName,
	}
}

// Upsert stages rows and merges them into the table described by shape.
//
// db is borrowed: if it is a pool, one connection is acquired for the call and
// released before returning. The call runs in exactly one transaction (a
// savepoint when db is itself a transaction). Nothing is committed unless
// staging and merge both succeed. Invalid options and untranslatable merge
// conditions are reported before any database work.
func (s *BulkService) Upsert(ctx context.Context, db pgbulk.Beginner, shape any, rows iter.Seq2[any, error], opts *pgbulk.Options) (pgbulk.Result, error) {
	start := time.Now()
	res := pgbulk.Result{Phase: pgbulk.PhaseIdle}

	o := opts.WithDefaults()
	if opts == nil || opts.Logger == nil {
		o.Logger = s.logger
	}
	if opts == nil || opts.Metrics == nil {
		o.Metrics = s.metrics
	}
	logger, metrics, progress := o.Logger, o.Metrics, o.Progress

	var tableName string
	fail := func(err error) (pgbulk.Result, error) {
		last := res.Phase
		res.Phase = pgbulk.PhaseAborted
		res.Duration = time.Since(start)
		metrics.IncError(tableName, last)
		progress.PhaseEntered(tableName, pgbulk.PhaseAborted)
		opErr := &pgbulk.OperationError{Phase: last, Table: tableName, Err: err}
		logger.Error("%v", opErr)
		return res, opErr
	}

	if err := o.Validate(); err != nil {
		return fail(err)
	}

	table, err := s.provider.TableFor(shape)
	if err != nil {
		return fail(fmt.Errorf("failed to resolve table metadata: %w", err))
	}
	if o.Table != nil {
		table.Schema, table.Name = o.Table.Schema, o.Table.Name
	}
	tableName = table.String()
	if err := table.Validate(); err != nil {
		return fail(err)
	}

	res.StagingTable = s.newName()
	plan, err := merge.Build(table, res.StagingTable, &o)
	if err != nil {
		return fail(err)
	}
	if plan.Degraded {
		logger.Verbose("%s has no non-key columns; conflicts are skipped", tableName)
	}

	logger.Info("Upserting into %s (on conflict: %s)", tableName, plan.Action)

	if acq, ok := db.(pgbulk.Acquirer); ok {
		conn, err := acq.Acquire(ctx)
		if err != nil {
			return fail(fmt.Errorf("%w: acquire connection: %w", pgbulk.ErrConnectionFailed, err))
		}
		defer conn.Release()
		db = conn
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fail(fmt.Errorf("%w: begin transaction: %w", pgbulk.ErrConnectionFailed, err))
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Verbose("Rollback of %s failed: %v", tableName, rbErr)
			}
		}
	}()
	s.advance(&res, pgbulk.PhaseTransactionOpen, metrics, progress, tableName, start)

	loader := staging.NewLoader(logger, staging.WithRowObserver(func(n int64) {
		progress.RowsStaged(tableName, n)
	}))
	res.Staged, err = loader.Stage(ctx, tx, table, res.StagingTable, rows)
	if err != nil {
		return fail(err)
	}
	metrics.AddRows(tableName, "staged", res.Staged)
	s.advance(&res, pgbulk.PhaseStaged, metrics, progress, tableName, start)

	res.Affected, err = merge.NewExecutor(logger).Execute(ctx, tx, plan)
	if err != nil {
		return fail(err)
	}
	metrics.AddRows(tableName, "affected", res.Affected)
	s.advance(&res, pgbulk.PhaseMerged, metrics, progress, tableName, start)

	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("%w: %w", pgbulk.ErrCommitFailed, err))
	}
	committed = true
	s.advance(&res, pgbulk.PhaseCommitted, metrics, progress, tableName, start)

	res.Duration = time.Since(start)
	logger.Info("✓ %s: %d staged, %d merged in %s", tableName, res.Staged, res.Affected, res.Duration.Round(time.Millisecond))
	return res, nil
}

// UpsertWithConnector opens a pool with connector, runs Upsert on it and
// closes the pool before returning.
func (s *BulkService) UpsertWithConnector(ctx context.Context, connector pgbulk.Connector, shape any, rows iter.Seq2[any, error], opts *pgbulk.Options) (pgbulk.Result, error) {
	if connector == nil {
		return pgbulk.Result{Phase: pgbulk.PhaseAborted}, fmt.Errorf("connector is required: %w", pgbulk.ErrInvalidOptions)
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		return pgbulk.Result{Phase: pgbulk.PhaseAborted}, err
	}
	defer pool.Close()

	return s.Upsert(ctx, pool, shape, rows, opts)
}

func (s *BulkService) advance(res *pgbulk.Result, phase pgbulk.Phase, metrics pgbulk.MetricsReporter, progress pgbulk.ProgressReporter, table string, start time.Time) {
	res.Phase = phase
	metrics.ObservePhase(table, phase, time.Since(start))
	progress.PhaseEntered(table, phase)
}
