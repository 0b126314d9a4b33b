package pgbulk

// ProgressReporter observes a running upsert. Calls arrive on the goroutine
// running the upsert, once per phase and once per staged row, so
// implementations must return quickly.
type ProgressReporter interface {
	// PhaseEntered is called each time the call reaches a new phase.
	PhaseEntered(table string, phase Phase)

	// RowsStaged reports how many rows have been handed to COPY so far.
	RowsStaged(table string, n int64)
}

// NoopProgressReporter ignores progress.
type NoopProgressReporter struct{}

func (NoopProgressReporter) PhaseEntered(string, Phase) {}
func (NoopProgressReporter) RowsStaged(string, int64)   {}
