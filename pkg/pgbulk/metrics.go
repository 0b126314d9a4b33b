package pgbulk

import "time"

// MetricsReporter receives measurements from bulk upsert calls.
// Implementations must be safe for concurrent use.
type MetricsReporter interface {
	// ObservePhase records how long the call took to reach phase.
	ObservePhase(table string, phase Phase, d time.Duration)

	// AddRows records row counts. kind is "staged" or "affected".
	AddRows(table string, kind string, n int64)

	// IncError counts a failed call by the last phase it reached.
	IncError(table string, phase Phase)
}

// NoopMetricsReporter discards all measurements.
type NoopMetricsReporter struct{}

func (NoopMetricsReporter) ObservePhase(string, Phase, time.Duration) {}
func (NoopMetricsReporter) AddRows(string, string, int64)             {}
func (NoopMetricsReporter) IncError(string, Phase)                    {}
