// Package metrics records operational metrics for pipeline runs behind a
// small pluggable Backend.
//
// The default backend is a no-op, so instrumentation is always safe to call.
// Concrete systems live in subpackages (prompush, datadog) and are installed
// once by the entry point with SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal      = "etl_step_total"
	StepDuration   = "etl_step_duration_seconds"
	RecordsTotal   = "etl_records_total"
	RunsTotal      = "etl_runs_total"
	JoinMatchRatio = "etl_join_match_ratio"

	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge records the latest value of a ratio or level.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// RecordStep counts one execution of a pipeline step and its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter of the given kind, e.g.
// "orders_raw", "users_raw", "analytics", "exported" or "outliers".
// Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRun counts a finished run by outcome.
func RecordRun(job string, err error) {
	backend.IncCounter(RunsTotal, 1, Labels{
		"job":    job,
		"status": status(err),
	})
}

// RecordMatchRate publishes the share of joined rows that found a match.
func RecordMatchRate(job, column string, rate float64) {
	backend.SetGauge(JoinMatchRatio, rate, Labels{
		"job":    job,
		"column": column,
	})
}
