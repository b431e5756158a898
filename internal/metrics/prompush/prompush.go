// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch run has no scrape window, so collectors live in a
// private registry that is pushed once at the end of the run.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"ordersetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // etl_step_total
	stepDuration  *prometheus.SummaryVec // etl_step_duration_seconds
	recordCounter *prometheus.CounterVec // etl_records_total
	runCounter    *prometheus.CounterVec // etl_runs_total
	matchRatio    *prometheus.GaugeVec   // etl_join_match_ratio
}

// NewBackend constructs a Prometheus Pushgateway backend. The job label of
// every sample becomes the Pushgateway grouping key instead.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Row counts by kind (orders_raw, users_raw, analytics, outliers, exported).",
		}, []string{"kind"}),
		runCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RunsTotal,
			Help: "Finished pipeline runs by status.",
		}, []string{"status"}),
		matchRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.JoinMatchRatio,
			Help: "Share of analytics rows whose match column is present after the join.",
		}, []string{"column"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":   b.stepCounter,
		"step summary":   b.stepDuration,
		"record counter": b.recordCounter,
		"run counter":    b.runCounter,
		"match gauge":    b.matchRatio,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.recordCounter != nil {
			b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.RunsTotal:
		if b.runCounter != nil {
			b.runCounter.WithLabelValues(labels["status"]).Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// SetGauge implements metrics.Backend.
func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	if name != metrics.JoinMatchRatio || b.matchRatio == nil {
		return
	}
	b.matchRatio.WithLabelValues(labels["column"]).Set(value)
}

// Flush pushes the current registry to the Pushgateway, replacing the
// previous run's samples for the job.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
