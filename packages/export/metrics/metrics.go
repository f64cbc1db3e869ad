// Package metrics exports run results as metrics.
package metrics

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/runner"
)

// TestMetrics is what one executed case contributes
type TestMetrics struct {
	TestName   string    `json:"test_name"`
	StatusCode int       `json:"status_code"`
	DurationMs float64   `json:"duration_ms"`
	Passed     bool      `json:"passed"`
	Timestamp  time.Time `json:"timestamp"`
}

// AggregateMetrics represents aggregated metrics of a run
type AggregateMetrics struct {
	RunID           string          `json:"run_id"`
	TotalRequests   int64           `json:"total_requests"`
	SuccessCount    int64           `json:"success_count"`
	FailureCount    int64           `json:"failure_count"`
	TotalDurationMs float64         `json:"total_duration_ms"`
	MinDurationMs   float64         `json:"min_duration_ms"`
	MaxDurationMs   float64         `json:"max_duration_ms"`
	AvgDurationMs   float64         `json:"avg_duration_ms"`
	P50DurationMs   float64         `json:"p50_duration_ms"`
	P95DurationMs   float64         `json:"p95_duration_ms"`
	P99DurationMs   float64         `json:"p99_duration_ms"`
	StatusCodes     map[int]int64   `json:"status_codes"`
	ByTest          map[string]bool `json:"by_test"`
}

// PassRate is the share of passed cases, from 0 to 1
func (a *AggregateMetrics) PassRate() float64 {
	if a.TotalRequests == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(a.TotalRequests)
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports metrics to the target destination
	Export(metrics *AggregateMetrics) error

	// ExportSingle exports a single test metric
	ExportSingle(metric *TestMetrics) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Collector collects metrics from test runs
type Collector struct {
	metrics   []*TestMetrics
	aggregate *AggregateMetrics
	exporters []Exporter
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		metrics:   make([]*TestMetrics, 0),
		exporters: exporters,
		aggregate: &AggregateMetrics{
			StatusCodes: make(map[int]int64),
			ByTest:      make(map[string]bool),
		},
	}
}

// Record records a test metric
func (c *Collector) Record(m *TestMetrics) {
	c.metrics = append(c.metrics, m)
	c.updateAggregate(m)

	// Export to all exporters
	for _, exp := range c.exporters {
		_ = exp.ExportSingle(m)
	}
}

// RecordRun records every result of run and takes the latency
// percentiles from its summary.
func (c *Collector) RecordRun(run *runner.RunResult) {
	c.aggregate.RunID = run.ID
	for _, r := range run.Results {
		c.Record(&TestMetrics{
			TestName:   r.Test,
			StatusCode: r.StatusCode,
			DurationMs: durationMs(r.Duration),
			Passed:     r.Success,
			Timestamp:  run.StartedAt,
		})
	}

	latency := run.Summarize().Latency
	c.aggregate.P50DurationMs = durationMs(latency.P50)
	c.aggregate.P95DurationMs = durationMs(latency.P95)
	c.aggregate.P99DurationMs = durationMs(latency.P99)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (c *Collector) updateAggregate(m *TestMetrics) {
	c.aggregate.TotalRequests++
	c.aggregate.TotalDurationMs += m.DurationMs

	if m.Passed {
		c.aggregate.SuccessCount++
	} else {
		c.aggregate.FailureCount++
	}

	// Update min/max
	if c.aggregate.TotalRequests == 1 {
		c.aggregate.MinDurationMs = m.DurationMs
		c.aggregate.MaxDurationMs = m.DurationMs
	} else {
		if m.DurationMs < c.aggregate.MinDurationMs {
			c.aggregate.MinDurationMs = m.DurationMs
		}
		if m.DurationMs > c.aggregate.MaxDurationMs {
			c.aggregate.MaxDurationMs = m.DurationMs
		}
	}

	c.aggregate.AvgDurationMs = c.aggregate.TotalDurationMs / float64(c.aggregate.TotalRequests)
	c.aggregate.StatusCodes[m.StatusCode]++
	c.aggregate.ByTest[m.TestName] = m.Passed
}

// GetAggregate returns the aggregated metrics
func (c *Collector) GetAggregate() *AggregateMetrics {
	return c.aggregate
}

// Flush exports all aggregated metrics
func (c *Collector) Flush() error {
	for _, exp := range c.exporters {
		if err := exp.Export(c.aggregate); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all exporters
func (c *Collector) Close() error {
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			return err
		}
	}
	return nil
}

// WriteRun records run and writes it to path. A .json path gets the JSON
// document; anything else gets a Prometheus textfile labelled with the
// run's base URL.
func WriteRun(path string, run *runner.RunResult) error {
	var exp Exporter
	if strings.EqualFold(filepath.Ext(path), ".json") {
		exp = NewJSONExporter(WithJSONFile(path), WithJSONTarget(run.BaseURL))
	} else {
		exp = NewPrometheusExporter(WithPrometheusFile(path), WithPrometheusTarget(run.BaseURL))
	}
	return ExportRun(run, exp)
}

// ExportRun records run into a new Collector and flushes it to exporters
func ExportRun(run *runner.RunResult, exporters ...Exporter) error {
	collector := NewCollector(exporters...)
	collector.RecordRun(run)
	if err := collector.Flush(); err != nil {
		return err
	}
	return collector.Close()
}
