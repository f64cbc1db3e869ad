package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smokecheck"

// PrometheusExporter keeps run metrics in a dedicated registry and writes
// them in the node-exporter textfile format.
type PrometheusExporter struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	filePath string
	target   string
	now      func() time.Time

	cases        *prometheus.GaugeVec
	passRatio    prometheus.Gauge
	lastRun      prometheus.Gauge
	caseSuccess  *prometheus.GaugeVec
	caseDuration *prometheus.GaugeVec
	duration     prometheus.Histogram
	statuses     *prometheus.GaugeVec
	percentiles  *prometheus.GaugeVec
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusFile makes Export write the registry to path
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.filePath = path
	}
}

// WithPrometheusTarget adds a constant target label to every metric
func WithPrometheusTarget(target string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.target = target
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	var reg prometheus.Registerer = p.registry
	if p.target != "" {
		reg = prometheus.WrapRegistererWith(prometheus.Labels{"target": p.target}, reg)
	}
	factory := promauto.With(reg)

	p.cases = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cases",
		Help:      "Number of cases in the last run by result.",
	}, []string{"result"})
	p.passRatio = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pass_ratio",
		Help:      "Share of passed cases in the last run, from 0 to 1.",
	})
	p.lastRun = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run was exported.",
	})
	p.caseSuccess = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "case_success",
		Help:      "1 when the case passed in the last run, 0 otherwise.",
	}, []string{"case"})
	p.caseDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "case_duration_seconds",
		Help:      "Duration of each case in the last run.",
	}, []string{"case"})
	p.duration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Request duration of the exported cases.",
		Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
	p.statuses = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "responses",
		Help:      "Responses in the last run by HTTP status; status=\"none\" counts cases without a response.",
	}, []string{"status"})
	p.percentiles = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "request_duration_percentile_seconds",
		Help:      "Request duration percentiles of the last run.",
	}, []string{"percentile"})

	return p
}

// Registry returns the registry the metrics live in
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry over HTTP
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ResetCases drops the per-case and per-status series so an exporter that
// is reused across runs only reports the cases of the latest one
func (p *PrometheusExporter) ResetCases() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.caseSuccess.Reset()
	p.caseDuration.Reset()
	p.statuses.Reset()
}

// ExportSingle records a single test metric
func (p *PrometheusExporter) ExportSingle(m *TestMetrics) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	success := 0.0
	if m.Passed {
		success = 1
	}
	seconds := m.DurationMs / 1000

	p.caseSuccess.WithLabelValues(m.TestName).Set(success)
	p.caseDuration.WithLabelValues(m.TestName).Set(seconds)
	p.duration.Observe(seconds)

	status := "none"
	if m.StatusCode > 0 {
		status = strconv.Itoa(m.StatusCode)
	}
	p.statuses.WithLabelValues(status).Inc()
	return nil
}

// Export sets the run-level gauges and writes the textfile when configured
func (p *PrometheusExporter) Export(agg *AggregateMetrics) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cases.WithLabelValues("passed").Set(float64(agg.SuccessCount))
	p.cases.WithLabelValues("failed").Set(float64(agg.FailureCount))
	p.passRatio.Set(agg.PassRate())
	p.lastRun.Set(float64(p.now().Unix()))

	p.percentiles.WithLabelValues("50").Set(agg.P50DurationMs / 1000)
	p.percentiles.WithLabelValues("95").Set(agg.P95DurationMs / 1000)
	p.percentiles.WithLabelValues("99").Set(agg.P99DurationMs / 1000)

	if p.filePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(p.filePath, p.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Close implements Exporter
func (p *PrometheusExporter) Close() error {
	return nil
}
