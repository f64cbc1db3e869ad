package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DataDogExporter pushes run metrics to the DataDog series API in one batch
type DataDogExporter struct {
	apiKey   string
	site     string // e.g., "datadoghq.com", "datadoghq.eu"
	endpoint string
	tags     []string
	prefix   string
	client   *http.Client
	now      func() time.Time
	series   []datadogMetric
}

// DataDogOption is a functional option for DataDogExporter
type DataDogOption func(*DataDogExporter)

// WithDataDogAPIKey sets the DataDog API key
func WithDataDogAPIKey(apiKey string) DataDogOption {
	return func(d *DataDogExporter) {
		d.apiKey = apiKey
	}
}

// WithDataDogSite sets the DataDog site (e.g., "datadoghq.com", "datadoghq.eu")
func WithDataDogSite(site string) DataDogOption {
	return func(d *DataDogExporter) {
		if site != "" {
			d.site = site
		}
	}
}

// WithDataDogEndpoint overrides the series URL derived from the site
func WithDataDogEndpoint(url string) DataDogOption {
	return func(d *DataDogExporter) {
		d.endpoint = url
	}
}

// WithDataDogTags sets additional tags for all metrics
func WithDataDogTags(tags []string) DataDogOption {
	return func(d *DataDogExporter) {
		d.tags = append(d.tags, tags...)
	}
}

// WithDataDogTarget tags every metric with the run's base URL
func WithDataDogTarget(target string) DataDogOption {
	return func(d *DataDogExporter) {
		if target != "" {
			d.tags = append(d.tags, "target:"+target)
		}
	}
}

// WithDataDogHTTPClient replaces the default client
func WithDataDogHTTPClient(c *http.Client) DataDogOption {
	return func(d *DataDogExporter) {
		d.client = c
	}
}

// NewDataDogExporter creates a new DataDog metrics exporter
func NewDataDogExporter(opts ...DataDogOption) *DataDogExporter {
	d := &DataDogExporter{
		site:   "datadoghq.com",
		prefix: namespace,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	// Try to get API key from environment if not set
	if d.apiKey == "" {
		d.apiKey = os.Getenv("DD_API_KEY")
	}

	return d
}

// datadogMetric represents a metric in DataDog format
type datadogMetric struct {
	Metric string   `json:"metric"`
	Type   string   `json:"type"`
	Points [][]any  `json:"points"`
	Tags   []string `json:"tags,omitempty"`
}

// datadogPayload is the payload sent to DataDog
type datadogPayload struct {
	Series []datadogMetric `json:"series"`
}

func (d *DataDogExporter) point(name, kind string, value float64, extraTags ...string) datadogMetric {
	tags := append(append([]string{}, extraTags...), d.tags...)
	return datadogMetric{
		Metric: d.prefix + "." + name,
		Type:   kind,
		Points: [][]any{{float64(d.now().Unix()), value}},
		Tags:   tags,
	}
}

// ExportSingle buffers the per-case series; nothing is sent until Export
func (d *DataDogExporter) ExportSingle(m *TestMetrics) error {
	result := "result:failed"
	success := 0.0
	if m.Passed {
		result = "result:passed"
		success = 1
	}
	caseTag := "case:" + m.TestName

	d.series = append(d.series,
		d.point("case.duration_ms", "gauge", m.DurationMs, caseTag, result),
		d.point("case.success", "gauge", success, caseTag),
	)
	return nil
}

// Export sends the run totals together with the buffered case series
func (d *DataDogExporter) Export(agg *AggregateMetrics) error {
	if d.apiKey == "" {
		return fmt.Errorf("DataDog API key not configured")
	}

	series := append([]datadogMetric{}, d.series...)
	series = append(series,
		d.point("cases.total", "count", float64(agg.TotalRequests)),
		d.point("cases.passed", "count", float64(agg.SuccessCount)),
		d.point("cases.failed", "count", float64(agg.FailureCount)),
		d.point("pass_ratio", "gauge", agg.PassRate()),
		d.point("duration.avg", "gauge", agg.AvgDurationMs),
		d.point("duration.max", "gauge", agg.MaxDurationMs),
	)

	if agg.P50DurationMs > 0 {
		series = append(series, d.point("duration.p50", "gauge", agg.P50DurationMs))
	}
	if agg.P95DurationMs > 0 {
		series = append(series, d.point("duration.p95", "gauge", agg.P95DurationMs))
	}
	if agg.P99DurationMs > 0 {
		series = append(series, d.point("duration.p99", "gauge", agg.P99DurationMs))
	}

	for code, count := range agg.StatusCodes {
		series = append(series, d.point("responses", "count", float64(count), fmt.Sprintf("status:%d", code)))
	}

	if err := d.sendMetrics(series); err != nil {
		return err
	}
	d.series = nil
	return nil
}

func (d *DataDogExporter) seriesURL() string {
	if d.endpoint != "" {
		return d.endpoint
	}
	return fmt.Sprintf("https://api.%s/api/v1/series", d.site)
}

func (d *DataDogExporter) sendMetrics(series []datadogMetric) error {
	jsonData, err := json.Marshal(datadogPayload{Series: series})
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.seriesURL(), bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DataDog API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close implements Exporter
func (d *DataDogExporter) Close() error {
	return nil
}
