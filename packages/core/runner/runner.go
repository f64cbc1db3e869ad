package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caugusteg/smokecheck/packages/http"
	"github.com/google/uuid"
)

// Observer is told about a run as it happens. The console reporter uses it
// to print each line the moment a result is logged.
type Observer interface {
	OnStart(run *RunResult)
	OnResult(result *TestResult)
}

type Runner struct {
	client  *http.Client
	config  *Config
	cases   []Case
	results []*TestResult
	logger  *slog.Logger
	now     func() time.Time
}

type Config struct {
	BaseURL        string
	APIPrefix      string
	RootMarker     string
	Timeout        time.Duration
	Rate           float64
	FollowRedirect bool
	ValidateSSL    bool
	Proxy          string
	DefaultHeaders map[string]string
	Observer       Observer
	Logger         *slog.Logger
	// Cases replaces the built-in case list when non-nil
	Cases []Case
}

// DefaultHeaders are sent with every request of the session
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true, ValidateSSL: true}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	headers := DefaultHeaders()
	for k, v := range cfg.DefaultHeaders {
		headers[k] = v
	}

	clientOpts := []http.ClientOption{
		http.WithDefaultHeaders(headers),
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(cfg.ValidateSSL),
		http.WithLogger(logger),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.Rate > 0 {
		clientOpts = append(clientOpts, http.WithRateLimit(cfg.Rate))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}

	cases := cfg.Cases
	if cases == nil {
		cases = DefaultCases()
	}

	return &Runner{
		client: http.NewClient(clientOpts...),
		config: cfg,
		cases:  cases,
		logger: logger,
		now:    time.Now,
	}
}

// Cases returns the cases in execution order
func (r *Runner) Cases() []Case {
	return r.cases
}

// Env returns what cases see of the runner
func (r *Runner) Env() *Env {
	return &Env{
		Client:     r.client,
		APIBase:    http.JoinURL(r.config.BaseURL, r.config.APIPrefix),
		RootMarker: r.config.RootMarker,
	}
}

// Run executes every case in order and returns the collected results.
// Case failures are recorded, never returned; Run itself does not fail.
func (r *Runner) Run(ctx context.Context) *RunResult {
	run := &RunResult{
		ID:        uuid.NewString(),
		BaseURL:   r.config.BaseURL,
		StartedAt: r.now(),
	}
	r.results = nil

	if r.config.Observer != nil {
		r.config.Observer.OnStart(run)
	}
	r.logger.Debug("starting run", "run_id", run.ID, "base_url", run.BaseURL, "cases", len(r.cases))

	env := r.Env()
	for _, c := range r.cases {
		r.runCase(ctx, env, c)
	}

	run.Results = r.Results()
	run.Duration = time.Since(run.StartedAt)
	return run
}

// runCase is the failure boundary around a single case
func (r *Runner) runCase(ctx context.Context, env *Env, c Case) {
	start := time.Now()
	var outcome Outcome
	var err error

	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		outcome, err = c.Run(ctx, env)
	}()

	duration := time.Since(start)
	if err != nil {
		r.logger.Debug("case errored", "case", c.Name, "error", err)
		r.record(c.Name, false, c.errorDetails(err), nil, duration, 0)
		return
	}
	r.record(c.Name, outcome.Success, outcome.Details, outcome.ResponseData, duration, outcome.StatusCode)
}

// LogResult appends a result stamped with the current time and reports it
func (r *Runner) LogResult(name string, success bool, details string, responseData any) *TestResult {
	return r.record(name, success, details, responseData, 0, 0)
}

func (r *Runner) record(name string, success bool, details string, responseData any, duration time.Duration, status int) *TestResult {
	result := &TestResult{
		Test:         name,
		Success:      success,
		Details:      details,
		Timestamp:    r.now().Format(TimestampLayout),
		ResponseData: responseData,
		Duration:     duration,
		StatusCode:   status,
	}
	r.results = append(r.results, result)

	if r.config.Observer != nil {
		r.config.Observer.OnResult(result)
	}
	return result
}

// Results returns the results logged so far, in order
func (r *Runner) Results() []*TestResult {
	out := make([]*TestResult, len(r.results))
	copy(out, r.results)
	return out
}
