package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/config"
	"github.com/caugusteg/smokecheck/packages/core/env"
	"github.com/caugusteg/smokecheck/packages/core/runner"
	"github.com/caugusteg/smokecheck/packages/db"
	"github.com/caugusteg/smokecheck/packages/export/metrics"
	"github.com/caugusteg/smokecheck/packages/logging"
	"github.com/caugusteg/smokecheck/packages/notify"
	"github.com/caugusteg/smokecheck/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the smoke test suite",
	Long: `Run every check against the backend in a fixed order and save the
results list as JSON.

Examples:
  smokecheck run
  smokecheck run --base-url http://localhost:8001
  smokecheck run --env-file .env.staging --junit-file reports/smoke.xml
  smokecheck run --history-db smokecheck.db --notify-on recovery --slack-webhook $SLACK_WEBHOOK
  smokecheck run --watch
  smokecheck run --watch --metrics-addr :9464`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	configFlag      string
	envFileFlag     string
	baseURLFlag     string
	apiPrefixFlag   string
	resultsFileFlag string
	junitFileFlag   string
	tapFileFlag     string
	metricsFileFlag string
	historyDBFlag   string
	timeoutFlag     string
	rateFlag        float64
	proxyFlag       string
	insecureFlag    bool
	verboseFlag     int
	noColorFlag     bool
	strictFlag      bool
	watchFlag       bool
	metricsAddrFlag string

	// Notification flags
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string

	// DataDog flags
	datadogAPIKeyFlag string
	datadogSiteFlag   string
	datadogTagsFlag   string
)

func init() {
	addRunFlags(runCmd)
}

// addRunFlags registers the run flags on cmd. The root command and run share
// the same variables so both accept the same flags.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Core flags
	f.StringVar(&configFlag, "config", getEnvString("SMOKECHECK_CONFIG", ""), "Path to config file (env: SMOKECHECK_CONFIG)")
	f.StringVar(&envFileFlag, "env-file", getEnvString("SMOKECHECK_ENV_FILE", ""), "Path to .env file loaded before the config (env: SMOKECHECK_ENV_FILE)")
	f.StringVar(&baseURLFlag, "base-url", getEnvString("SMOKECHECK_BASE_URL", ""), "Backend base URL (env: SMOKECHECK_BASE_URL)")
	f.StringVar(&apiPrefixFlag, "api-prefix", getEnvString("SMOKECHECK_API_PREFIX", ""), "Path prefix of every endpoint (env: SMOKECHECK_API_PREFIX)")

	// Output flags
	f.StringVar(&resultsFileFlag, "results-file", getEnvString("SMOKECHECK_RESULTS_FILE", ""), "Where to save the JSON results (env: SMOKECHECK_RESULTS_FILE)")
	f.StringVar(&junitFileFlag, "junit-file", getEnvString("SMOKECHECK_JUNIT_FILE", ""), "Also write a JUnit XML report (env: SMOKECHECK_JUNIT_FILE)")
	f.StringVar(&tapFileFlag, "tap-file", getEnvString("SMOKECHECK_TAP_FILE", ""), "Also write a TAP report (env: SMOKECHECK_TAP_FILE)")
	f.StringVar(&metricsFileFlag, "metrics-file", getEnvString("SMOKECHECK_METRICS_FILE", ""), "Also write Prometheus textfile metrics (env: SMOKECHECK_METRICS_FILE)")
	f.StringVar(&historyDBFlag, "history-db", getEnvString("SMOKECHECK_HISTORY_DB", ""), "SQLite file recording every run (env: SMOKECHECK_HISTORY_DB)")
	f.CountVarP(&verboseFlag, "verbose", "v", "Verbose output with run ID, durations and request tracing")
	f.BoolVar(&noColorFlag, "no-color", getEnvBool("SMOKECHECK_NO_COLOR", false), "Disable colored output (env: SMOKECHECK_NO_COLOR)")

	// Execution flags
	f.StringVar(&timeoutFlag, "timeout", getEnvString("SMOKECHECK_TIMEOUT", ""), "Request timeout, e.g. 30s; empty waits indefinitely (env: SMOKECHECK_TIMEOUT)")
	f.Float64Var(&rateFlag, "rate", getEnvFloat("SMOKECHECK_RATE", 0), "Maximum requests per second, 0 for unpaced (env: SMOKECHECK_RATE)")
	f.BoolVar(&strictFlag, "strict", getEnvBool("SMOKECHECK_STRICT", false), "Exit with code 1 when any check fails (env: SMOKECHECK_STRICT)")
	f.BoolVarP(&watchFlag, "watch", "w", false, "Re-run when the config or env file changes")
	f.StringVar(&metricsAddrFlag, "metrics-addr", getEnvString("SMOKECHECK_METRICS_ADDR", ""), "In watch mode, serve the latest run's metrics on this address at /metrics (env: SMOKECHECK_METRICS_ADDR)")

	// Network flags
	f.StringVar(&proxyFlag, "proxy", getEnvString("SMOKECHECK_PROXY", ""), "Proxy URL for HTTP requests (env: SMOKECHECK_PROXY)")
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("SMOKECHECK_INSECURE", false), "Disable SSL certificate validation (env: SMOKECHECK_INSECURE)")

	// Notification flags
	f.StringVar(&notifyOnFlag, "notify-on", getEnvString("SMOKECHECK_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: SMOKECHECK_NOTIFY_ON)")
	f.StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	f.StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	f.StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")

	// DataDog flags
	f.StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "Push run metrics to DataDog with this API key (env: DD_API_KEY)")
	f.StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", ""), "DataDog site, default datadoghq.com (env: DD_SITE)")
	f.StringVar(&datadogTagsFlag, "datadog-tags", getEnvString("DD_TAGS", ""), "Comma-separated DataDog tags (env: DD_TAGS)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// flagConfig turns the run flags into a config that overrides the file
func flagConfig() *config.Config {
	cfg := &config.Config{
		BaseURL:     baseURLFlag,
		APIPrefix:   apiPrefixFlag,
		ResultsFile: resultsFileFlag,
		JUnitFile:   junitFileFlag,
		TAPFile:     tapFileFlag,
		MetricsFile: metricsFileFlag,
		HistoryDB:   historyDBFlag,
		Timeout:     timeoutFlag,
		Rate:        rateFlag,
		Proxy:       proxyFlag,
		Notify: config.NotifyConfig{
			On:    notifyOnFlag,
			Slack: config.WebhookConfig{Webhook: slackWebhookFlag, Channel: slackChannelFlag},
			Teams: config.WebhookConfig{Webhook: teamsWebhookFlag},
		},
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	cfg.Datadog = config.DatadogConfig{
		APIKey: datadogAPIKeyFlag,
		Site:   datadogSiteFlag,
		Tags:   splitList(datadogTagsFlag),
	}
	return cfg
}

// splitList splits a comma-separated flag value, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadRunConfig applies the env file, the config file and the flags, in that
// order. dotenv may be nil.
func loadRunConfig(dotenv *env.Reloader) (*config.Config, error) {
	if dotenv != nil {
		if _, err := dotenv.Load(); err != nil {
			return nil, withExitCode(ExitConfigError, "loading env file: %w", err)
		}
	}

	fileCfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, "%w", err)
	}

	cfg := fileCfg.Merge(flagConfig())
	if err := cfg.Validate(); err != nil {
		return nil, withExitCode(ExitConfigError, "invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildNotifier returns nil when no webhook is configured
func buildNotifier(cfg *config.Config) (*notify.Manager, error) {
	on, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, withExitCode(ExitConfigError, "%w", err)
	}

	m := notify.NewManager(on)
	if cfg.Notify.Slack.Webhook != "" {
		var opts []notify.SlackOption
		if cfg.Notify.Slack.Channel != "" {
			opts = append(opts, notify.WithSlackChannel(cfg.Notify.Slack.Channel))
		}
		m.AddNotifier(notify.NewSlackNotifier(cfg.Notify.Slack.Webhook, opts...))
	}
	if cfg.Notify.Teams.Webhook != "" {
		m.AddNotifier(notify.NewTeamsNotifier(cfg.Notify.Teams.Webhook))
	}

	if m.Len() == 0 {
		return nil, nil
	}
	return m, nil
}

// suite holds what one invocation reuses across watch iterations
type suite struct {
	cfg       *config.Config
	dotenv    *env.Reloader
	formatter *output.ConsoleFormatter
	logger    *slog.Logger
	history   *db.Client
	notifier  *notify.Manager
	// live is served at /metrics in watch mode; nil otherwise
	live *metrics.PrometheusExporter
}

func (s *suite) close() {
	if s.history != nil {
		_ = s.history.Close()
	}
}

func newSuite(cmd *cobra.Command, cfg *config.Config, dotenv *env.Reloader) (*suite, error) {
	s := &suite{
		cfg:    cfg,
		dotenv: dotenv,
		formatter: output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(noColorFlag),
		),
		logger: logging.Setup(cmd.ErrOrStderr(), logging.Options{
			Verbose: verboseFlag > 0,
			NoColor: noColorFlag,
		}),
	}

	if cfg.IsDefault() {
		s.logger.Debug("no settings given, using built-in defaults", "base_url", cfg.BaseURL)
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}
	s.notifier = notifier

	history, err := openHistory(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	s.history = history

	return s, nil
}

// openHistory returns nil when path is empty
func openHistory(path string) (*db.Client, error) {
	if path == "" {
		return nil, nil
	}
	history, err := db.NewClient(path)
	if err != nil {
		return nil, withExitCode(ExitConfigError, "opening history: %w", err)
	}
	return history, nil
}

// reload swaps in a freshly loaded config. The notifier and the history
// database are rebuilt when their settings changed.
func (s *suite) reload(cfg *config.Config) error {
	notifier := s.notifier
	if cfg.Notify != s.cfg.Notify {
		var err error
		if notifier, err = buildNotifier(cfg); err != nil {
			return err
		}
	}

	if cfg.HistoryDB != s.cfg.HistoryDB {
		history, err := openHistory(cfg.HistoryDB)
		if err != nil {
			return err
		}
		s.close()
		s.history = history
		s.logger.Debug("history database changed", "path", cfg.HistoryDB)
	}

	s.notifier = notifier
	s.cfg = cfg
	return nil
}

// execute runs the suite once and writes every configured artifact
func (s *suite) execute(ctx context.Context) (*runner.RunResult, error) {
	cfg := s.cfg
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return nil, withExitCode(ExitConfigError, "%w", err)
	}

	r := runner.NewRunner(&runner.Config{
		BaseURL:        cfg.BaseURL,
		APIPrefix:      cfg.APIPrefix,
		RootMarker:     cfg.RootMarker,
		Timeout:        timeout,
		Rate:           cfg.Rate,
		FollowRedirect: cfg.GetFollowRedirects(),
		ValidateSSL:    cfg.GetValidateSSL(),
		Proxy:          cfg.Proxy,
		DefaultHeaders: cfg.Headers,
		Observer:       s.formatter,
		Logger:         s.logger,
	})

	run := r.Run(ctx)
	s.formatter.FormatSummary(run.Summarize())

	if err := output.SaveResults(cfg.ResultsFile, run); err != nil {
		return run, withExitCode(ExitOutputError, "saving results: %w", err)
	}
	s.formatter.FormatSaved(cfg.ResultsFile)

	if cfg.JUnitFile != "" {
		if err := output.SaveJUnit(cfg.JUnitFile, run); err != nil {
			return run, withExitCode(ExitOutputError, "writing JUnit report: %w", err)
		}
		s.logger.Debug("junit report written", "path", cfg.JUnitFile)
	}

	if cfg.TAPFile != "" {
		if err := output.SaveTAP(cfg.TAPFile, run); err != nil {
			return run, withExitCode(ExitOutputError, "writing TAP report: %w", err)
		}
		s.logger.Debug("tap report written", "path", cfg.TAPFile)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteRun(cfg.MetricsFile, run); err != nil {
			return run, withExitCode(ExitOutputError, "writing metrics: %w", err)
		}
		s.logger.Debug("metrics written", "path", cfg.MetricsFile)
	}

	if cfg.Datadog.APIKey != "" {
		dd := metrics.NewDataDogExporter(
			metrics.WithDataDogAPIKey(cfg.Datadog.APIKey),
			metrics.WithDataDogSite(cfg.Datadog.Site),
			metrics.WithDataDogTags(cfg.Datadog.Tags),
			metrics.WithDataDogTarget(run.BaseURL),
		)
		if err := metrics.ExportRun(run, dd); err != nil {
			s.logger.Warn("pushing metrics to DataDog failed", "err", err)
		}
	}

	if s.live != nil {
		s.live.ResetCases()
		if err := metrics.ExportRun(run, s.live); err != nil {
			s.logger.Warn("updating served metrics failed", "err", err)
		}
	}

	s.recordHistory(ctx, run)
	s.notify(ctx, run)

	return run, nil
}

// recordHistory stores the run and seeds the notifier with the previous
// outcome. History problems never fail the run.
func (s *suite) recordHistory(ctx context.Context, run *runner.RunResult) {
	if s.history == nil {
		return
	}

	prev, err := s.history.LastRun(ctx, run.BaseURL, run.ID)
	if err != nil {
		s.logger.Warn("reading run history failed", "err", err)
	} else if prev != nil && s.notifier != nil {
		s.notifier.SetLastState(prev.AllPassed())
	}

	if err := s.history.SaveRun(ctx, run); err != nil {
		s.logger.Warn("saving run history failed", "err", err)
	}
}

func (s *suite) notify(ctx context.Context, run *runner.RunResult) {
	if s.notifier == nil {
		return
	}

	sent, err := s.notifier.Notify(ctx, notify.SummaryFromRun(run))
	if err != nil {
		s.logger.Warn("failed to send notification", "err", err)
	}
	if sent {
		s.logger.Debug("notification sent", "run_id", run.ID)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	if metricsAddrFlag != "" && !watchFlag {
		return withExitCode(ExitUsageError, "--metrics-addr needs --watch")
	}

	var dotenv *env.Reloader
	if envFileFlag != "" {
		dotenv = env.NewReloader(envFileFlag)
	}

	cfg, err := loadRunConfig(dotenv)
	if err != nil {
		return err
	}

	s, err := newSuite(cmd, cfg, dotenv)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddrFlag != "" {
		s.live = metrics.NewPrometheusExporter(metrics.WithPrometheusTarget(cfg.BaseURL))
		addr, err := serveMetrics(ctx, metricsAddrFlag, s.live.Handler(), s.logger)
		if err != nil {
			return withExitCode(ExitUsageError, "serving metrics: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics at http://%s/metrics\n\n", addr)
	}

	run, err := s.execute(ctx)
	if err != nil {
		return err
	}

	if !watchFlag {
		if strictFlag && !run.Summarize().AllPassed() {
			return withExitCode(ExitTestFailure, "%d check(s) failed", run.Summarize().Failed)
		}
		return nil
	}

	return watch(ctx, cmd, s)
}

// watchedFiles returns the config and env files that trigger a re-run
func watchedFiles() []string {
	var files []string
	cfgPath := configFlag
	if cfgPath == "" {
		cfgPath = config.FindConfigFile(".")
	}
	for _, f := range []string{cfgPath, envFileFlag} {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			files = append(files, abs)
		}
	}
	return files
}

// watch re-runs the suite whenever a watched file is written, until ctx ends
func watch(ctx context.Context, cmd *cobra.Command, s *suite) error {
	files := watchedFiles()
	if len(files) == 0 {
		return withExitCode(ExitUsageError, "--watch needs a config file or --env-file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch parent directories so editors that replace files are still seen
	watched := make(map[string]bool)
	targets := make(map[string]bool)
	for _, f := range files {
		targets[f] = true
		dir := filepath.Dir(f)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.formatter.FormatError(fmt.Errorf("failed to watch %s: %w", dir, err))
			continue
		}
		watched[dir] = true
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan struct{}, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[event.Name] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			fmt.Fprintf(cmd.OutOrStdout(), "\nChange detected, re-running...\n\n")
			cfg, err := loadRunConfig(s.dotenv)
			if err == nil {
				err = s.reload(cfg)
			}
			if err != nil {
				s.formatter.FormatError(err)
			} else if _, err := s.execute(ctx); err != nil {
				s.formatter.FormatError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.formatter.FormatError(fmt.Errorf("watcher error: %w", err))
		}
	}
}

// serveMetrics listens on addr and serves handler at /metrics until ctx ends.
// It returns the bound address, which differs from addr for port 0.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), nil
}
