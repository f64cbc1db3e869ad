// Package notify sends run summaries to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caugusteg/smokecheck/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when tests pass
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after a failed one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name; empty means failure
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(s) {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return NotifyOn(s), nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// RunSummary represents the summary of a test run for notifications
type RunSummary struct {
	RunID         string        `json:"run_id"`
	BaseURL       string        `json:"base_url"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	PassRate      float64       `json:"pass_rate"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// FailedTest represents a failed test for notifications
type FailedTest struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

// SummaryFromRun builds the notification payload for run
func SummaryFromRun(run *runner.RunResult) *RunSummary {
	s := run.Summarize()
	summary := &RunSummary{
		RunID:       run.ID,
		BaseURL:     run.BaseURL,
		TotalTests:  s.Total,
		PassedTests: s.Passed,
		FailedTests: s.Failed,
		PassRate:    s.PassRate,
		Duration:    run.Duration,
	}
	for _, f := range s.Failures {
		summary.FailedResults = append(summary.FailedResults, FailedTest{Name: f.Test, Details: f.Details})
	}
	return summary
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of configured notifiers
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// SetLastState seeds the outcome of the previous run, typically from the
// run history, so recovery can be detected across processes.
func (m *Manager) SetLastState(passed bool) {
	m.lastState = passed
}

// Notify sends notifications based on the configured policy. It returns
// whether anything was sent and the errors of notifiers that failed.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) (bool, error) {
	shouldNotify := false
	currentSuccess := summary.FailedTests == 0

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
		summary.IsRecovery = !m.lastState && currentSuccess
	case NotifyFailure:
		shouldNotify = summary.FailedTests > 0
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		// Notify if recovering from failure
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		// Also notify on failure
		if summary.FailedTests > 0 {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify || len(m.notifiers) == 0 {
		return false, nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	return true, errors.Join(errs...)
}
