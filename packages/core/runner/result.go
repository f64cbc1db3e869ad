package runner

import (
	"time"
)

// TimestampLayout is ISO-8601 local time with no zone. The microsecond
// fraction is always written, even when it is zero, so every timestamp has
// the same width.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// TestResult is the outcome of one executed case. Only the tagged fields
// are written to the results file.
type TestResult struct {
	Test         string `json:"test"`
	Success      bool   `json:"success"`
	Details      string `json:"details"`
	Timestamp    string `json:"timestamp"`
	ResponseData any    `json:"response_data"`

	Duration   time.Duration `json:"-"`
	StatusCode int           `json:"-"`
}

// RunResult holds everything one run produced
type RunResult struct {
	ID        string
	BaseURL   string
	StartedAt time.Time
	Duration  time.Duration
	Results   []*TestResult
}

// Summary aggregates a run's results
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	PassRate float64 // percent, 0 when nothing ran
	Failures []*TestResult
	Latency  LatencyStats
}

// Summarize computes counts, pass rate, failed cases and latency percentiles
func (r *RunResult) Summarize() *Summary {
	s := &Summary{Total: len(r.Results)}
	latency := NewLatencyRecorder()

	for _, res := range r.Results {
		if res.Success {
			s.Passed++
		} else {
			s.Failed++
			s.Failures = append(s.Failures, res)
		}
		if res.Duration > 0 {
			latency.Record(res.Duration)
		}
	}

	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total) * 100
	}
	s.Latency = latency.Stats()
	return s
}

// AllPassed reports whether the run had no failed case
func (s *Summary) AllPassed() bool {
	return s.Failed == 0
}
