package runner

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyStats summarizes request durations of a run
type LatencyStats struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// LatencyRecorder records durations in microseconds, from 1µs to 60s
type LatencyRecorder struct {
	histogram *hdrhistogram.Histogram
}

func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// Record adds one duration; values outside the trackable range are clamped
func (l *LatencyRecorder) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > l.histogram.HighestTrackableValue() {
		us = l.histogram.HighestTrackableValue()
	}
	_ = l.histogram.RecordValue(us)
}

func (l *LatencyRecorder) Stats() LatencyStats {
	h := l.histogram
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}
