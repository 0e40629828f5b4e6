package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pagedesk/pkg/logger"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace times one operation and its named steps.
type Trace struct {
	Name     string
	Start    time.Time
	Steps    []Step
	lastMark time.Time
	done     int32
}

var (
	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagedesk",
			Name:      "operation_duration_seconds",
			Help:      "Duration of traced operations.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagedesk",
			Name:      "operation_step_duration_seconds",
			Help:      "Duration of named steps inside traced operations.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op", "step"},
	)
	slowOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedesk",
			Name:      "operation_slow_total",
			Help:      "Traced operations slower than the slow threshold.",
		},
		[]string{"op"},
	)

	slowThreshold atomic.Int64
)

func init() {
	prometheus.MustRegister(opDuration, stepDuration, slowOps)
	slowThreshold.Store(int64(200 * time.Millisecond))
}

// SetSlowThreshold sets the duration above which finished traces are logged.
// Zero or negative disables slow logging.
func SetSlowThreshold(d time.Duration) {
	slowThreshold.Store(int64(d))
}

// SlowThreshold returns the current slow threshold.
func SlowThreshold() time.Duration {
	return time.Duration(slowThreshold.Load())
}

// Track starts a new trace.
func Track(name string) *Trace {
	now := time.Now()
	return &Trace{Name: name, Start: now, lastMark: now}
}

// Mark records the time since the previous mark as step name.
func (t *Trace) Mark(name string) {
	if t == nil {
		return
	}
	now := time.Now()
	d := now.Sub(t.lastMark)
	t.lastMark = now
	t.Steps = append(t.Steps, Step{Name: name, Duration: float64(d.Microseconds()) / 1000})
	stepDuration.WithLabelValues(t.Name, name).Observe(d.Seconds())
}

// Finish records the total duration. Calling it more than once is a no-op.
func (t *Trace) Finish() time.Duration {
	if t == nil || !atomic.CompareAndSwapInt32(&t.done, 0, 1) {
		return 0
	}
	total := time.Since(t.Start)
	opDuration.WithLabelValues(t.Name).Observe(total.Seconds())
	if th := SlowThreshold(); th > 0 && total > th {
		slowOps.WithLabelValues(t.Name).Inc()
		logger.Warn("slow_operation", "op", t.Name, "total_ms", total.Milliseconds(), "steps", t.Steps)
	}
	return total
}
