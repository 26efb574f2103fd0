// Package metrics holds the prometheus collectors of the planner service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// Optimization modes.
const (
	ModeSync      = "sync"
	ModeAsync     = "async"
	ModeStateless = "stateless"
)

// Recorder owns the optimizer collectors.  The zero value is not usable;
// create one with NewRecorder.
type Recorder struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	moved      prometheus.Histogram
	violations *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.  A nil reg
// leaves them unregistered, which is what tests want.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_optimizations_total",
			Help: "Optimization runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seating_optimization_duration_seconds",
			Help:    "Wall time of one engine call.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"mode"}),
		moved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seating_moved_guests",
			Help:    "Guests whose table changed in a proposal.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seating_violations_total",
			Help: "Violations reported in proposals, by severity.",
		}, []string{"severity"}),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.duration, r.moved, r.violations)
	}
	return r
}

// Observe records one finished engine call.
func (r *Recorder) Observe(mode string, took time.Duration, res seating.OptimizationResult) {
	if r == nil {
		return
	}
	outcome := "ok"
	if res.HasCritical() {
		outcome = "critical"
	}
	r.runs.WithLabelValues(mode, outcome).Inc()
	r.duration.WithLabelValues(mode).Observe(took.Seconds())
	r.moved.Observe(float64(len(res.MovedGuestIDs)))
	for _, v := range res.Violations {
		r.violations.WithLabelValues(string(v.Severity)).Inc()
	}
}

// Failed records a run that never produced a result.
func (r *Recorder) Failed(mode string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(mode, "failed").Inc()
}
