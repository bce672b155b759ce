// Package metrics exposes the limiter's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/dynamic-fps/internal/hysteresis"
	"github.com/GriffinCanCode/dynamic-fps/internal/resilience"
)

const namespace = "fpslimiter"

// Metrics holds every collector. A nil *Metrics records nothing.
type Metrics struct {
	mode             prometheus.Gauge
	transitions      *prometheus.CounterVec
	averages         *prometheus.GaugeVec
	lastScore        prometheus.Gauge
	scores           prometheus.Histogram
	cycleDuration    prometheus.Histogram
	overruns         prometheus.Counter
	captureFailures  prometheus.Counter
	scoreFailures    prometheus.Counter
	actuatorFailures prometheus.Counter
	targetAcquired   prometheus.Gauge
	resets           prometheus.Counter
	breakerState     *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Intended frame-rate mode (0 = high, 1 = low)",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Mode transitions by destination mode",
		}, []string{"to"}),
		averages: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_average",
			Help:      "Rolling score mean by window",
		}, []string{"window"}),
		lastScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score_last",
			Help:      "Most recent frame-to-frame similarity score",
		}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of frame-to-frame similarity scores",
			Buckets:   []float64{0, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Work time of one sampling cycle",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.04, 0.08, 0.16},
		}),
		overruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_overruns_total",
			Help:      "Cycles whose work exceeded the sampling period",
		}),
		captureFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_failures_total",
			Help:      "Cycles skipped because capture failed",
		}),
		scoreFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_failures_total",
			Help:      "Cycles skipped because scoring failed",
		}),
		actuatorFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_failures_total",
			Help:      "Mode assertions the actuator rejected",
		}),
		targetAcquired: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_acquired",
			Help:      "1 while the target window is found",
		}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_resets_total",
			Help:      "Controller resets caused by losing the target window",
		}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 = closed, 1 = open, 2 = half-open)",
		}, []string{"breaker"}),
	}
}

// Handler serves the collectors gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveScore records a score and the averages it produced.
func (m *Metrics) ObserveScore(score, avgLong, avgShort float64) {
	if m == nil {
		return
	}
	m.lastScore.Set(score)
	m.scores.Observe(score)
	m.averages.WithLabelValues("long").Set(avgLong)
	m.averages.WithLabelValues("short").Set(avgShort)
}

// ObserveTransition records a mode change.
func (m *Metrics) ObserveTransition(c hysteresis.ModeChange) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(c.To.String()).Inc()
	m.mode.Set(float64(c.To))
	if c.ActuatorErr != nil {
		m.actuatorFailures.Inc()
	}
}

// ObserveCycle records how long one cycle's work took.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

// Overrun counts a cycle that missed its deadline.
func (m *Metrics) Overrun() {
	if m == nil {
		return
	}
	m.overruns.Inc()
}

// CaptureFailed counts a skipped capture.
func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.captureFailures.Inc()
}

// ScoreFailed counts a skipped score.
func (m *Metrics) ScoreFailed() {
	if m == nil {
		return
	}
	m.scoreFailures.Inc()
}

// ActuatorFailed counts a rejected assertion outside a transition, such as a reassert.
func (m *Metrics) ActuatorFailed() {
	if m == nil {
		return
	}
	m.actuatorFailures.Inc()
}

// SetAcquired records whether the target is found.
func (m *Metrics) SetAcquired(acquired bool) {
	if m == nil {
		return
	}
	if acquired {
		m.targetAcquired.Set(1)
	} else {
		m.targetAcquired.Set(0)
	}
}

// Reset records a controller reset; the mode returns to high.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
	m.mode.Set(float64(hysteresis.High))
}

// BreakerHook returns a resilience state-change hook reporting breaker name.
func (m *Metrics) BreakerHook(name string) func(from, to resilience.State) {
	return func(_, to resilience.State) {
		if m == nil {
			return
		}
		m.breakerState.WithLabelValues(name).Set(float64(to))
	}
}
