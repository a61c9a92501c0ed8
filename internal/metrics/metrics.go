// Package metrics exposes Prometheus collectors for the bot's stages. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guessrank"

// Metrics owns a private registry so tests and multiple daemons never collide
// on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	queueDepth        prometheus.Gauge
	activeTransforms  prometheus.Gauge
	transforms        *prometheus.CounterVec
	transformDuration prometheus.Histogram
	submissions       *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	votes             *prometheus.CounterVec
	clipsExpired      prometheus.Counter
	sideEffects       *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
}

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "transform_queue_depth",
			Help: "Submissions waiting for a transform slot",
		}),
		activeTransforms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "transform_active",
			Help: "Transforms currently holding a slot",
		}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transforms_total",
			Help: "Finished transforms by outcome",
		}, []string{"outcome"}),
		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "transform_duration_seconds",
			Help:    "Wall time of ffmpeg transforms",
			Buckets: []float64{5, 10, 20, 30, 60, 90, 120, 180, 240, 300},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "submissions_total",
			Help: "Submissions by outcome",
		}, []string{"outcome"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "moderation_decisions_total",
			Help: "Moderation decisions by kind",
		}, []string{"decision"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "votes_total",
			Help: "Vote attempts by outcome",
		}, []string{"outcome"}),
		clipsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "clips_expired_total",
			Help: "Clips expired and scored by the sweep",
		}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "side_effect_failures_total",
			Help: "Best-effort side effects that failed",
		}, []string{"effect"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queueDepth, m.activeTransforms, m.transforms, m.transformDuration,
		m.submissions, m.decisions, m.votes, m.clipsExpired, m.sideEffects, m.sweepDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetQueue(active, waiting int) {
	if m == nil {
		return
	}
	m.activeTransforms.Set(float64(active))
	m.queueDepth.Set(float64(waiting))
}

func (m *Metrics) ObserveTransform(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transforms.WithLabelValues(outcome).Inc()
	m.transformDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Decision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) Vote(outcome string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClipsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clipsExpired.Add(float64(n))
}

func (m *Metrics) SideEffectFailed(effect string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(effect).Inc()
}

func (m *Metrics) ObserveSweep(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(elapsed.Seconds())
}
