// Package metrics exposes Prometheus instrumentation for the lead
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
)

const namespace = "fieldsnap"

// Recorder records pipeline metrics on its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	leads    *prometheus.CounterVec
	stages   *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Extraction provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Leads reaching a terminal status, by status and qualification.",
		}, []string{"status", "qualification"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage durations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
	reg.MustRegister(
		r.attempts, r.leads, r.stages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveAttempt records one extraction provider call.
func (r *Recorder) ObserveAttempt(provider string, err error, _ time.Duration) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(provider, Outcome(err)).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage model.Stage, d time.Duration) {
	if r == nil {
		return
	}
	r.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveLead counts a lead that reached a terminal status.
func (r *Recorder) ObserveLead(status model.ProcessingStatus, qual model.Qualification) {
	if r == nil {
		return
	}
	q := string(qual)
	if q == "" {
		q = "none"
	}
	r.leads.WithLabelValues(string(status), q).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Outcome labels a provider attempt result.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch resilience.KindOf(err) {
	case resilience.KindRateLimited:
		return "rate_limited"
	case resilience.KindTimeout:
		return "timeout"
	case resilience.KindUnavailable:
		return "unavailable"
	}
	return "error"
}
