package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-orienter/internal/orienter"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects orientation request metrics on a private registry.
type Metrics struct {
	registry    *prom.Registry
	predictions *prom.CounterVec
	failures    *prom.CounterVec
	duration    prom.Histogram
}

// NewMetrics creates the collectors and registers them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		predictions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "face_orienter",
			Name:      "predictions_total",
			Help:      "Orientation predictions by label, confidence and source.",
		}, []string{"orientation", "confident", "source"}),
		failures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "face_orienter",
			Name:      "failures_total",
			Help:      "Failed orientation requests by reason.",
		}, []string{"reason"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "face_orienter",
			Name:      "orient_duration_seconds",
			Help:      "Time spent detecting, predicting and encoding one image.",
			Buckets:   prom.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.failures,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePrediction counts a successful request.
func (m *Metrics) ObservePrediction(p orienter.Prediction, d time.Duration) {
	m.predictions.WithLabelValues(p.Orientation.String(), strconv.FormatBool(p.Confident), p.Source).Inc()
	m.duration.Observe(d.Seconds())
}

// ObserveFailure counts a failed request.
func (m *Metrics) ObserveFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
