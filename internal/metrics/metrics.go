// Package metrics provides Prometheus metrics collection for the stroke-risk front-end.
// It defines the assessment, form, model and live-viewer metrics exposed on the
// /metrics endpoint of both binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Assessment metrics
	AssessmentsTotal   *prometheus.CounterVec // Completed assessments by risk band
	FormErrors         *prometheus.CounterVec // Rejected form submissions by field
	AssessmentDuration prometheus.Histogram   // Submit-to-render duration in seconds

	// ML and prediction metrics
	MLPredictions      prometheus.Counter   // Total number of model predictions made
	MLFailures         prometheus.Counter   // Total number of model prediction failures
	MLModelAge         prometheus.Gauge     // Age of the loaded model artifact in seconds
	MLLatency          prometheus.Histogram // Model prediction latency in seconds
	MLPredictionScores prometheus.Histogram // Distribution of positive-class probabilities
	MLTimeouts         prometheus.Counter   // Total number of model prediction timeouts
	MLFallbackUse      prometheus.Counter   // Total number of times the fallback model answered

	// Live feed metrics
	LiveViewers prometheus.Gauge // Connected websocket viewers

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		AssessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assessments_total",
			Help: "Total number of completed risk assessments by band",
		}, []string{"band"}),
		FormErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "form_errors_total",
			Help: "Total number of rejected form fields",
		}, []string{"field"}),
		AssessmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_duration_seconds",
			Help:    "Duration of a full assessment request in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the current ML model in seconds",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of predicted stroke probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_timeouts_total",
			Help: "Total number of ML prediction timeouts",
		}),
		MLFallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_fallback_use_total",
			Help: "Total number of times ML fallback was used",
		}),
		LiveViewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "live_viewers",
			Help: "Number of connected live statistics viewers",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// RecordFormErrors counts each rejected field of a submission.
func (m *Metrics) RecordFormErrors(fields map[string]string) {
	for field := range fields {
		m.FormErrors.WithLabelValues(field).Inc()
	}
}
