package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jp3tty/FraudDocAI/internal/core/domain"
)

// WorkerMetrics also serves as the analysis observer of the coordinator.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	analysisInFlight prometheus.Gauge
	classifierTotal  *prometheus.CounterVec
	fraudScore       prometheus.Histogram
	riskLevelTotal   *prometheus.CounterVec
	degradedTotal    prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "frauddoc",
			Subsystem: "worker",
			Name:      "analysis_total",
			Help:      "Total analysis attempts by result.",
		},
		[]string{"service", "result"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "frauddoc",
			Subsystem: "worker",
			Name:      "analysis_duration_seconds",
			Help:      "Analysis attempt duration in seconds by result.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	analysisInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "frauddoc",
			Subsystem:   "worker",
			Name:        "analysis_in_flight",
			Help:        "Number of in-flight analysis tasks.",
			ConstLabels: constLabels,
		},
	)
	classifierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "frauddoc",
			Subsystem:   "classifier",
			Name:        "calls_total",
			Help:        "Emotion classifier calls by outcome (ok, timeout, unavailable).",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	fraudScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "frauddoc",
			Subsystem:   "analysis",
			Name:        "fraud_score",
			Help:        "Distribution of persisted fraud scores.",
			Buckets:     []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	riskLevelTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "frauddoc",
			Subsystem:   "analysis",
			Name:        "risk_level_total",
			Help:        "Persisted verdicts by risk level.",
			ConstLabels: constLabels,
		},
		[]string{"risk_level"},
	)
	degradedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "frauddoc",
			Subsystem:   "analysis",
			Name:        "degraded_total",
			Help:        "Processed verdicts scored without emotion input.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(analysisTotal, analysisDuration, analysisInFlight, classifierTotal, fraudScore, riskLevelTotal, degradedTotal)

	return &WorkerMetrics{
		service:          service,
		registry:         registry,
		analysisTotal:    analysisTotal,
		analysisDuration: analysisDuration,
		analysisInFlight: analysisInFlight,
		classifierTotal:  classifierTotal,
		fraudScore:       fraudScore,
		riskLevelTotal:   riskLevelTotal,
		degradedTotal:    degradedTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartAnalysis() {
	m.analysisInFlight.Inc()
}

// FinishAnalysis records one attempt. result is "success", "skipped",
// "persistence_error" or "error".
func (m *WorkerMetrics) FinishAnalysis(result string, duration time.Duration) {
	m.analysisInFlight.Dec()
	if result == "" {
		result = "unknown"
	}
	m.analysisTotal.WithLabelValues(m.service, result).Inc()
	m.analysisDuration.WithLabelValues(m.service, result).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ClassifierCompleted(outcome string) {
	m.classifierTotal.WithLabelValues(outcome).Inc()
}

func (m *WorkerMetrics) AnalysisCompleted(outcome domain.AnalysisOutcome) {
	if outcome.Status != domain.StatusProcessed || outcome.FraudScore == nil || outcome.RiskLevel == nil {
		m.riskLevelTotal.WithLabelValues("none").Inc()
		return
	}
	m.fraudScore.Observe(*outcome.FraudScore)
	m.riskLevelTotal.WithLabelValues(string(*outcome.RiskLevel)).Inc()
	if outcome.Degraded() {
		m.degradedTotal.Inc()
	}
}
