package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//Run outcomes used as the "outcome" label
const (
	OutcomeAnalyzed          = "analyzed"
	OutcomeSourceUnavailable = "source_unavailable"
	OutcomeWriteFailure      = "write_failure"
	OutcomeFailed            = "failed"
)

//Metrics holds the analyzer's prometheus collectors on a private registry.
//All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	runs            *prometheus.CounterVec
	framesAnalyzed  prometheus.Counter
	framesRead      prometheus.Counter
	detectionFaults prometheus.Counter
	runDuration     prometheus.Histogram
	lastAverage     prometheus.Gauge
}

//New creates a Metrics instance with all collectors registered
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "match_analyzer_runs_total",
			Help: "Analysis runs by outcome",
		}, []string{"outcome"}),
		framesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "match_analyzer_frames_analyzed_total",
			Help: "Frames submitted to the detector",
		}),
		framesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "match_analyzer_frames_read_total",
			Help: "Frames pulled from video sources",
		}),
		detectionFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "match_analyzer_detection_faults_total",
			Help: "Frames whose detection failed and were recorded with zero people",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "match_analyzer_run_duration_seconds",
			Help:    "Wall clock duration of analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		lastAverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "match_analyzer_last_average_players",
			Help: "Average players detected by the most recent successful run",
		}),
	}

	m.registry.MustRegister(m.runs, m.framesAnalyzed, m.framesRead, m.detectionFaults, m.runDuration, m.lastAverage)

	return m
}

//RunFinished records a run outcome and its wall clock duration
func (m *Metrics) RunFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(seconds)
}

//FrameRead counts a frame pulled from a source
func (m *Metrics) FrameRead() {
	if m == nil {
		return
	}
	m.framesRead.Inc()
}

//FrameAnalyzed counts a frame submitted to the detector
func (m *Metrics) FrameAnalyzed() {
	if m == nil {
		return
	}
	m.framesAnalyzed.Inc()
}

//DetectionFault counts a failed per-frame detection
func (m *Metrics) DetectionFault() {
	if m == nil {
		return
	}
	m.detectionFaults.Inc()
}

//SetLastAverage stores the average reported by the latest run
func (m *Metrics) SetLastAverage(avg float64) {
	if m == nil {
		return
	}
	m.lastAverage.Set(avg)
}

//Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

//Handler returns the prometheus exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
