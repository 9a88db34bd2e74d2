package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chartflow"

// Anomaly kinds.
const (
	AnomalyGap      = "gap"
	AnomalyScale    = "scale"
	AnomalyOrdering = "ordering"
	AnomalyPanic    = "panic"
)

// Metrics contains all Prometheus metrics for the collector and consolidator.
type Metrics struct {
	EventsEmitted    *prometheus.CounterVec
	EventsSuppressed *prometheus.CounterVec
	EventsForced     *prometheus.CounterVec
	Anomalies        *prometheus.CounterVec

	WriterLines  *prometheus.CounterVec
	WriterErrors *prometheus.CounterVec
	WriterDepth  prometheus.Gauge

	Frames           *prometheus.CounterVec
	BridgeConnected  prometheus.Gauge
	BridgeReconnects prometheus.Counter

	ConsolidateLines    *prometheus.CounterVec
	ConsolidateDuration prometheus.Histogram
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events passed by the write gate",
		}, []string{"source", "type"}),
		EventsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_suppressed_total",
			Help:      "Events dropped by the write gate as duplicates",
		}, []string{"source", "type"}),
		EventsForced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_forced_total",
			Help:      "Events written because their bar closed",
		}, []string{"source", "type"}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Data anomalies by source and kind",
		}, []string{"source", "kind"}),

		WriterLines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_lines_total",
			Help:      "Lines appended to per-source files",
		}, []string{"type"}),
		WriterErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_errors_total",
			Help:      "Events dropped on I/O failure",
		}, []string{"op"}),
		WriterDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "writer_buffer_depth",
			Help:      "Events queued for the writer",
		}),

		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Host frames by routing result",
		}, []string{"result"}),
		BridgeConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_connected",
			Help:      "1 when the host bridge is connected",
		}),
		BridgeReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_reconnects_total",
			Help:      "Host bridge reconnect attempts",
		}),

		ConsolidateLines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidate_lines_total",
			Help:      "Source lines seen by the consolidator by result",
		}, []string{"result"}),
		ConsolidateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consolidate_duration_seconds",
			Help:      "Consolidation run duration",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordGate records one write-gate decision.
func (m *Metrics) RecordGate(source, eventType, decision string) {
	if m == nil {
		return
	}
	switch decision {
	case "suppress":
		m.EventsSuppressed.WithLabelValues(source, eventType).Inc()
	case "forced":
		m.EventsForced.WithLabelValues(source, eventType).Inc()
		m.EventsEmitted.WithLabelValues(source, eventType).Inc()
	default:
		m.EventsEmitted.WithLabelValues(source, eventType).Inc()
	}
}

// RecordAnomaly increments the anomaly counter.
func (m *Metrics) RecordAnomaly(source, kind string) {
	if m == nil {
		return
	}
	m.Anomalies.WithLabelValues(source, kind).Inc()
}

// RecordWrite increments the written line counter.
func (m *Metrics) RecordWrite(eventType string) {
	if m == nil {
		return
	}
	m.WriterLines.WithLabelValues(eventType).Inc()
}

// RecordWriteError increments the writer error counter.
func (m *Metrics) RecordWriteError(op string) {
	if m == nil {
		return
	}
	m.WriterErrors.WithLabelValues(op).Inc()
}

// SetWriterDepth records the writer queue length.
func (m *Metrics) SetWriterDepth(n int) {
	if m == nil {
		return
	}
	m.WriterDepth.Set(float64(n))
}

// RecordFrame increments the frame counter for result.
func (m *Metrics) RecordFrame(result string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(result).Inc()
}

// SetBridgeConnected records the bridge connection state.
func (m *Metrics) SetBridgeConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.BridgeConnected.Set(1)
	} else {
		m.BridgeConnected.Set(0)
	}
}

// RecordReconnect increments the reconnect counter.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.BridgeReconnects.Inc()
}

// RecordConsolidate adds n lines with the given result.
func (m *Metrics) RecordConsolidate(result string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.ConsolidateLines.WithLabelValues(result).Add(float64(n))
}

// ObserveConsolidate records a run duration in seconds.
func (m *Metrics) ObserveConsolidate(seconds float64) {
	if m == nil {
		return
	}
	m.ConsolidateDuration.Observe(seconds)
}
