package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	m.RecordGate("es_1m", "bar", "first")
	m.RecordAnomaly("es_1m", AnomalyGap)
	m.RecordWrite("bar")
	m.RecordWriteError("open")
	m.SetWriterDepth(3)
	m.RecordFrame("routed")
	m.SetBridgeConnected(true)
	m.RecordReconnect()
	m.RecordConsolidate("merged", 4)
	m.ObserveConsolidate(1.5)
}

func TestRecordGate(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordGate("es_1m", "bar", "first")
	m.RecordGate("es_1m", "bar", "forced")
	m.RecordGate("es_1m", "bar", "suppress")
	m.RecordGate("es_1m", "bar", "suppress")

	if got := testutil.ToFloat64(m.EventsEmitted.WithLabelValues("es_1m", "bar")); got != 2 {
		t.Errorf("emitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsForced.WithLabelValues("es_1m", "bar")); got != 1 {
		t.Errorf("forced = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsSuppressed.WithLabelValues("es_1m", "bar")); got != 2 {
		t.Errorf("suppressed = %v, want 2", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordAnomaly("es_1m", AnomalyScale)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `chartflow_anomalies_total{kind="scale",source="es_1m"} 1`) {
		t.Errorf("metrics output missing anomaly counter:\n%s", rec.Body.String())
	}
}
