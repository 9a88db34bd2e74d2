package host

import "testing"

func v(x float64) *float64 { return &x }

func TestMemory_RecordAndRead(t *testing.T) {
	m := NewMemory(10)
	m.Record(Frame{Source: "es_1m", Symbol: "ES", Bar: 5, Series: map[string]*float64{"close": v(5300), "volume": nil}})

	got, ok := m.ReadSeries("es_1m", "close", 5)
	if !ok || got != 5300 {
		t.Errorf("ReadSeries(close) = (%v, %v), want (5300, true)", got, ok)
	}
	if _, ok := m.ReadSeries("es_1m", "volume", 5); ok {
		t.Error("ReadSeries(volume) ok = true for null value")
	}
	if _, ok := m.ReadSeries("es_1m", "close", 6); ok {
		t.Error("ReadSeries on unknown bar ok = true")
	}
	if _, ok := m.ReadSeries("nq_1m", "close", 5); ok {
		t.Error("ReadSeries on unknown source ok = true")
	}
}

func TestMemory_MergesIntrabarFrames(t *testing.T) {
	m := NewMemory(10)
	m.Record(Frame{Source: "es_1m", Bar: 5, SessionStart: true, Series: map[string]*float64{"open": v(1), "close": v(2)}})
	m.Record(Frame{Source: "es_1m", Bar: 5, Closed: true, Series: map[string]*float64{"close": v(3)}})

	view := m.View("es_1m")
	if got, _ := view.ReadSeries("es_1m", "open", 5); got != 1 {
		t.Errorf("open = %v, want 1", got)
	}
	if got, _ := view.ReadSeries("es_1m", "close", 5); got != 3 {
		t.Errorf("close = %v, want 3", got)
	}
	if !view.BarHasClosed(5) {
		t.Error("BarHasClosed(5) = false, want true")
	}
	if !view.IsNewSessionBoundary(5) {
		t.Error("IsNewSessionBoundary(5) = false, want latched true")
	}
	if view.BarHasClosed(4) {
		t.Error("BarHasClosed(4) = true for unknown bar")
	}
}

func TestMemory_Retention(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 10; i++ {
		m.Record(Frame{Source: "es_1m", Bar: i, Series: map[string]*float64{"close": v(float64(i))}})
	}

	if _, ok := m.ReadSeries("es_1m", "close", 6); ok {
		t.Error("bar 6 should be evicted")
	}
	for i := 7; i < 10; i++ {
		if _, ok := m.ReadSeries("es_1m", "close", i); !ok {
			t.Errorf("bar %d should be retained", i)
		}
	}

	// far jump evicts everything older
	m.Record(Frame{Source: "es_1m", Bar: 1_000_000, Series: map[string]*float64{"close": v(1)}})
	if _, ok := m.ReadSeries("es_1m", "close", 9); ok {
		t.Error("bar 9 should be evicted after jump")
	}
	if latest, _ := m.Latest("es_1m"); latest != 1_000_000 {
		t.Errorf("Latest = %d, want 1000000", latest)
	}
}

func TestMemory_ResetOnReload(t *testing.T) {
	m := NewMemory(3)
	m.Record(Frame{Source: "es_1m", Bar: 100, Series: map[string]*float64{"close": v(1)}})
	m.Record(Frame{Source: "es_1m", Bar: 0, Series: map[string]*float64{"close": v(2)}})

	if latest, _ := m.Latest("es_1m"); latest != 0 {
		t.Errorf("Latest = %d, want 0 after reload", latest)
	}
	if _, ok := m.ReadSeries("es_1m", "close", 100); ok {
		t.Error("bar 100 should be gone after reload")
	}
}

func TestMemory_ViewReadsPeers(t *testing.T) {
	m := NewMemory(10)
	m.Record(Frame{Source: "es_1m", Bar: 1, Series: map[string]*float64{"close": v(5300)}})
	m.Record(Frame{Source: "nq_1m", Bar: 1, Series: map[string]*float64{"close": v(18000)}})

	got, ok := m.View("es_1m").ReadSeries("nq_1m", "close", 1)
	if !ok || got != 18000 {
		t.Errorf("peer read = (%v, %v), want (18000, true)", got, ok)
	}
	if m.Sources() != 2 {
		t.Errorf("Sources = %d, want 2", m.Sources())
	}
}
