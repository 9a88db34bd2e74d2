package writer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/chartflow/internal/model"
)

// 2024-06-10 17:20:00 UTC
const baseTs = 1718040000.0

func testConfig(t *testing.T) WriterConfig {
	t.Helper()
	cfg := DefaultWriterConfig()
	cfg.Root = t.TempDir()
	cfg.FlushInterval = 10 * time.Millisecond
	return cfg
}

func quote(source string, ts float64, bid float64) model.Event {
	return model.Event{
		Timestamp: ts,
		Symbol:    "ES",
		SourceID:  source,
		BarIndex:  1,
		Payload:   &model.Quote{Bid: model.F(bid)},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func stop(t *testing.T, w *EventWriter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("es_1m", model.EventBar, "20240610"); got != "es_1m_bar_20240610.jsonl" {
		t.Errorf("FileName = %q", got)
	}
}

func TestDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-06-11 02:00 UTC is still June 10 in New York
	ts := float64(time.Date(2024, 6, 11, 2, 0, 0, 0, time.UTC).Unix())

	if got := Day(ts, time.UTC); got != "20240611" {
		t.Errorf("Day(UTC) = %s, want 20240611", got)
	}
	if got := Day(ts, ny); got != "20240610" {
		t.Errorf("Day(New York) = %s, want 20240610", got)
	}
}

func TestEventWriter_PartitionsFiles(t *testing.T) {
	cfg := testConfig(t)
	w := NewEventWriter(cfg, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	w.Write(quote("es_1m", baseTs, 5300))
	w.Write(quote("es_1m", baseTs+1, 5300.25))
	w.Write(quote("es_tick", baseTs, 5300))
	w.Write(quote("es_1m", baseTs+86400, 5310))
	w.Write(model.Event{Timestamp: baseTs, Symbol: "ES", SourceID: "es_1m", Payload: &model.Trade{Price: model.F(5300)}})

	stop(t, w)

	lines := readLines(t, filepath.Join(cfg.Root, "es_1m_quote_20240610.jsonl"))
	if len(lines) != 2 {
		t.Fatalf("es_1m quote lines = %d, want 2", len(lines))
	}
	want := `{"t":1718040000,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`
	if lines[0] != want {
		t.Errorf("line[0] = %s, want %s", lines[0], want)
	}

	for _, name := range []string{
		"es_tick_quote_20240610.jsonl",
		"es_1m_quote_20240611.jsonl",
		"es_1m_trade_20240610.jsonl",
	} {
		if got := readLines(t, filepath.Join(cfg.Root, name)); len(got) != 1 {
			t.Errorf("%s lines = %d, want 1", name, len(got))
		}
	}

	stats := w.Stats()
	if stats.Written != 5 {
		t.Errorf("Written = %d, want 5", stats.Written)
	}
	if stats.OpenFiles != 0 {
		t.Errorf("OpenFiles = %d, want 0 after Stop", stats.OpenFiles)
	}
}

func TestEventWriter_AppendsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	for i := 0; i < 2; i++ {
		w := NewEventWriter(cfg, nil, nil)
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		w.Write(quote("es_1m", baseTs+float64(i), 5300))
		stop(t, w)
	}

	if got := readLines(t, filepath.Join(cfg.Root, "es_1m_quote_20240610.jsonl")); len(got) != 2 {
		t.Errorf("lines = %d, want 2", len(got))
	}
}

func TestEventWriter_OpenFailureIsIsolated(t *testing.T) {
	cfg := testConfig(t)

	// A directory where the file should be makes the open fail.
	blocked := filepath.Join(cfg.Root, "es_1m_quote_20240610.jsonl")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatal(err)
	}

	w := NewEventWriter(cfg, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Write(quote("es_1m", baseTs, 5300))
	w.Write(model.Event{Timestamp: baseTs, Symbol: "ES", SourceID: "es_1m", Payload: &model.Trade{Price: model.F(5300)}})
	stop(t, w)

	stats := w.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.Written != 1 {
		t.Errorf("Written = %d, want 1", stats.Written)
	}
	if got := readLines(t, filepath.Join(cfg.Root, "es_1m_trade_20240610.jsonl")); len(got) != 1 {
		t.Errorf("trade lines = %d, want 1", len(got))
	}
}

func TestEventWriter_WriteAfterStop(t *testing.T) {
	w := NewEventWriter(testConfig(t), nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stop(t, w)

	if w.Write(quote("es_1m", baseTs, 5300)) {
		t.Error("Write() after Stop = true, want false")
	}
	if w.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", w.Stats().Dropped)
	}
}

func TestEventWriter_FlushesWhileRunning(t *testing.T) {
	cfg := testConfig(t)
	w := NewEventWriter(cfg, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop(t, w)

	w.Write(quote("es_1m", baseTs, 5300))

	path := filepath.Join(cfg.Root, "es_1m_quote_20240610.jsonl")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && strings.HasSuffix(string(data), "\n") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("line not flushed while running")
}
