package consolidate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chartflow/internal/model"
)

const day = "20240610"

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readOutput(t *testing.T, rep *Report) []model.Event {
	t.Helper()
	data, err := os.ReadFile(rep.Output)
	require.NoError(t, err)

	var out []model.Event
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		ev, err := model.DecodeLine([]byte(line))
		require.NoError(t, err, line)
		out = append(out, ev)
	}
	return out
}

func mustRun(t *testing.T, cfg Config) *Report {
	t.Helper()
	rep, err := New(cfg, nil, nil).Run(context.Background(), day)
	require.NoError(t, err)
	require.Equal(t, StageDone, rep.Stage)
	return rep
}

func TestRun_AlignsSourcesIntoBuckets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
		`{"t":10.00,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n"+
			`{"t":10.25,"sym":"ES","type":"quote","i":2,"bid":5301,"chart":"es_1m"}`+"\n")
	writeFile(t, dir, "es_tick_trade_"+day+".jsonl",
		`{"t":10.15,"sym":"ES","type":"trade","i":7,"price":5300.25,"chart":"es_tick"}`+"\n")

	rep := mustRun(t, Config{Root: dir})
	assert.Equal(t, int64(2), rep.Buckets)

	out := readOutput(t, rep)
	require.Len(t, out, 3)

	assert.Equal(t, 10.0, *out[0].BucketT)
	assert.Equal(t, model.EventQuote, out[0].Type())
	assert.Equal(t, 10.0, *out[1].BucketT)
	assert.Equal(t, model.EventTrade, out[1].Type())
	assert.Equal(t, 10.15, out[1].Timestamp)
	assert.Equal(t, 10.25, *out[2].BucketT)
}

func TestBucket_EdgeIsIndependentOfMagnitude(t *testing.T) {
	c := New(Config{Tolerance: 0.2}, nil, nil)

	for _, base := range []float64{10, 1718040000, 1718040000.75} {
		evs := []model.Event{
			{Symbol: "ES", Timestamp: base, Payload: &model.Quote{}},
			{Symbol: "ES", Timestamp: base + 0.199, Payload: &model.Trade{}},
			{Symbol: "ES", Timestamp: base + 0.2, Payload: &model.Quote{}},
		}
		buckets := c.bucket(evs)
		require.Len(t, buckets, 2, "base=%v", base)
		assert.Len(t, buckets[0].events, 2, "base=%v", base)
		assert.Equal(t, base+0.2, buckets[1].start, "base=%v", base)
	}
}

func TestRun_LastWriteWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
		`{"t":100.00,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n"+
			`{"t":100.05,"sym":"ES","type":"quote","i":1,"bid":5300.25,"chart":"es_1m"}`+"\n"+
			`{"t":100.10,"sym":"NQ","type":"quote","i":1,"bid":18000,"chart":"es_1m"}`+"\n")
	writeFile(t, dir, "es_1m_level_"+day+".jsonl",
		`{"t":100.01,"sym":"ES","type":"level","i":1,"family":"gamma","name":"call_wall","idx":0,"price":5350,"chart":"es_1m"}`+"\n"+
			`{"t":100.02,"sym":"ES","type":"level","i":1,"family":"gamma","name":"put_wall","idx":1,"price":5250,"chart":"es_1m"}`+"\n")

	rep := mustRun(t, Config{Root: dir})
	assert.Equal(t, int64(1), rep.Superseded)

	out := readOutput(t, rep)
	require.Len(t, out, 4)

	// ES bucket: level/gamma/call_wall, level/gamma/put_wall, quote; then NQ.
	assert.Equal(t, "gamma/call_wall", out[0].Discriminator())
	assert.Equal(t, "gamma/put_wall", out[1].Discriminator())
	q := out[2].Payload.(*model.Quote)
	assert.Equal(t, 5300.25, *q.Bid)
	assert.Equal(t, "NQ", out[3].Symbol)
}

func TestRun_Corrections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_vva_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"vva","i":1,"poc":6430,"vah":6450,"val":6460,"chart":"es_1m"}`+"\n")
	writeFile(t, dir, "es_1m_vwap_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"vwap","i":1,"vwap":5300,"bands":[{"k":1,"upper":5290,"lower":5310}],"chart":"es_1m"}`+"\n")
	writeFile(t, dir, "es_1m_depth_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"depth","i":1,"bids":[{"p":3,"s":1},{"p":2,"s":1},{"p":1,"s":1}],"asks":[{"p":4,"s":1}],"chart":"es_1m"}`+"\n")

	rep := mustRun(t, Config{Root: dir, MaxDepthLevels: 2})
	assert.Equal(t, int64(1), rep.OrderFixes)
	assert.Equal(t, int64(1), rep.BandFixes)
	assert.Equal(t, int64(1), rep.DepthCapped)

	for _, ev := range readOutput(t, rep) {
		switch p := ev.Payload.(type) {
		case *model.ValueAreaSnapshot:
			assert.Equal(t, 6430.0, *p.VAL)
			assert.Equal(t, 6450.0, *p.POC)
			assert.Equal(t, 6460.0, *p.VAH)
		case *model.VwapSnapshot:
			assert.Equal(t, 5310.0, p.Bands[0].Upper)
			assert.Equal(t, 5290.0, p.Bands[0].Lower)
		case *model.DepthLevel:
			assert.Len(t, p.Bids, 2)
			assert.Len(t, p.Asks, 1)
		}
	}
}

func TestRun_PartialAndMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n"+
			`{"t":2,"sym":"ES","type":`+"\n"+
			`{"t":3,"sym":"ES","type":"candle","i":1,"chart":"es_1m"}`+"\n"+
			"\n"+
			`{"t":4,"sym":"ES","type":"quote","i":2,"bid":53`)

	rep := mustRun(t, Config{Root: dir})
	assert.Equal(t, int64(3), rep.Lines)
	assert.Equal(t, int64(2), rep.Malformed)
	assert.Equal(t, int64(1), rep.PartialLines)
	assert.True(t, rep.Partial)
	assert.Len(t, readOutput(t, rep), 1)
}

func TestRun_Idempotent(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
			`{"t":1,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n"+
				`{"t":1.1,"sym":"ES","type":"quote","i":1,"bid":5301,"chart":"es_1m"}`+"\n")
		writeFile(t, dir, "nq_1m_trade_"+day+".jsonl",
			`{"t":1,"sym":"NQ","type":"trade","i":1,"price":18000,"chart":"nq_1m"}`+"\n")

		first := mustRun(t, Config{Root: dir, Compress: compress})
		a, err := os.ReadFile(first.Output)
		require.NoError(t, err)

		second := mustRun(t, Config{Root: dir, Compress: compress})
		b, err := os.ReadFile(second.Output)
		require.NoError(t, err)

		assert.True(t, bytes.Equal(a, b), "compress=%v: outputs differ", compress)
		assert.NotEqual(t, first.RunID, second.RunID)
		// The unified file itself is never an input.
		assert.Equal(t, first.Files, second.Files)
	}
}

func TestRun_ReadsCompressedInputs(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`{"t":5,"sym":"ES","type":"trade","i":1,"price":5300,"chart":"es_1m"}` + "\n"))
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es_1m_trade_"+day+".jsonl.gz"), buf.Bytes(), 0o644))

	rep := mustRun(t, Config{Root: dir, Compress: true})
	assert.True(t, strings.HasSuffix(rep.Output, ".jsonl.gz"))

	f, err := os.Open(rep.Output)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"bucket_t":5,"t":5,"sym":"ES","type":"trade"`)
}

func TestRun_NoFilesIsNotAnError(t *testing.T) {
	rep := mustRun(t, Config{Root: t.TempDir()})
	assert.Equal(t, int64(0), rep.Written)
	assert.False(t, rep.Partial)

	info, err := os.Stat(rep.Output)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestRun_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n")

	rep := mustRun(t, Config{Root: dir})

	data, err := os.ReadFile(filepath.Join(dir, ManifestName(day)))
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rep.RunID, got.RunID)
	assert.Equal(t, StageDone, got.Stage)
	assert.Equal(t, []string{"es_1m_quote_" + day + ".jsonl"}, got.Files)
}

func TestRun_InvalidDay(t *testing.T) {
	_, err := New(Config{Root: t.TempDir()}, nil, nil).Run(context.Background(), "2024-06-10")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestRun_OutputUnwritableIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644))

	rep, err := New(Config{Root: dir, OutDir: blocked}, nil, nil).Run(context.Background(), day)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))
	assert.Equal(t, StageFatal, rep.Stage)
}

type captureExporter struct {
	fail   bool
	events int
}

func (c *captureExporter) Name() string { return "capture" }

func (c *captureExporter) Export(_ context.Context, _ Report, events []model.Event) error {
	c.events = len(events)
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

func TestRun_Exporters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "es_1m_quote_"+day+".jsonl",
		`{"t":1,"sym":"ES","type":"quote","i":1,"bid":5300,"chart":"es_1m"}`+"\n")

	ok := &captureExporter{}
	bad := &captureExporter{fail: true}
	c := New(Config{Root: dir}, nil, nil)
	c.AddExporter(ok)
	c.AddExporter(bad)

	rep, err := c.Run(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, ok.events)
	assert.Equal(t, int64(1), rep.ExportErrors)
	assert.True(t, rep.Partial)
	assert.Equal(t, StageDone, rep.Stage)
}
