package consolidate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chartflow/internal/metrics"
	"github.com/rickgao/chartflow/internal/model"
	"github.com/rickgao/chartflow/internal/version"
)

const unifiedPrefix = "unified_"

// OutputName returns the consolidated file name for day.
func OutputName(day string, compress bool) string {
	name := unifiedPrefix + day + ".jsonl"
	if compress {
		name += ".gz"
	}
	return name
}

// ManifestName returns the manifest file name for day.
func ManifestName(day string) string {
	return unifiedPrefix + day + ".manifest.json"
}

// Consolidator merges a day's per-source files into one unified stream.
type Consolidator struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	exporters []Exporter
}

// New creates a Consolidator. m may be nil.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Root == "" {
		cfg.Root = def.Root
	}
	if cfg.OutDir == "" {
		cfg.OutDir = cfg.Root
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MaxDepthLevels < 0 {
		cfg.MaxDepthLevels = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Consolidator{cfg: cfg, logger: logger, metrics: m}
}

// AddExporter registers e to run after the unified file is written.
func (c *Consolidator) AddExporter(e Exporter) {
	c.exporters = append(c.exporters, e)
}

// run carries the state of one Run call.
type run struct {
	report *Report
	logger *slog.Logger
}

func (r *run) enter(s Stage) {
	r.report.Stage = s
	r.logger.Debug("consolidation stage", "stage", s)
}

// fault records a recoverable error and keeps the run going.
func (r *run) fault(msg string, args ...any) {
	r.report.Partial = true
	r.logger.Warn(msg, args...)
}

// Run consolidates day (YYYYMMDD). The returned report is non-nil whenever
// the day is valid, including on fatal errors.
func (c *Consolidator) Run(ctx context.Context, day string) (*Report, error) {
	if _, err := time.Parse("20060102", day); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}

	started := time.Now()
	rep := &Report{
		RunID:     uuid.NewString(),
		Version:   version.Version,
		Day:       day,
		Stage:     StageInit,
		StartedAt: started.UTC(),
	}
	r := &run{report: rep, logger: c.logger.With("day", day, "run_id", rep.RunID)}
	defer func() {
		rep.Duration = time.Since(started)
		c.metrics.ObserveConsolidate(rep.Duration.Seconds())
	}()

	r.logger.Info("consolidation started", "root", c.cfg.Root, "tolerance", c.cfg.Tolerance)

	r.enter(StageScanning)
	events, err := c.scan(ctx, r)
	if err != nil {
		return rep, err
	}

	r.enter(StageBucketing)
	buckets := c.bucket(events)
	rep.Buckets = int64(len(buckets))

	r.enter(StageMerging)
	merged := c.merge(r, buckets)

	r.enter(StageSanityCorrecting)
	c.correct(r, merged)
	sortUnified(merged)

	if err := ctx.Err(); err != nil {
		return rep, err
	}

	r.enter(StageWriting)
	if err := c.write(r, merged); err != nil {
		r.enter(StageFatal)
		r.logger.Error("consolidation failed", "error", err)
		return rep, err
	}

	for _, e := range c.exporters {
		if err := e.Export(ctx, *rep, merged); err != nil {
			rep.ExportErrors++
			r.fault("export failed", "exporter", e.Name(), "error", err)
		}
	}

	r.enter(StageDone)
	rep.Duration = time.Since(started)
	c.writeManifest(r)

	c.metrics.RecordConsolidate("written", rep.Written)
	c.metrics.RecordConsolidate("malformed", rep.Malformed)
	c.metrics.RecordConsolidate("partial", rep.PartialLines)

	r.logger.Info("consolidation finished",
		"files", len(rep.Files),
		"events", rep.Events,
		"buckets", rep.Buckets,
		"written", rep.Written,
		"malformed", rep.Malformed,
		"partial_lines", rep.PartialLines,
		"partial", rep.Partial,
		"output", rep.Output,
	)
	return rep, nil
}

// --- Scanning ---

type fileResult struct {
	events    []model.Event
	lines     int64
	malformed int64
	partial   int64
	err       error
}

// inputs lists the day's per-source files in name order.
func (c *Consolidator) inputs(day string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*_" + day + ".jsonl", "*_" + day + ".jsonl.gz"} {
		matches, err := filepath.Glob(filepath.Join(c.cfg.Root, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), unifiedPrefix) {
				continue
			}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Consolidator) scan(ctx context.Context, r *run) ([]model.Event, error) {
	files, err := c.inputs(r.report.Day)
	if err != nil {
		return nil, err
	}
	r.report.Files = make([]string, len(files))
	for i, f := range files {
		r.report.Files[i] = filepath.Base(f)
	}
	if len(files) == 0 {
		r.logger.Info("no source files for day")
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = readFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var events []model.Event
	for i, res := range results {
		rep := r.report
		rep.Lines += res.lines
		rep.Malformed += res.malformed
		rep.PartialLines += res.partial
		if res.malformed > 0 {
			r.fault("malformed lines skipped", "file", rep.Files[i], "count", res.malformed)
		}
		if res.err != nil {
			rep.FileErrors++
			r.fault("source file unreadable", "file", rep.Files[i], "error", res.err)
		}
		events = append(events, res.events...)
	}
	r.report.Events = int64(len(events))
	return events, nil
}

// readFile decodes every complete line of path. Read errors end the file
// but keep what was decoded so far.
func readFile(path string) fileResult {
	var res fileResult

	f, err := os.Open(path)
	if err != nil {
		res.err = err
		return res
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			res.err = err
			return res
		}
		defer zr.Close()
		src = zr
	}

	br := bufio.NewReaderSize(src, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				// No newline yet: the writer has not finished this line.
				res.partial++
			}
			if !errors.Is(err, io.EOF) {
				res.err = err
			}
			return res
		}

		line = line[:len(line)-1]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		res.lines++

		ev, err := model.DecodeLine(line)
		if err != nil {
			res.malformed++
			continue
		}
		ev.BucketT = nil
		res.events = append(res.events, ev)
	}
}

// --- Bucketing ---

type bucket struct {
	symbol string
	start  float64
	events []model.Event
}

// micros converts epoch seconds to whole microseconds so bucket edges do
// not depend on the magnitude of the timestamps.
func micros(t float64) int64 {
	return int64(math.Round(t * 1e6))
}

// bucket groups each symbol's events into windows anchored at the first
// event of the window: an event joins while t - start < tolerance, compared
// in whole microseconds.
func (c *Consolidator) bucket(events []model.Event) []bucket {
	tol := micros(c.cfg.Tolerance)

	bySymbol := make(map[string][]model.Event)
	var symbols []string
	for _, ev := range events {
		if _, ok := bySymbol[ev.Symbol]; !ok {
			symbols = append(symbols, ev.Symbol)
		}
		bySymbol[ev.Symbol] = append(bySymbol[ev.Symbol], ev)
	}
	sort.Strings(symbols)

	var out []bucket
	for _, sym := range symbols {
		evs := bySymbol[sym]
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].Timestamp < evs[j].Timestamp
		})

		cur := -1
		for _, ev := range evs {
			if cur < 0 || micros(ev.Timestamp)-micros(out[cur].start) >= tol {
				out = append(out, bucket{symbol: sym, start: ev.Timestamp})
				cur = len(out) - 1
			}
			out[cur].events = append(out[cur].events, ev)
		}
	}
	return out
}

// --- Merging ---

type mergeKey struct {
	typ  model.EventType
	disc string
}

// merge keeps the last event per (type, discriminator) in each bucket and
// stamps it with the bucket time.
func (c *Consolidator) merge(r *run, buckets []bucket) []model.Event {
	var out []model.Event
	for _, b := range buckets {
		start := b.start
		slot := make(map[mergeKey]int, len(b.events))
		for _, ev := range b.events {
			ev.BucketT = &start
			k := mergeKey{ev.Type(), ev.Discriminator()}
			if i, ok := slot[k]; ok {
				out[i] = ev
				r.report.Superseded++
				continue
			}
			slot[k] = len(out)
			out = append(out, ev)
		}
	}
	return out
}

// --- Sanity correction ---

func (c *Consolidator) correct(r *run, events []model.Event) {
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case *model.ValueAreaSnapshot:
			if p.Order() {
				r.report.OrderFixes++
			}
		case *model.VwapSnapshot:
			r.report.BandFixes += int64(model.OrderBands(p.Bands))
		case *model.PreviousVwapSnapshot:
			r.report.BandFixes += int64(model.OrderBands(p.Bands))
		case *model.DepthLevel:
			if p.Cap(c.cfg.MaxDepthLevels) {
				r.report.DepthCapped++
			}
		}
	}
}

// sortUnified orders events by (bucket_t, symbol, type, discriminator,
// source).
func sortUnified(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if *a.BucketT != *b.BucketT {
			return *a.BucketT < *b.BucketT
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Type() != b.Type() {
			return a.Type() < b.Type()
		}
		if da, db := a.Discriminator(), b.Discriminator(); da != db {
			return da < db
		}
		return a.SourceID < b.SourceID
	})
}

// --- Writing ---

// write encodes events to a temp file in OutDir and renames it into place.
func (c *Consolidator) write(r *run, events []model.Event) (err error) {
	if err := os.MkdirAll(c.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	final := filepath.Join(c.cfg.OutDir, OutputName(r.report.Day, c.cfg.Compress))

	tmp, err := os.CreateTemp(c.cfg.OutDir, ".unified-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	var (
		dst io.Writer = tmp
		zw  *gzip.Writer
	)
	if c.cfg.Compress {
		// Zero header fields keep the output byte-identical across runs.
		zw = gzip.NewWriter(tmp)
		zw.Header = gzip.Header{OS: 255}
		dst = zw
	}
	bw := bufio.NewWriterSize(dst, 256*1024)

	var line []byte
	for _, ev := range events {
		line, err = ev.AppendJSON(line[:0])
		if err != nil {
			r.fault("event not encodable", "symbol", ev.Symbol, "type", ev.Type(), "error", err)
			err = nil
			continue
		}
		line = append(line, '\n')
		if _, err = bw.Write(line); err != nil {
			return fmt.Errorf("%w: %v", ErrOutput, err)
		}
		r.report.Written++
	}

	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if zw != nil {
		if err = zw.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrOutput, err)
		}
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}

	r.report.Output = final
	return nil
}

// writeManifest records the report next to the output. Failure is not fatal.
func (c *Consolidator) writeManifest(r *run) {
	path := filepath.Join(c.cfg.OutDir, ManifestName(r.report.Day))
	data, err := json.MarshalIndent(r.report, "", "  ")
	if err == nil {
		err = os.WriteFile(path, append(data, '\n'), 0o644)
	}
	if err != nil {
		r.fault("manifest not written", "path", path, "error", err)
	}
}
