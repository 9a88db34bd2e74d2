package writer

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rickgao/chartflow/internal/metrics"
	"github.com/rickgao/chartflow/internal/model"
	"github.com/rickgao/chartflow/internal/router"
)

// FileName returns the per-source file name for one (source, type, day).
func FileName(source string, t model.EventType, day string) string {
	return fmt.Sprintf("%s_%s_%s.jsonl", source, t, day)
}

// Day returns the YYYYMMDD day of an epoch-seconds timestamp in loc.
func Day(ts float64, loc *time.Location) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).In(loc).Format("20060102")
}

type streamKey struct {
	source string
	typ    model.EventType
}

type openFile struct {
	day string
	f   *os.File
	w   *bufio.Writer
}

// EventWriter appends events to per-source JSONL files.
type EventWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	input *router.GrowableBuffer[model.Event]

	// Files, guarded by filesMu
	files   map[streamKey]*openFile
	filesMu sync.Mutex
	line    []byte

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	statsMu sync.Mutex
	stats   WriterMetrics
}

// NewEventWriter creates a new EventWriter. m may be nil.
func NewEventWriter(cfg WriterConfig, m *metrics.Metrics, logger *slog.Logger) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	return &EventWriter{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		input:   router.NewGrowableBuffer[model.Event](cfg.BufferSize),
		files:   make(map[streamKey]*openFile),
	}
}

// Write enqueues ev. It never blocks and returns false only after Stop.
func (w *EventWriter) Write(ev model.Event) bool {
	if !w.input.Send(ev) {
		w.statsMu.Lock()
		w.stats.Dropped++
		w.statsMu.Unlock()
		return false
	}
	w.statsMu.Lock()
	w.stats.Enqueued++
	w.statsMu.Unlock()
	return true
}

// Start creates the root directory and begins consuming events.
func (w *EventWriter) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Root, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event writer started",
		"root", w.cfg.Root,
		"location", w.cfg.Location.String(),
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains queued events, flushes and closes every file.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
	}

	// Final drain
	for {
		batch := w.input.DrainTo(w.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}
		w.appendBatch(batch)
	}
	w.closeAll()

	w.logger.Info("event writer stopped", "written", w.Stats().Written)
	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.filesMu.Lock()
	open := len(w.files)
	w.filesMu.Unlock()

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	s := w.stats
	s.OpenFiles = open
	s.Queued = w.input.Len()
	return s
}

// consumeLoop drains the input buffer in batches.
func (w *EventWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			batch := w.input.DrainTo(w.cfg.BatchSize)
			if len(batch) == 0 {
				// Buffer empty, wait a bit before trying again
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.appendBatch(batch)
			w.metrics.SetWriterDepth(w.input.Len())
		}
	}
}

// flushLoop periodically flushes file buffers.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *EventWriter) appendBatch(batch []model.Event) {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	var written, failed int64
	for _, ev := range batch {
		if err := w.appendLocked(ev); err != nil {
			failed++
			w.logger.Warn("event dropped",
				"source", ev.SourceID,
				"type", ev.Type(),
				"error", err,
			)
			continue
		}
		written++
		w.metrics.RecordWrite(string(ev.Type()))
	}

	w.statsMu.Lock()
	w.stats.Written += written
	w.stats.Errors += failed
	w.statsMu.Unlock()
}

// appendLocked writes one line. Must be called with filesMu held.
func (w *EventWriter) appendLocked(ev model.Event) error {
	var err error
	w.line, err = ev.AppendJSON(w.line[:0])
	if err != nil {
		w.metrics.RecordWriteError("encode")
		return err
	}
	w.line = append(w.line, '\n')

	of, err := w.fileLocked(ev)
	if err != nil {
		w.metrics.RecordWriteError("open")
		return err
	}
	if _, err := of.w.Write(w.line); err != nil {
		w.metrics.RecordWriteError("append")
		w.closeFileLocked(streamKey{ev.SourceID, ev.Type()}, of)
		return fmt.Errorf("append %s: %w", of.f.Name(), err)
	}
	return nil
}

// fileLocked returns the open file for ev's stream and day, rotating the
// handle when the day changes.
func (w *EventWriter) fileLocked(ev model.Event) (*openFile, error) {
	key := streamKey{ev.SourceID, ev.Type()}
	day := Day(ev.Timestamp, w.cfg.Location)

	if of, ok := w.files[key]; ok {
		if of.day == day {
			return of, nil
		}
		w.closeFileLocked(key, of)
	}

	path := filepath.Join(w.cfg.Root, FileName(ev.SourceID, ev.Type(), day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	of := &openFile{day: day, f: f, w: bufio.NewWriterSize(f, 64*1024)}
	w.files[key] = of
	w.logger.Debug("opened output file", "path", path)
	return of, nil
}

func (w *EventWriter) closeFileLocked(key streamKey, of *openFile) {
	if err := of.w.Flush(); err != nil {
		w.logger.Warn("flush on close failed", "path", of.f.Name(), "error", err)
	}
	if err := of.f.Close(); err != nil {
		w.logger.Warn("close failed", "path", of.f.Name(), "error", err)
	}
	delete(w.files, key)
}

// flush pushes every buffered line to its file.
func (w *EventWriter) flush() {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	var failed int64
	for key, of := range w.files {
		if of.w.Buffered() == 0 {
			continue
		}
		if err := of.w.Flush(); err != nil {
			failed++
			w.metrics.RecordWriteError("flush")
			w.logger.Error("flush failed", "path", of.f.Name(), "error", err)
			w.closeFileLocked(key, of)
		}
	}

	w.statsMu.Lock()
	w.stats.Flushes++
	w.stats.Errors += failed
	w.statsMu.Unlock()
}

func (w *EventWriter) closeAll() {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	for key, of := range w.files {
		w.closeFileLocked(key, of)
	}
}
