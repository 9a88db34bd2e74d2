package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/chartflow/internal/bridge"
	"github.com/rickgao/chartflow/internal/host"
	"github.com/rickgao/chartflow/internal/metrics"
)

// Errors
var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrDuplicateHandler = errors.New("handler already registered")
)

// Router records host frames and invokes the adapter for each frame's source.
type Router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from the bridge
	input <-chan bridge.RawFrame
	queue *GrowableBuffer[[]byte]
	mem   *host.Memory

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	received    int64
	routed      int64
	parseErrors int64
	unknown     int64
	evicted     int64
}

// NewRouter creates a frame router. input may be nil when frames are fed
// through Route directly. m may be nil.
func NewRouter(cfg RouterConfig, input <-chan bridge.RawFrame, mem *host.Memory, m *metrics.Metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultRouterConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = def.QueueLimit
	}
	return &Router{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		input:    input,
		queue:    NewBoundedBuffer[[]byte](cfg.QueueSize, cfg.QueueLimit),
		mem:      mem,
		handlers: make(map[string]Handler),
	}
}

// Register attaches h to its source. Register before Start.
func (r *Router) Register(h Handler) error {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()

	if _, ok := r.handlers[h.Source()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, h.Source())
	}
	r.handlers[h.Source()] = h
	return nil
}

// Start begins routing frames from the input channel.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if r.input != nil {
		r.wg.Add(1)
		go r.ingestLoop()
	}

	r.wg.Add(1)
	go r.dispatchLoop()

	r.handlersMu.RLock()
	n := len(r.handlers)
	r.handlersMu.RUnlock()

	r.logger.Info("frame router started",
		"handlers", n,
		"queue_limit", r.cfg.QueueLimit,
	)
	return nil
}

// Stop dispatches every frame already queued, then returns. With an input
// channel, the router keeps ingesting until the producer closes it, so stop
// the bridge first.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info("stopping frame router")

	if r.cancel != nil {
		r.cancel()
	}
	if r.input == nil {
		r.queue.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("frame router stopped", "routed", r.Stats().FramesRouted)
	case <-ctx.Done():
		r.logger.Warn("frame router stop timed out")
	}
	return nil
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RouterStats{
		FramesReceived: r.received,
		FramesRouted:   r.routed,
		ParseErrors:    r.parseErrors,
		UnknownSources: r.unknown,
		Queue:          r.queue.Stats(),
	}
}

// ingestLoop moves frames from the bridge channel into the queue until the
// channel is closed. Cancellation does not stop it: frames the bridge has
// already handed over are still routed.
func (r *Router) ingestLoop() {
	defer r.wg.Done()
	defer r.queue.Close()

	for raw := range r.input {
		r.queue.Send(raw.Data)
		r.countEvictions()
	}
	r.logger.Info("input channel closed")
}

// dispatchLoop routes queued frames until the queue is closed and empty.
func (r *Router) dispatchLoop() {
	defer r.wg.Done()

	for {
		data, ok := r.queue.Receive()
		if !ok {
			return
		}
		if err := r.Route(data); err != nil {
			r.logger.Warn("frame rejected", "error", err)
		}
	}
}

func (r *Router) countEvictions() {
	total := r.queue.Stats().Evicted

	r.mu.Lock()
	n := total - r.evicted
	r.evicted = total
	r.mu.Unlock()

	for ; n > 0; n-- {
		r.metrics.RecordFrame(resultEvicted)
	}
}

// Route decodes one frame, records it and invokes the source's handler.
// Calls for the same source must not overlap.
func (r *Router) Route(data []byte) error {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var f host.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		r.reject()
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if f.Source == "" || f.Bar < 0 {
		r.reject()
		return fmt.Errorf("%w: source %q bar %d", ErrInvalidFrame, f.Source, f.Bar)
	}

	r.mem.Record(f)

	r.handlersMu.RLock()
	h, ok := r.handlers[f.Source]
	r.handlersMu.RUnlock()

	if !ok {
		r.mu.Lock()
		r.unknown++
		r.mu.Unlock()
		r.metrics.RecordFrame(resultUnknown)
		return nil
	}

	h.OnBarUpdate(f.Bar)

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
	r.metrics.RecordFrame(resultRouted)
	return nil
}

func (r *Router) reject() {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
	r.metrics.RecordFrame(resultInvalid)
}
