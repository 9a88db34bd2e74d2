package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/chartflow/internal/metrics"
)

// Bridge keeps one connection to the host plugin alive and forwards frames.
type Bridge struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	frames chan RawFrame

	mu     sync.RWMutex
	client Client
	stats  Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bridge. m may be nil.
func New(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = cfg.ReconnectBaseWait
	}
	if cfg.FrameBufferSize <= 0 {
		cfg.FrameBufferSize = def.FrameBufferSize
	}
	return &Bridge{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		frames:  make(chan RawFrame, cfg.FrameBufferSize),
	}
}

// Start launches the connection loop. The first dial happens in the
// background so an absent host does not block startup.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Client.URL == "" {
		return errors.New("bridge url is required")
	}
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.run()

	b.logger.Info("bridge started", "url", b.cfg.Client.URL, "sources", b.cfg.Sources)
	return nil
}

// Stop closes the connection and waits for the loop to exit. The frame
// channel is closed once the loop has returned.
func (b *Bridge) Stop(ctx context.Context) error {
	b.logger.Info("stopping bridge")
	if b.cancel != nil {
		b.cancel()
	}

	b.mu.RLock()
	c := b.client
	b.mu.RUnlock()
	if c != nil {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(b.frames)
		b.logger.Info("bridge stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("bridge stop timed out")
		return ctx.Err()
	}
}

// Frames returns the channel of frames received from the host.
func (b *Bridge) Frames() <-chan RawFrame {
	return b.frames
}

// Stats returns a snapshot of bridge statistics.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.stats
	s.Connected = b.client != nil && b.client.IsConnected()
	return s
}

// run connects, pumps frames until the connection fails, then reconnects
// with exponential backoff.
func (b *Bridge) run() {
	defer b.wg.Done()

	wait := b.cfg.ReconnectBaseWait
	first := true

	for {
		if !first {
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(wait):
			}
			b.mu.Lock()
			b.stats.Reconnects++
			b.mu.Unlock()
			b.metrics.RecordReconnect()
			b.logger.Info("attempting reconnection", "url", b.cfg.Client.URL)
		}
		first = false

		c, err := b.connect()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Warn("bridge connection failed", "error", err, "retry_in", wait)

			// Exponential backoff
			wait *= 2
			if wait > b.cfg.ReconnectMaxWait {
				wait = b.cfg.ReconnectMaxWait
			}
			continue
		}

		wait = b.cfg.ReconnectBaseWait
		b.metrics.SetBridgeConnected(true)

		err = b.pump(c)
		c.Close()
		b.metrics.SetBridgeConnected(false)

		if b.ctx.Err() != nil {
			return
		}
		b.logger.Warn("bridge connection lost", "error", err)
	}
}

func (b *Bridge) connect() (Client, error) {
	c := NewClient(b.cfg.Client, b.logger)
	if err := c.Connect(b.ctx); err != nil {
		return nil, err
	}

	cmd, err := json.Marshal(SubscribeCommand{Cmd: "subscribe", Sources: b.cfg.Sources})
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := c.Send(cmd); err != nil {
		c.Close()
		return nil, err
	}

	b.mu.Lock()
	b.client = c
	b.mu.Unlock()

	b.logger.Info("bridge connected", "url", b.cfg.Client.URL)
	return c, nil
}

// pump forwards frames until the client reports an error or ctx ends.
func (b *Bridge) pump(c Client) error {
	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()
		case err := <-c.Errors():
			return err
		case f := <-c.Messages():
			b.forward(f)
		}
	}
}

// forward never blocks: a full channel drops the frame.
func (b *Bridge) forward(f RawFrame) {
	b.mu.Lock()
	b.stats.Received++
	b.mu.Unlock()

	select {
	case b.frames <- f:
		b.mu.Lock()
		b.stats.Forwarded++
		b.mu.Unlock()
	default:
		b.mu.Lock()
		b.stats.Dropped++
		b.mu.Unlock()
		b.logger.Warn("frame channel full, dropping frame")
	}
}
