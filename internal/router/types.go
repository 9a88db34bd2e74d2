package router

// RouterConfig holds configuration for the frame router.
type RouterConfig struct {
	QueueSize  int // Initial queue capacity. Default: 1024
	QueueLimit int // Max queued frames before the oldest is evicted. Default: 65536
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		QueueSize:  1024,
		QueueLimit: 65536,
	}
}

// Handler consumes bar updates for one source.
type Handler interface {
	Source() string
	OnBarUpdate(barIndex int)
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	FramesReceived int64
	FramesRouted   int64
	ParseErrors    int64
	UnknownSources int64
	Queue          BufferStats
}

// Frame results reported to metrics.
const (
	resultRouted  = "routed"
	resultUnknown = "unknown_source"
	resultInvalid = "invalid"
	resultEvicted = "evicted"
)
