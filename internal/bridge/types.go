package bridge

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic within ping timeout)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// RawFrame is one undecoded host frame stamped with its local receive time.
type RawFrame struct {
	Data       []byte
	ReceivedAt time.Time
}

// SubscribeCommand asks the host plugin to stream the listed charts. An empty
// list streams every chart.
type SubscribeCommand struct {
	Cmd     string   `json:"cmd"`
	Sources []string `json:"sources,omitempty"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Host plugin URL (e.g., ws://127.0.0.1:8765/frames)
	Token        string        // Optional bearer token
	PingTimeout  time.Duration // Read deadline, extended by any frame or control message
	PingInterval time.Duration // Interval between keepalive pings
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
	MaxFrameSize int64         // Largest accepted frame in bytes
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
		MaxFrameSize: 4 << 20,
	}
}

// Config configures the Bridge.
type Config struct {
	Client            ClientConfig
	Sources           []string      // Charts to subscribe to
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
	FrameBufferSize   int           // Buffer size for the output frame channel
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Client:            DefaultClientConfig(),
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  60 * time.Second,
		FrameBufferSize:   100000,
	}
}

// Stats provides statistics about the bridge.
type Stats struct {
	Connected  bool
	Received   int64
	Forwarded  int64
	Dropped    int64 // frame channel full
	Reconnects int64
}
