package config

import (
	"log/slog"
	"time"
	_ "time/tzdata" // output.timezone must resolve on hosts without zoneinfo

	"github.com/rickgao/chartflow/internal/bridge"
	"github.com/rickgao/chartflow/internal/consolidate"
	"github.com/rickgao/chartflow/internal/router"
	"github.com/rickgao/chartflow/internal/writer"
)

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Location returns the day-partitioning time zone. Validate has already
// checked that it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceIDs returns the configured source ids in order.
func (c *Config) SourceIDs() []string {
	ids := make([]string, len(c.Sources))
	for i, d := range c.Sources {
		ids[i] = d.Source
	}
	return ids
}

// WriterConfig builds the event writer configuration.
func (c *Config) WriterConfig() writer.WriterConfig {
	return writer.WriterConfig{
		Root:          c.Output.Root,
		Location:      c.Location(),
		BufferSize:    c.Writer.BufferSize,
		BatchSize:     c.Writer.BatchSize,
		FlushInterval: c.Writer.FlushInterval,
	}
}

// BridgeConfig builds the host bridge configuration.
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Client: bridge.ClientConfig{
			URL:          c.Bridge.URL,
			Token:        c.Bridge.Token,
			PingInterval: c.Bridge.PingInterval,
			PingTimeout:  c.Bridge.PingTimeout,
		},
		Sources:           c.SourceIDs(),
		ReconnectBaseWait: c.Bridge.ReconnectBaseDelay,
		ReconnectMaxWait:  c.Bridge.ReconnectMaxDelay,
		FrameBufferSize:   c.Bridge.FrameBuffer,
	}
}

// RouterConfig builds the frame router configuration.
func (c *Config) RouterConfig() router.RouterConfig {
	cfg := router.DefaultRouterConfig()
	cfg.QueueLimit = c.Bridge.QueueLimit
	return cfg
}

// ConsolidateConfig builds the consolidator configuration.
func (c *Config) ConsolidateConfig() consolidate.Config {
	return consolidate.Config{
		Root:           c.Output.Root,
		OutDir:         c.Consolidator.OutDir,
		Tolerance:      c.Consolidator.Tolerance,
		MaxDepthLevels: c.Consolidator.MaxDepthLevels,
		Compress:       c.Consolidator.Compress,
		Workers:        c.Consolidator.Workers,
	}
}
