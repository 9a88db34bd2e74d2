package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel           = "info"
	DefaultRoot               = "data"
	DefaultTimezone           = "UTC"
	DefaultBridgeURL          = "ws://127.0.0.1:8765/frames"
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultFrameBuffer        = 100000
	DefaultQueueLimit         = 65536
	DefaultRetention          = 4096
	DefaultBufferSize         = 4096
	DefaultBatchSize          = 512
	DefaultFlushInterval      = 1 * time.Second
	DefaultTolerance          = 0.2
	DefaultMaxDepthLevels     = 10
	DefaultWorkers            = 4
	DefaultCalendar           = "xnys"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultDBTable            = "unified_events"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	// Output defaults
	if c.Output.Root == "" {
		c.Output.Root = DefaultRoot
	}
	if c.Output.Timezone == "" {
		c.Output.Timezone = DefaultTimezone
	}

	// Bridge defaults
	if c.Bridge.URL == "" {
		c.Bridge.URL = DefaultBridgeURL
	}
	if c.Bridge.PingInterval == 0 {
		c.Bridge.PingInterval = DefaultPingInterval
	}
	if c.Bridge.PingTimeout == 0 {
		c.Bridge.PingTimeout = DefaultPingTimeout
	}
	if c.Bridge.ReconnectBaseDelay == 0 {
		c.Bridge.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Bridge.ReconnectMaxDelay == 0 {
		c.Bridge.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Bridge.FrameBuffer == 0 {
		c.Bridge.FrameBuffer = DefaultFrameBuffer
	}
	if c.Bridge.QueueLimit == 0 {
		c.Bridge.QueueLimit = DefaultQueueLimit
	}
	if c.Bridge.Retention == 0 {
		c.Bridge.Retention = DefaultRetention
	}

	// Writer defaults
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}

	for i := range c.Sources {
		c.Sources[i].ApplyDefaults()
	}

	// Consolidator defaults
	if c.Consolidator.OutDir == "" {
		c.Consolidator.OutDir = c.Output.Root
	}
	if c.Consolidator.Tolerance == 0 {
		c.Consolidator.Tolerance = DefaultTolerance
	}
	if c.Consolidator.MaxDepthLevels == 0 {
		c.Consolidator.MaxDepthLevels = DefaultMaxDepthLevels
	}
	if c.Consolidator.Workers == 0 {
		c.Consolidator.Workers = DefaultWorkers
	}
	if c.Consolidator.Calendar == "" {
		c.Consolidator.Calendar = DefaultCalendar
	}

	if c.Export.ParquetDir == "" {
		c.Export.ParquetDir = c.Consolidator.OutDir
	}

	applyDBDefaults(&c.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.Table == "" {
		db.Table = DefaultDBTable
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
