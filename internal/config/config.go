package config

import (
	"time"

	"github.com/rickgao/chartflow/internal/adapter"
)

// Config is the root configuration shared by the collector, the replay tool
// and the consolidation job.
type Config struct {
	Instance     InstanceConfig       `yaml:"instance"`
	LogLevel     string               `yaml:"log_level"`
	Output       OutputConfig         `yaml:"output"`
	Bridge       BridgeConfig         `yaml:"bridge"`
	Writer       WriterConfig         `yaml:"writer"`
	Sources      []adapter.Descriptor `yaml:"sources"`
	Consolidator ConsolidatorConfig   `yaml:"consolidator"`
	Export       ExportConfig         `yaml:"export"`
	Database     DBConfig             `yaml:"database"`
	Metrics      MetricsConfig        `yaml:"metrics"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// OutputConfig locates per-source files.
type OutputConfig struct {
	Root     string `yaml:"root"`
	Timezone string `yaml:"timezone"` // IANA zone used for day partitioning
}

// BridgeConfig holds host plugin connection settings.
type BridgeConfig struct {
	URL                string        `yaml:"url"`
	Token              string        `yaml:"token"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	FrameBuffer        int           `yaml:"frame_buffer"`
	QueueLimit         int           `yaml:"queue_limit"`
	Retention          int           `yaml:"retention"` // Bars kept per chart
}

// WriterConfig holds event writer settings.
type WriterConfig struct {
	BufferSize    int           `yaml:"buffer_size"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ConsolidatorConfig holds batch consolidation settings.
type ConsolidatorConfig struct {
	OutDir         string  `yaml:"out_dir"`
	Tolerance      float64 `yaml:"tolerance"`
	MaxDepthLevels int     `yaml:"max_depth_levels"`
	Compress       bool    `yaml:"compress"`
	Workers        int     `yaml:"workers"`
	Calendar       string  `yaml:"calendar"` // Exchange MIC for the default day
}

// ExportConfig toggles downstream copies of the unified stream.
type ExportConfig struct {
	Parquet    bool   `yaml:"parquet"`
	ParquetDir string `yaml:"parquet_dir"`
	Database   bool   `yaml:"database"`
}

// DBConfig holds a single database connection. URL, when set, takes
// precedence over the discrete fields.
type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Table    string `yaml:"table"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
