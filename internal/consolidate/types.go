package consolidate

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/chartflow/internal/model"
)

// Errors
var (
	ErrInvalidDay = errors.New("day must be YYYYMMDD")
	ErrOutput     = errors.New("cannot write consolidated output")
)

// Stage is a step of a consolidation run.
type Stage string

const (
	StageInit             Stage = "init"
	StageScanning         Stage = "scanning"
	StageBucketing        Stage = "bucketing"
	StageMerging          Stage = "merging"
	StageSanityCorrecting Stage = "sanity_correcting"
	StageWriting          Stage = "writing"
	StageDone             Stage = "done"
	StageFatal            Stage = "fatal"
)

// Config holds configuration for the Consolidator.
type Config struct {
	Root           string  `yaml:"root"`             // Directory holding per-source files
	OutDir         string  `yaml:"out_dir"`          // Destination directory. Default: Root
	Tolerance      float64 `yaml:"tolerance"`        // Bucket width in seconds. Default: 0.2
	MaxDepthLevels int     `yaml:"max_depth_levels"` // Per-side depth cap. Default: 10
	Compress       bool    `yaml:"compress"`         // Write unified_<day>.jsonl.gz
	Workers        int     `yaml:"workers"`          // Concurrent file readers. Default: 4
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Root:           "data",
		Tolerance:      0.2,
		MaxDepthLevels: 10,
		Workers:        4,
	}
}

// Exporter receives the unified stream after it has been written.
type Exporter interface {
	Name() string
	Export(ctx context.Context, run Report, events []model.Event) error
}

// Report describes one run. It is also written as the run manifest.
type Report struct {
	RunID   string `json:"run_id"`
	Version string `json:"version"`
	Day     string `json:"day"`
	Stage   Stage  `json:"stage"`
	Partial bool   `json:"partial"`
	Output  string `json:"output,omitempty"`

	Files        []string `json:"files"`
	FileErrors   int64    `json:"file_errors"`
	Lines        int64    `json:"lines"`
	Malformed    int64    `json:"malformed"`
	PartialLines int64    `json:"partial_lines"`

	Events      int64 `json:"events"`
	Buckets     int64 `json:"buckets"`
	Superseded  int64 `json:"superseded"`
	OrderFixes  int64 `json:"order_fixes"`
	BandFixes   int64 `json:"band_fixes"`
	DepthCapped int64 `json:"depth_capped"`
	Written     int64 `json:"written"`

	ExportErrors int64 `json:"export_errors"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}
