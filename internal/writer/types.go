package writer

import (
	"time"
)

// WriterConfig contains configuration for the event writer.
type WriterConfig struct {
	// Root is the directory holding per-source files.
	Root string

	// Location selects the calendar day of each event. Defaults to UTC.
	Location *time.Location

	// BufferSize is the initial capacity of the input buffer.
	BufferSize int

	// BatchSize is the maximum number of events drained per pass.
	BatchSize int

	// FlushInterval is the maximum time a line stays in a file buffer.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Root:          "data",
		Location:      time.UTC,
		BufferSize:    4096,
		BatchSize:     512,
		FlushInterval: time.Second,
	}
}

// WriterMetrics holds metrics for the writer.
type WriterMetrics struct {
	Enqueued  int64
	Written   int64
	Dropped   int64 // rejected after Stop
	Errors    int64 // open, encode or append failures
	Flushes   int64
	OpenFiles int
	Queued    int
}
