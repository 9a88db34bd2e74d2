package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/rickgao/chartflow/internal/consolidate"
	"github.com/rickgao/chartflow/internal/model"
)

// FileName returns the Parquet file name for day.
func FileName(day string) string {
	return "unified_" + day + ".parquet"
}

// Parquet writes the unified stream as a Parquet file.
type Parquet struct {
	dir    string
	logger *slog.Logger
}

// NewParquet creates a Parquet exporter writing into dir.
func NewParquet(dir string, logger *slog.Logger) *Parquet {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parquet{dir: dir, logger: logger}
}

// Name implements consolidate.Exporter.
func (p *Parquet) Name() string { return "parquet" }

// Export implements consolidate.Exporter.
func (p *Parquet) Export(_ context.Context, run consolidate.Report, events []model.Event) error {
	rows, err := Rows(run.RunID, run.Day, events)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(p.dir, FileName(run.Day))
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	p.logger.Info("parquet export written", "path", path, "rows", len(rows))
	return nil
}
