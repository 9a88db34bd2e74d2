// replay feeds a recorded frames file through the adapters and writer.
// Usage: go run ./cmd/replay --config configs/collector.local.yaml --frames frames.jsonl
//
// Each input line is one host frame as sent by the bridge plugin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/chartflow/internal/adapter"
	"github.com/rickgao/chartflow/internal/config"
	"github.com/rickgao/chartflow/internal/host"
	"github.com/rickgao/chartflow/internal/model"
	"github.com/rickgao/chartflow/internal/router"
	"github.com/rickgao/chartflow/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	framesPath := flag.String("frames", "", "path to frames JSONL file")
	outDir := flag.String("out", "", "override output root")
	verbose := flag.Bool("verbose", false, "print every emitted event")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *framesPath == "" {
		logger.Error("--frames is required")
		os.Exit(2)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Output.Root = *outDir
	}

	ctx := context.Background()

	w := writer.NewEventWriter(cfg.WriterConfig(), nil, logger)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		os.Exit(1)
	}

	var sink adapter.Sink = w
	if *verbose {
		sink = adapter.SinkFunc(func(ev model.Event) bool {
			if line, err := ev.AppendJSON(nil); err == nil {
				fmt.Printf("[%s] %s\n", ev.Type(), line)
			}
			return w.Write(ev)
		})
	}

	mem := host.NewMemory(cfg.Bridge.Retention)
	r := router.NewRouter(cfg.RouterConfig(), nil, mem, nil, logger)
	for _, desc := range cfg.Sources {
		if err := r.Register(adapter.New(desc, mem.View(desc.Source), sink, nil, logger)); err != nil {
			logger.Error("failed to register adapter", "source", desc.Source, "error", err)
			os.Exit(1)
		}
	}

	lines, rejected, err := replay(*framesPath, r, logger)
	if err != nil {
		logger.Error("replay failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	w.Stop(shutdownCtx)

	rs := r.Stats()
	ws := w.Stats()
	logger.Info("replay complete",
		"lines", lines,
		"rejected", rejected,
		"frames_routed", rs.FramesRouted,
		"unknown_sources", rs.UnknownSources,
		"events_written", ws.Written,
		"write_errors", ws.Errors,
		"root", cfg.Output.Root,
	)
	if err != nil {
		os.Exit(1)
	}
}

// replay routes every line of path in order.
func replay(path string, r *router.Router, logger *slog.Logger) (lines, rejected int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++
		if err := r.Route(line); err != nil {
			rejected++
			logger.Debug("frame rejected", "line", lines, "error", err)
		}
	}
	return lines, rejected, sc.Err()
}
