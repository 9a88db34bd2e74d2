package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/chartflow/internal/config"
	"github.com/rickgao/chartflow/internal/consolidate"
	"github.com/rickgao/chartflow/internal/database"
	"github.com/rickgao/chartflow/internal/export"
	"github.com/rickgao/chartflow/internal/metrics"
	"github.com/rickgao/chartflow/internal/tradingday"
	"github.com/rickgao/chartflow/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	dayFlag := flag.String("day", "", "day to consolidate (YYYYMMDD); defaults to the latest trading day")
	metricsFile := flag.String("metrics-file", "", "write run metrics in text format to this path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	day := *dayFlag
	if day == "" {
		cal := tradingday.New(cfg.Consolidator.Calendar, logger)
		latest, ok := cal.Latest(time.Now())
		if !ok {
			logger.Error("no trading day found", "calendar", cfg.Consolidator.Calendar)
			os.Exit(1)
		}
		day = cal.Day(latest)
	}

	logger.Info("starting consolidation",
		"version", version.Version,
		"commit", version.Commit,
		"day", day,
		"root", cfg.Output.Root,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg := prometheus.NewRegistry()
	c := consolidate.New(cfg.ConsolidateConfig(), metrics.New(reg), logger)

	if cfg.Export.Parquet {
		c.AddExporter(export.NewParquet(cfg.Export.ParquetDir, logger))
	}

	if cfg.Export.Database {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"database", cfg.Database.Name,
			"table", cfg.Database.Table,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		loader := database.NewLoader(pool, cfg.Database.Table, logger)
		if err := loader.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		c.AddExporter(loader)
	}

	rep, err := c.Run(ctx, day)

	if *metricsFile != "" {
		if werr := prometheus.WriteToTextfile(*metricsFile, reg); werr != nil {
			logger.Warn("failed to write metrics file", "path", *metricsFile, "error", werr)
		}
	}

	if err != nil {
		logger.Error("consolidation failed", "day", day, "error", err)
		os.Exit(1)
	}

	if rep.Partial {
		logger.Warn("consolidation completed with faults",
			"file_errors", rep.FileErrors,
			"malformed", rep.Malformed,
			"export_errors", rep.ExportErrors,
		)
	}
}
