package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rickgao/chartflow/internal/adapter"
	"github.com/rickgao/chartflow/internal/bridge"
	"github.com/rickgao/chartflow/internal/config"
	"github.com/rickgao/chartflow/internal/host"
	"github.com/rickgao/chartflow/internal/metrics"
	"github.com/rickgao/chartflow/internal/router"
	"github.com/rickgao/chartflow/internal/version"
	"github.com/rickgao/chartflow/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger until the configured level is known
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

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"sources", len(cfg.Sources),
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
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Writer first so adapters never see a stopped sink
	w := writer.NewEventWriter(cfg.WriterConfig(), m, logger)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		os.Exit(1)
	}

	b := bridge.New(cfg.BridgeConfig(), m, logger)
	mem := host.NewMemory(cfg.Bridge.Retention)
	r := router.NewRouter(cfg.RouterConfig(), b.Frames(), mem, m, logger)

	for _, desc := range cfg.Sources {
		a := adapter.New(desc, mem.View(desc.Source), w, m, logger)
		if err := r.Register(a); err != nil {
			logger.Error("failed to register adapter", "source", desc.Source, "error", err)
			os.Exit(1)
		}
	}

	if err := r.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	if err := b.Start(ctx); err != nil {
		logger.Error("failed to start bridge", "error", err)
		os.Exit(1)
	}

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHealthHandler(reg, cfg.Metrics.Path, b, r, w),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("collector running",
		"bridge_url", cfg.Bridge.URL,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Bridge first: closing its frame channel lets the router drain what was
	// already received before the writer's final flush.
	b.Stop(shutdownCtx)
	r.Stop(shutdownCtx)
	w.Stop(shutdownCtx)
	healthServer.Shutdown(shutdownCtx)

	ws := w.Stats()
	logger.Info("collector stopped",
		"frames_routed", r.Stats().FramesRouted,
		"events_written", ws.Written,
		"write_errors", ws.Errors,
	)
}

// createHealthHandler serves /health and the Prometheus endpoint.
func createHealthHandler(g prometheus.Gatherer, metricsPath string, b *bridge.Bridge, r *router.Router, w *writer.EventWriter) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, metrics.Handler(g))

	mux.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		bs := b.Stats()
		rs := r.Stats()
		ws := w.Stats()

		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		health.Components["bridge"] = map[string]any{
			"connected":  bs.Connected,
			"received":   bs.Received,
			"dropped":    bs.Dropped,
			"reconnects": bs.Reconnects,
		}
		if !bs.Connected {
			health.Status = "degraded"
		}

		health.Components["router"] = map[string]any{
			"routed":          rs.FramesRouted,
			"parse_errors":    rs.ParseErrors,
			"unknown_sources": rs.UnknownSources,
			"queued":          rs.Queue.Count,
			"evicted":         rs.Queue.Evicted,
		}

		health.Components["writer"] = map[string]any{
			"written":    ws.Written,
			"errors":     ws.Errors,
			"queued":     ws.Queued,
			"open_files": ws.OpenFiles,
		}

		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(health)
	})

	return mux
}
