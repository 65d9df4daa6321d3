package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitelens/sitelens/internal/api"
	"github.com/sitelens/sitelens/internal/health"
	"github.com/sitelens/sitelens/internal/otel"
	"github.com/sitelens/sitelens/internal/reduce"
	"github.com/sitelens/sitelens/internal/store"
)

const version = "1.0.0"

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	maxRuns := flag.Int("max-runs", 100, "Maximum number of runs retained before LRU eviction")
	maxSamplesPerRun := flag.Int("max-samples-per-run", 1_000_000, "Maximum samples retained per run")
	cacheSize := flag.Int("cache-size", 256, "Maximum memoized reduction results")
	rateLimit := flag.Float64("rate-limit", 100, "API rate limit in requests/second (0 to disable)")
	rateBurst := flag.Int("rate-burst", 200, "API rate limit burst size")
	healthInterval := flag.Duration("health-interval", 10*time.Second, "Health snapshot collection interval")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	otelExporter := flag.String("otel-exporter", "none", "OpenTelemetry exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint (e.g. localhost:4317)")
	otelInsecure := flag.Bool("otel-insecure", false, "Disable TLS for OTLP connections")
	otelSampleRate := flag.Float64("otel-sample-rate", 1.0, "Trace sampling rate (0.0 to 1.0)")
	devMode := flag.Bool("dev", false, "Development mode: binds to loopback, disables rate limiting, debug logs")
	flag.Parse()

	if *devMode {
		*addr = "127.0.0.1:8080"
		*rateLimit = 0
		*logLevel = "debug"
	}

	setupLogging(*logLevel)

	ctx := context.Background()

	otelEnabled := *otelExporter != "" && *otelExporter != string(otel.ExporterNone)

	tracer, err := otel.NewTracer(ctx, &otel.Config{
		Enabled:        otelEnabled,
		ServiceName:    "sitelens",
		ServiceVersion: version,
		ExporterType:   otel.ExporterType(*otelExporter),
		OTLPEndpoint:   *otelEndpoint,
		OTLPInsecure:   *otelInsecure,
		SampleRate:     *otelSampleRate,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating tracer: %v\n", err)
		os.Exit(1)
	}

	metrics, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:        otelEnabled,
		ServiceName:    "sitelens",
		ServiceVersion: version,
		ExporterType:   otel.ExporterType(*otelExporter),
		OTLPEndpoint:   *otelEndpoint,
		OTLPInsecure:   *otelInsecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating metrics: %v\n", err)
		os.Exit(1)
	}

	runStore := store.NewRunStoreWithConfig(&store.Config{
		MaxSamplesPerRun: *maxSamplesPerRun,
		MaxRuns:          *maxRuns,
	})
	reducer := reduce.NewReducer(*cacheSize)

	monitor := health.NewMonitor(*healthInterval)
	monitor.Start(ctx)

	server := api.NewServer(*addr, runStore, reducer)
	server.SetMetrics(metrics)
	server.SetTracer(tracer)
	server.SetHealthMonitor(monitor)
	server.SetRateLimiterConfig(&api.RateLimiterConfig{
		RequestsPerSecond: *rateLimit,
		BurstSize:         *rateBurst,
		Enabled:           *rateLimit > 0,
	})

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	slog.Info("server_started", "url", server.URL(), "version", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown_error", "error", err)
	}

	monitor.Stop()
	reducer.Close()

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		slog.Error("tracer_shutdown_error", "error", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics_shutdown_error", "error", err)
	}

	slog.Info("server_stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
}
