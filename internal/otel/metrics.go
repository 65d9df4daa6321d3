// Package otel provides OpenTelemetry metrics integration for sitelens.
package otel

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "sitelens",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics functionality with sitelens-specific helpers.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error

	activeRuns   atomic.Int64
	runsGauge    metric.Int64ObservableGauge
	runsGaugeReg metric.Registration

	// Metric instruments
	reduceDuration  metric.Float64Histogram
	samplesIngested metric.Int64Counter
	pointsIn        metric.Int64Counter
	pointsOut       metric.Int64Counter
	cacheLookups    metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// No-op meter when disabled.
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	otel.SetMeterProvider(mp)

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	m.reduceDuration, err = m.meter.Float64Histogram(
		"sitelens.reduce.duration",
		metric.WithDescription("Duration of reduction pipeline invocations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reduce duration histogram: %w", err)
	}

	m.samplesIngested, err = m.meter.Int64Counter(
		"sitelens.samples.ingested",
		metric.WithDescription("Count of raw telemetry samples ingested"),
	)
	if err != nil {
		return fmt.Errorf("failed to create samples ingested counter: %w", err)
	}

	m.pointsIn, err = m.meter.Int64Counter(
		"sitelens.reduce.points_in",
		metric.WithDescription("Raw points entering the reduction pipeline"),
	)
	if err != nil {
		return fmt.Errorf("failed to create points-in counter: %w", err)
	}

	m.pointsOut, err = m.meter.Int64Counter(
		"sitelens.reduce.points_out",
		metric.WithDescription("Chart points produced by the reduction pipeline"),
	)
	if err != nil {
		return fmt.Errorf("failed to create points-out counter: %w", err)
	}

	m.cacheLookups, err = m.meter.Int64Counter(
		"sitelens.reduce.cache_lookups",
		metric.WithDescription("Reduction cache lookups by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache lookup counter: %w", err)
	}

	m.runsGauge, err = m.meter.Int64ObservableGauge(
		"sitelens.runs.active",
		metric.WithDescription("Number of runs currently held in memory"),
	)
	if err != nil {
		return fmt.Errorf("failed to create runs gauge: %w", err)
	}

	m.runsGaugeReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.runsGauge, m.activeRuns.Load())
			return nil
		},
		m.runsGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register runs gauge callback: %w", err)
	}

	return nil
}

// RecordReduce records one pipeline invocation: its duration and the
// input/output point counts, attributed by cache outcome.
func (m *Metrics) RecordReduce(ctx context.Context, durationMs float64, pointsIn, pointsOut int, cached bool) {
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	attrs := metric.WithAttributes(attribute.String("cache", outcome))

	if m.cacheLookups != nil {
		m.cacheLookups.Add(ctx, 1, attrs)
	}
	if cached {
		return
	}
	if m.reduceDuration != nil {
		m.reduceDuration.Record(ctx, durationMs)
	}
	if m.pointsIn != nil {
		m.pointsIn.Add(ctx, int64(pointsIn))
	}
	if m.pointsOut != nil {
		m.pointsOut.Add(ctx, int64(pointsOut))
	}
}

// RecordIngest records a batch of ingested samples.
func (m *Metrics) RecordIngest(ctx context.Context, count int) {
	if m.samplesIngested == nil {
		return
	}
	m.samplesIngested.Add(ctx, int64(count))
}

// SetActiveRuns sets the run count read by the observable gauge.
// Thread-safe.
func (m *Metrics) SetActiveRuns(n int) {
	m.activeRuns.Store(int64(n))
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.runsGaugeReg != nil {
		if err := m.runsGaugeReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister runs gauge callback: %w", err)
		}
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
