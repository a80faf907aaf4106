// Package telemetry sets up OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config selects exporters.
type Config struct {
	ServiceName string
	// Metrics enables the Prometheus exporter and MetricsHandler.
	Metrics bool
	// OTLPEndpoint sends traces over gRPC when set.
	OTLPEndpoint string
	OTLPInsecure bool
	// TraceStdout prints traces when no OTLP endpoint is set.
	TraceStdout bool
}

// Telemetry owns the providers. The zero value is not usable; see Setup.
type Telemetry struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
	shutdowns      []func(context.Context) error
}

// Setup builds providers for cfg and installs them as the otel globals.
// Disabled signals use no-op providers.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Telemetry, error) {
	logger = logger.With("component", "telemetry")
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		meterProvider:  metricnoop.NewMeterProvider(),
		tracerProvider: tracenoop.NewTracerProvider(),
	}

	if err := t.initTracer(ctx, cfg, res, logger); err != nil {
		return nil, err
	}
	if err := t.initMetrics(cfg, res, logger); err != nil {
		t.Shutdown(ctx)
		return nil, err
	}

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	return t, nil
}

func (t *Telemetry) initTracer(ctx context.Context, cfg Config, res *resource.Resource, logger *slog.Logger) error {
	var exporter sdktrace.SpanExporter
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return err
		}
		exporter = exp
		logger.Info("tracing initialized", "exporter", "otlp", "endpoint", endpoint)
	} else if cfg.TraceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		exporter = exp
		logger.Info("tracing initialized", "exporter", "stdout")
	} else {
		return nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.tracerProvider = tp
	t.shutdowns = append(t.shutdowns, tp.Shutdown)
	return nil
}

func (t *Telemetry) initMetrics(cfg Config, res *resource.Resource, logger *slog.Logger) error {
	if !cfg.Metrics {
		return nil
	}
	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	t.meterProvider = mp
	t.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	t.shutdowns = append(t.shutdowns, mp.Shutdown)
	logger.Info("metrics initialized", "exporter", "prometheus")
	return nil
}

// MeterProvider returns the configured meter provider.
func (t *Telemetry) MeterProvider() metric.MeterProvider { return t.meterProvider }

// TracerProvider returns the configured tracer provider.
func (t *Telemetry) TracerProvider() trace.TracerProvider { return t.tracerProvider }

// MetricsHandler serves Prometheus metrics, or nil when metrics are disabled.
func (t *Telemetry) MetricsHandler() http.Handler { return t.metricsHandler }

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil
	return errors.Join(errs...)
}
