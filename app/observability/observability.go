// Package observability builds the logger, metrics registry and tracer
// provider shared by every module.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/angelgru/gamification/app/observability/attr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds the settings needed to build an Observability.
type Config struct {
	ServiceName     string
	Environment     string
	Version         string
	LogLevel        string
	OTLPEndpoint    string
	TraceSampleRate float64
	MetricsAddress  string

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// Provider holds the logging and tracing providers.
type Provider struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// Registry holds the metrics registry and the service tracer.
type Registry struct {
	Prometheus *prometheus.Registry
	Tracer     trace.Tracer
}

// Observability bundles everything a module needs to log, trace and count.
type Observability struct {
	Provider Provider
	Registry Registry
	Config   Config

	shutdown func(context.Context) error
}

// Init builds the logger, a Prometheus registry and the tracer provider.
// Traces are exported over OTLP/HTTP only when an endpoint is configured.
func Init(ctx context.Context, cfg Config) (*Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "gamification"
	}
	out := cfg.LogOutput
	if out == nil {
		out = os.Stdout
	}

	logger := slog.New(&correlationHandler{
		Handler: slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}),
	}).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := &Observability{
		Provider: Provider{Logger: logger},
		Registry: Registry{Prometheus: registry},
		Config:   cfg,
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.OTLPEndpoint == "" {
		obs.Provider.TracerProvider = noop.NewTracerProvider()
		obs.Registry.Tracer = obs.Provider.TracerProvider.Tracer(cfg.ServiceName)
		logger.InfoContext(ctx, "Tracing disabled, no OTLP endpoint configured")
		return obs, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		logger.WarnContext(ctx, "OpenTelemetry resource init failed (continuing)", attr.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRate))),
		sdktrace.WithResource(res),
	)
	obs.Provider.TracerProvider = tp
	obs.Registry.Tracer = tp.Tracer(cfg.ServiceName)
	obs.shutdown = tp.Shutdown

	logger.InfoContext(ctx, "Tracing initialized",
		attr.String("endpoint", cfg.OTLPEndpoint),
		attr.Any("sample_rate", cfg.TraceSampleRate),
	)
	return obs, nil
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func (o *Observability) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(o.Registry.Prometheus, promhttp.HandlerOpts{Registry: o.Registry.Prometheus})
}

// Shutdown flushes pending spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	if err := o.shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// correlationHandler adds the correlation ID carried by the record's context.
type correlationHandler struct {
	slog.Handler
}

func (h *correlationHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := attr.CorrelationIDFrom(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *correlationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *correlationHandler) WithGroup(name string) slog.Handler {
	return &correlationHandler{Handler: h.Handler.WithGroup(name)}
}
