// Package telemetry installs the OpenTelemetry tracer provider.
//
// Spans are created throughout the module with otel.Tracer. Until Init runs
// with an exporter, they go to the global no-op provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/secondbrain/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// ErrUnknownExporter indicates an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(context.Context) error

// Option configures Init.
type Option func(*settings)

type settings struct {
	writer  io.Writer
	logger  *slog.Logger
	version string
}

// WithWriter sends stdout exporter output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
	}
}

// WithLogger sets the logger used to report initialization.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion records the service version on every span.
func WithVersion(version string) Option {
	return func(s *settings) {
		s.version = version
	}
}

// Init installs a global tracer provider exporting spans as cfg describes.
// With the "none" exporter nothing is installed and the returned ShutdownFunc
// does nothing.
func Init(ctx context.Context, cfg config.TracingConfig, opts ...Option) (ShutdownFunc, error) {
	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	logger := s.logger.With("component", "telemetry")

	exporter, err := newExporter(ctx, cfg, s.writer)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		return func(context.Context) error { return nil }, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "secondbrain"
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(s.version),
		),
	)
	if err != nil {
		logger.Warn("building trace resource", "err", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	logger.Info("tracing initialized", "exporter", cfg.Exporter, "service", serviceName, "sample_ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg config.TracingConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if w != nil {
			opts = append(opts, stdouttrace.WithWriter(w))
		}
		return stdouttrace.New(opts...)
	case "otlp":
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}
		return exporter, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
}
