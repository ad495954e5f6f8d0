// Package otel provides OpenTelemetry tracer provider initialization and management.
package otel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/ayushev/micro-man-tools/internal/config"
)

const exportTimeout = 10 * time.Second

// newExporter returns the span exporter kind selects: OTLP/HTTP to
// endpoint, or pretty-printed JSON written to out.
//
// The HTTP client honors HTTP_PROXY, HTTPS_PROXY and NO_PROXY through the
// standard net/http transport.
func newExporter(ctx context.Context, kind, endpoint string, out io.Writer) (sdktrace.SpanExporter, error) {
	if kind == config.ExporterStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exporter, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(exportTimeout)}
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// InitProvider initializes the OpenTelemetry tracer provider.
//
// Spans go to the exporter cfg resolves to: the OTLP/HTTP collector, or
// out. Root spans take their trace ID from the context
// when one was attached with ContextWithTraceID.
func InitProvider(ctx context.Context, cfg *config.OTELConfig, version string, out io.Writer, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	kind, err := cfg.ResolveExporter()
	if err != nil {
		return nil, err
	}
	endpoint := cfg.CollectorEndpoint()

	logger.Debug("OTEL configuration",
		zap.String("service_name", cfg.ServiceName),
		zap.String("exporter", kind),
		zap.String("otel_exporter_otlp_endpoint", cfg.Endpoint),
		zap.String("otel_exporter_otlp_traces_endpoint", cfg.TracesEndpoint),
		zap.Any("resource_attributes", cfg.Resource),
	)
	if kind == config.ExporterStdout {
		logger.Info("writing spans to stdout")
	} else {
		logger.Info("exporting spans over OTLP/HTTP", zap.String("endpoint", endpoint))
	}

	exporter, err := newExporter(ctx, kind, endpoint, out)
	if err != nil {
		return nil, err
	}

	resourceAttrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	}

	if customAttrs := cfg.ResourceAttributes(); len(customAttrs) > 0 {
		resourceAttrs = append(resourceAttrs, resource.WithAttributes(customAttrs...))
	}

	res, err := resource.New(ctx, resourceAttrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(NewIDGenerator()),
	)

	return tp, nil
}

// ShutdownProvider gracefully shuts down the tracer provider, flushing any remaining spans.
func ShutdownProvider(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	return nil
}
