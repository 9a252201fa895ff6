package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/paularlott/gisadmin/build"
	"github.com/paularlott/gisadmin/internal/config"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/paularlott/gisadmin"

// Tracing holds the tracer provider for a command run, a disabled Tracing is a no-op.
type Tracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// Init configures OTLP/HTTP trace export when an endpoint is configured.
func Init(ctx context.Context, cfg *config.TelemetryConfig) (*Tracing, error) {
	if cfg == nil || !cfg.Enabled {
		return &Tracing{tracer: otel.Tracer(tracerName)}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gisadmin"
	}

	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(build.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Debug().Str("endpoint", cfg.Endpoint).Msg("telemetry: tracing enabled")

	return &Tracing{provider: provider, tracer: provider.Tracer(tracerName)}, nil
}

func exporterOptions(cfg *config.TelemetryConfig) ([]otlptracehttp.Option, error) {
	var opts []otlptracehttp.Option

	parsed, err := url.Parse(cfg.Endpoint)
	if err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		if parsed.Host == "" {
			return nil, fmt.Errorf("invalid OTLP endpoint: %s", cfg.Endpoint)
		}
		opts = append(opts, otlptracehttp.WithEndpoint(parsed.Host))
		if parsed.Path != "" && parsed.Path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(parsed.Path))
		}
		if parsed.Scheme == "http" || cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}

	return opts, nil
}

func newTraceExporter(ctx context.Context, cfg *config.TelemetryConfig) (*otlptrace.Exporter, error) {
	opts, err := exporterOptions(cfg)
	if err != nil {
		return nil, err
	}
	return otlptracehttp.New(ctx, opts...)
}

func (t *Tracing) Enabled() bool {
	return t != nil && t.provider != nil
}

// Transport wraps an HTTP transport so each REST request becomes a client span.
func (t *Tracing) Transport(next http.RoundTripper) http.RoundTripper {
	if !t.Enabled() {
		return next
	}
	return otelhttp.NewTransport(next,
		otelhttp.WithTracerProvider(t.provider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// StartCommand opens the root span for a command.
func (t *Tracing) StartCommand(ctx context.Context, command string, site string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, command, trace.WithAttributes(
		attribute.String("gisadmin.command", command),
		attribute.String("gisadmin.site", site),
	))
}

// EndSpan records err on the span before ending it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
