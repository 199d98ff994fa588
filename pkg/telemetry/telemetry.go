package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/learnchain/txwatcher/config"
)

// Init wires the global tracer provider to an OTLP/HTTP collector. With no
// endpoint configured it leaves the default no-op provider in place. The
// returned shutdown function flushes pending spans.
func Init(ctx context.Context, cfg *config.TelemetryConfig) (func(context.Context) error, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	}
	if cfg.Credential != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": cfg.Credential,
		}))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "txwatcher"
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			attribute.String("deployment.environment", cfg.Env),
		)),
	)
	otel.SetTracerProvider(provider)
	log.Info().Str("Endpoint", cfg.Endpoint).Str("ServiceName", serviceName).
		Msg("[Telemetry] [Init] trace exporter configured")
	return provider.Shutdown, nil
}
