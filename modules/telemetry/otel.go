package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc shuts down telemetry providers.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init wires telemetry according to Config. Call once on startup.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: ServiceName is required")
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDetect
	}

	setPropagator()

	switch cfg.Mode {
	case ModeDisabled:
		slog.Info("telemetry disabled, using global no-op providers")
		return noopShutdown, nil

	case ModeAuto:
		return initAutoMode(ctx, cfg, detectGoAuto())

	case ModeManual:
		return initManualMode(ctx, cfg)

	case ModeDetect:
		if detectGoAuto() {
			return initAutoMode(ctx, cfg, true)
		}
		return initManualMode(ctx, cfg)

	default:
		return nil, fmt.Errorf("telemetry: unknown Mode %q", cfg.Mode)
	}
}

// detectGoAuto checks for official Go auto-instrumentation signals.
// OTEL_GO_AUTO_TARGET_EXE is required by the Operator's Go auto-instrumentation.
func detectGoAuto() bool {
	if os.Getenv("OTEL_GO_AUTO_TARGET_EXE") != "" {
		slog.Info("using auto-instrumentation with sidecar agent")
		return true
	}
	switch strings.ToLower(os.Getenv("OTEL_GO_AUTO_ENABLED")) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func setPropagator() {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)
}

// In auto mode the sidecar owns the TracerProvider. Only the MeterProvider is
// set up here, for the publisher outcome counters.
func initAutoMode(ctx context.Context, cfg Config, autoDetected bool) (ShutdownFunc, error) {
	if !autoDetected {
		slog.Warn("telemetry: auto mode requested but no Go auto-instrumentation detected; using global no-op")
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource in auto mode: %w", err)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		slog.Warn("failed to initialize metrics in auto mode, continuing without custom metrics", slog.Any("error", err))
		return noopShutdown, nil
	}

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: meter provider shutdown: %w", err)
		}
		return nil
	}, nil
}

// Manual mode: standard OTel SDK + OTLP exporter
func initManualMode(parent context.Context, cfg Config) (ShutdownFunc, error) {
	ctx, cancel := context.WithTimeout(parent, cfg.StartupTimeout)
	defer cancel()

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var exp sdktrace.SpanExporter
	if cfg.protocol(false) == ProtocolGRPC {
		exp, err = otlptracegrpc.New(ctx, grpcTraceOptions(cfg)...)
	} else {
		exp, err = otlptracehttp.New(ctx, httpTraceOptions(cfg)...)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.SamplerRatio)),
	)
	otel.SetTracerProvider(tp)

	var mp *sdkmetric.MeterProvider
	if !cfg.DisableMetrics {
		if mp, err = newMeterProvider(ctx, cfg, res); err != nil {
			return nil, errors.Join(err, tp.Shutdown(parent))
		}
	}

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: tracer provider shutdown: %w", err))
		}
		if mp != nil {
			if err := mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("telemetry: meter provider shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	}, nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var (
		mexp sdkmetric.Exporter
		err  error
	)
	if cfg.protocol(true) == ProtocolGRPC {
		mexp, err = otlpmetricgrpc.New(ctx, grpcMetricOptions(cfg)...)
	} else {
		mexp, err = otlpmetrichttp.New(ctx, httpMetricOptions(cfg)...)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mexp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func buildResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(
		ctx,
		resource.WithFromEnv(),      // OTEL_RESOURCE_ATTRIBUTES, etc.
		resource.WithTelemetrySDK(), // telemetry.sdk.*
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

func hasScheme(ep string) bool {
	return strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://")
}

func grpcTraceOptions(cfg Config) []otlptracegrpc.Option {
	var opts []otlptracegrpc.Option
	switch ep := cfg.OTLPEndpoint; {
	case ep == "":
	case hasScheme(ep):
		opts = append(opts, otlptracegrpc.WithEndpointURL(ep))
	default:
		opts = append(opts, otlptracegrpc.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func httpTraceOptions(cfg Config) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	switch ep := cfg.OTLPEndpoint; {
	case ep == "":
	case hasScheme(ep):
		opts = append(opts, otlptracehttp.WithEndpointURL(ep))
	default:
		opts = append(opts, otlptracehttp.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func grpcMetricOptions(cfg Config) []otlpmetricgrpc.Option {
	var opts []otlpmetricgrpc.Option
	switch ep := cfg.metricsEndpoint(); {
	case ep == "":
	case hasScheme(ep):
		opts = append(opts, otlpmetricgrpc.WithEndpointURL(ep))
	default:
		opts = append(opts, otlpmetricgrpc.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func httpMetricOptions(cfg Config) []otlpmetrichttp.Option {
	var opts []otlpmetrichttp.Option
	switch ep := cfg.metricsEndpoint(); {
	case ep == "":
	case hasScheme(ep):
		opts = append(opts, otlpmetrichttp.WithEndpointURL(ep))
	default:
		opts = append(opts, otlpmetrichttp.WithEndpoint(ep))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

func buildSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
