// Package observability provides OpenTelemetry tracing and metrics for the
// governor. A nil *Provider is valid and records nothing, so library code
// can take one unconditionally.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "governor"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string        // gRPC, e.g. "localhost:4317"
	SampleRate     float64       // 0.0 to 1.0
	BatchTimeout   time.Duration // span batch flush interval
	Enabled        bool
	Insecure       bool // plaintext gRPC, dev only

	// Reader replaces the OTLP metric exporter. Traces are then kept
	// in-process only.
	Reader sdkmetric.Reader
}

// DefaultConfig returns production defaults. Telemetry is off unless an
// endpoint is configured.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "governor",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
	}
}

// Provider manages OpenTelemetry trace and metric providers.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger
	slo            *SLOTracker

	// RED metrics
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	durationHist     metric.Float64Histogram
	activeOperations metric.Int64UpDownCounter

	// Escalation metrics
	evaluationCounter metric.Int64Counter
	oracleCounter     metric.Int64Counter
	oracleDuration    metric.Float64Histogram
}

// New creates a provider. With Enabled false it only tracks SLOs.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
		slo:    NewSLOTracker(),
	}
	for _, t := range DefaultSLOTargets() {
		p.slo.SetTarget(t)
	}

	if !config.Enabled {
		p.logger.DebugContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = p.tracerProvider.Tracer(instrumentationName,
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = p.meterProvider.Meter(instrumentationName,
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate,
	)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	if p.config.Reader == nil {
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
		if p.config.Insecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	if p.config.Reader == nil {
		otel.SetTracerProvider(p.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	reader := p.config.Reader
	if reader == nil {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
		if p.config.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	if p.config.Reader == nil {
		otel.SetMeterProvider(p.meterProvider)
	}
	return nil
}

func (p *Provider) initMetrics() error {
	var err error

	if p.requestCounter, err = p.meter.Int64Counter("governor.operations.total",
		metric.WithDescription("Total number of operations processed"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return err
	}
	if p.errorCounter, err = p.meter.Int64Counter("governor.errors.total",
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	if p.durationHist, err = p.meter.Float64Histogram("governor.operation.duration",
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0),
	); err != nil {
		return err
	}
	if p.activeOperations, err = p.meter.Int64UpDownCounter("governor.operations.active",
		metric.WithDescription("Number of in-flight operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return err
	}
	if p.evaluationCounter, err = p.meter.Int64Counter("governor.escalation.evaluations",
		metric.WithDescription("Escalation evaluations by final level"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return err
	}
	if p.oracleCounter, err = p.meter.Int64Counter("governor.oracle.calls",
		metric.WithDescription("Oracle consultations by outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return err
	}
	if p.oracleDuration, err = p.meter.Float64Histogram("governor.oracle.duration",
		metric.WithDescription("Oracle consultation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0, 30.0),
	); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the configured tracer, or the global one.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return p.tracer
}

// Meter returns the configured meter, or the global one.
func (p *Provider) Meter() metric.Meter {
	if p == nil || p.meter == nil {
		return otel.Meter(instrumentationName)
	}
	return p.meter
}

// SLO reports the SLO status for an operation.
func (p *Provider) SLO(operation string) (*SLOStatus, error) {
	if p == nil {
		return nil, fmt.Errorf("observability disabled")
	}
	return p.slo.Status(operation)
}

// StartSpan starts a new span with the given name.
func (p *Provider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, opts...)
}

// RecordError counts a failed operation.
func (p *Provider) RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if p == nil || p.errorCounter == nil {
		return
	}
	all := append(append([]attribute.KeyValue(nil), attrs...), attribute.String("error.type", fmt.Sprintf("%T", err)))
	p.errorCounter.Add(ctx, 1, metric.WithAttributes(all...))
}

// RecordEvaluation counts an evaluation by its final level.
func (p *Provider) RecordEvaluation(ctx context.Context, level string, oracleEligible bool) {
	if p == nil || p.evaluationCounter == nil {
		return
	}
	p.evaluationCounter.Add(ctx, 1, metric.WithAttributes(
		AttrEscalationLevel.String(level),
		AttrOracleEligible.Bool(oracleEligible),
	))
}

// RecordOracleCall records one oracle consultation.
func (p *Provider) RecordOracleCall(ctx context.Context, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	p.slo.Record(SLOObservation{
		Operation: OperationOracle,
		Latency:   d,
		Success:   outcome == "opinion" || outcome == "abstain",
	})
	if p.oracleCounter == nil {
		return
	}
	attrs := metric.WithAttributes(AttrOracleOutcome.String(outcome))
	p.oracleCounter.Add(ctx, 1, attrs)
	p.oracleDuration.Record(ctx, d.Seconds(), attrs)
}

// TrackOperation tracks an operation from start to finish. Call the returned
// function when the operation completes.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if p == nil {
		return ctx, func(error) {}
	}
	start := time.Now()

	ctx, span := p.StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	opAttrs := metric.WithAttributes(append(append([]attribute.KeyValue(nil), attrs...), AttrOperation.String(name))...)

	if p.activeOperations != nil {
		p.activeOperations.Add(ctx, 1, opAttrs)
		p.requestCounter.Add(ctx, 1, opAttrs)
	}

	return ctx, func(err error) {
		d := time.Since(start)
		p.slo.Record(SLOObservation{Operation: name, Latency: d, Success: err == nil})

		if p.activeOperations != nil {
			p.activeOperations.Add(ctx, -1, opAttrs)
			p.durationHist.Record(ctx, d.Seconds(), opAttrs)
		}
		if err != nil {
			span.RecordError(err)
			p.RecordError(ctx, err, attrs...)
		}
		span.End()
	}
}
