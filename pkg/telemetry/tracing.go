// Package telemetry exports skillctl traces over OTLP/HTTP. Every span
// carries resource attributes naming the build and the corpus that was
// processed, so runs against different corpora can be told apart.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ServiceName identifies skillctl in exported traces
const ServiceName = "skillctl"

// Resource attributes describing the build and the corpus
const (
	AttrBuildCommit = attribute.Key("skillctl.build.commit")
	AttrCorpusRoot  = attribute.Key("skillctl.corpus.root")
	AttrCorpusTrees = attribute.Key("skillctl.corpus.trees")
)

// Samplers accepted by Config.Sampler
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config controls trace export for one skillctl invocation
type Config struct {
	Enabled   bool
	Version   string
	GitCommit string
	Sampler   string  // always, never or ratio
	Ratio     float64 // fraction of root spans kept by the ratio sampler
	Root      string
	Trees     []string
}

// Validate checks the sampler settings
func (c Config) Validate() error {
	switch c.Sampler {
	case SamplerAlways, SamplerNever:
	case SamplerRatio:
		if c.Ratio < 0 || c.Ratio > 1 {
			return errors.Errorf("tracing ratio must be between 0 and 1, got %g", c.Ratio)
		}
	default:
		return errors.Errorf("unknown tracing sampler %q, expected always, never or ratio", c.Sampler)
	}
	return nil
}

// InitTracer installs a global tracer provider exporting over OTLP/HTTP and
// returns its shutdown function. The endpoint and headers come from the
// standard OTEL_EXPORTER_OTLP_* environment variables. When tracing is
// disabled nothing is installed and the shutdown function is a no-op.
func InitTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	provider, err := NewProvider(ctx, cfg, trace.NewBatchSpanProcessor(
		exporter,
		trace.WithMaxExportBatchSize(512),
		trace.WithBatchTimeout(time.Second),
	))
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Wrap(provider.Shutdown(ctx), "failed to flush traces")
	}, nil
}

// NewProvider builds a tracer provider for cfg that hands spans to processor.
// Shutting the provider down also shuts down the processor and its exporter.
func NewProvider(ctx context.Context, cfg Config, processor trace.SpanProcessor) (*trace.TracerProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSpanProcessor(processor),
		trace.WithSampler(newSampler(cfg)),
	), nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.Version),
	}
	if cfg.GitCommit != "" {
		attrs = append(attrs, AttrBuildCommit.String(cfg.GitCommit))
	}
	if cfg.Root != "" {
		attrs = append(attrs, AttrCorpusRoot.String(cfg.Root))
	}
	if len(cfg.Trees) > 0 {
		attrs = append(attrs, AttrCorpusTrees.StringSlice(cfg.Trees))
	}

	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace resource")
	}
	return res, nil
}

// newSampler assumes cfg has been validated
func newSampler(cfg Config) trace.Sampler {
	switch cfg.Sampler {
	case SamplerNever:
		return trace.NeverSample()
	case SamplerRatio:
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.Ratio))
	default:
		return trace.AlwaysSample()
	}
}
