package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTracerName names spans emitted by skillctl packages
const DefaultTracerName = "skillctl"

// Span attributes set by skillctl
const (
	AttrSkillTree    = attribute.Key("skill.tree")
	AttrSkillName    = attribute.Key("skill.name")
	AttrCorpusSkills = attribute.Key("corpus.skills")
	AttrFindings     = attribute.Key("findings.total")
	AttrErrors       = attribute.Key("findings.errors")
	AttrWarnings     = attribute.Key("findings.warnings")
	AttrInfos        = attribute.Key("findings.infos")
)

// Tracer returns a tracer from the global provider, DefaultTracerName when name is empty
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return otel.GetTracerProvider().Tracer(name)
}

// WithSpan runs f inside a span and marks the span failed when f returns an error
func WithSpan(ctx context.Context, name string, f func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer("").Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := f(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// WithSpanFunc is WithSpan for work that cannot fail
func WithSpanFunc(ctx context.Context, name string, f func(context.Context), attrs ...attribute.KeyValue) {
	ctx, span := Tracer("").Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	f(ctx)
	span.SetStatus(codes.Ok, "")
}

// SkillAttributes identifies one skill of the corpus
func SkillAttributes(tree, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSkillTree.String(tree),
		AttrSkillName.String(name),
	}
}

// CorpusAttributes describes the corpus a run works on
func CorpusAttributes(root string, skills int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCorpusRoot.String(root),
		AttrCorpusSkills.Int(skills),
	}
}

// RecordFindings sets the finding totals of a lint run on the span in ctx
func RecordFindings(ctx context.Context, errors, warnings, infos int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		AttrFindings.Int(errors+warnings+infos),
		AttrErrors.Int(errors),
		AttrWarnings.Int(warnings),
		AttrInfos.Int(infos),
	)
}
