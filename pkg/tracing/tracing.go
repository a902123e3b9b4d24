package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

// ServiceName identifies spans from this tool
const ServiceName = "dftdlabel"

// Span attribute keys
const (
	JobIDKey     = attribute.Key("dftdlabel.job.id")
	InputKey     = attribute.Key("dftdlabel.job.input")
	OutputKey    = attribute.Key("dftdlabel.job.output")
	MethodKey    = attribute.Key("dftdlabel.method")
	SchemeKey    = attribute.Key("dftdlabel.scheme")
	IndexKey     = attribute.Key("dftdlabel.structure.index")
	AtomsKey     = attribute.Key("dftdlabel.structure.atoms")
	StageKey     = attribute.Key("dftdlabel.stage")
	RunIDKey     = attribute.Key("dftdlabel.run.id")
	interruptEvt = "interrupted"
)

// Config holds the tracing configuration
type Config struct {
	Enabled        bool
	OTLPEndpoint   string // host:port of an OTLP/HTTP collector, e.g. localhost:4318
	ServiceVersion string
}

// Provider hands out spans for labelling runs
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init creates a provider exporting to cfg.OTLPEndpoint. A disabled config
// yields a provider whose spans go nowhere.
func Init(cfg Config, logger *logging.Logger) (*Provider, error) {
	if !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return Noop(), nil
	}

	ctx := context.Background()
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: otlp exporter for %q: %v", models.ErrConfig, cfg.OTLPEndpoint, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Tracing initialized", map[string]interface{}{"endpoint": cfg.OTLPEndpoint})
	return &Provider{tp: tp, tracer: tp.Tracer(ServiceName)}, nil
}

// Noop returns a provider that records nothing
func Noop() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer(ServiceName)}
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartRun opens the root span of one labelling run
func (p *Provider) StartRun(ctx context.Context, job models.Job, runID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "label",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			JobIDKey.String(job.ID),
			RunIDKey.String(runID),
			InputKey.String(job.InputPath),
			OutputKey.String(job.OutputPath),
			MethodKey.String(job.Method),
			SchemeKey.String(job.Scheme.String()),
		))
}

// StartStructure opens a child span for one dataset index
func (p *Provider) StartStructure(ctx context.Context, index int, s *models.Structure) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "structure", trace.WithAttributes(
		IndexKey.Int(index),
		AtomsKey.Int(s.NumAtoms()),
	))
}

// Stage marks the start of a pipeline stage on the span in ctx
func Stage(ctx context.Context, stage string) {
	trace.SpanFromContext(ctx).AddEvent("stage", trace.WithAttributes(StageKey.String(stage)))
}

// End closes span with the outcome of err. Cancellation is an interrupt,
// not a failure.
func End(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.AddEvent(interruptEvt)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
