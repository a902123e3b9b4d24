package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

func recording(t *testing.T) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &Provider{tp: tp, tracer: tp.Tracer(ServiceName)}, rec
}

func TestDisabledProvider(t *testing.T) {
	p, err := Init(Config{}, logging.Nop())
	require.NoError(t, err)

	job := models.Job{ID: "abc", Method: "SCAN", Scheme: models.SchemeD4}
	_, span := p.StartRun(context.Background(), job, "run-1")
	assert.False(t, span.SpanContext().IsValid())
	End(span, nil)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestRunAndStructureSpans(t *testing.T) {
	p, rec := recording(t)

	job := models.Job{ID: "abc", InputPath: "in.extxyz", OutputPath: "out.extxyz", Method: "SCAN", Scheme: models.SchemeD3}
	ctx, run := p.StartRun(context.Background(), job, "run-1")

	s := models.NewStructure()
	s.Species = []string{"O", "H", "H"}
	s.Positions = make([][3]float64, 3)
	sctx, structure := p.StartStructure(ctx, 7, s)
	Stage(sctx, "correct")
	End(structure, nil)
	End(run, nil)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	child, root := ended[0], ended[1]

	assert.Equal(t, "structure", child.Name())
	assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Contains(t, child.Attributes(), IndexKey.Int(7))
	assert.Contains(t, child.Attributes(), AtomsKey.Int(3))
	require.Len(t, child.Events(), 1)
	assert.Contains(t, child.Events()[0].Attributes, StageKey.String("correct"))

	assert.Equal(t, "label", root.Name())
	assert.Contains(t, root.Attributes(), JobIDKey.String("abc"))
	assert.Contains(t, root.Attributes(), SchemeKey.String(models.SchemeD3.String()))
	assert.Equal(t, codes.Ok, root.Status().Code)
}

func TestEndOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   codes.Code
		wantEvents []string
	}{
		{"success", nil, codes.Ok, nil},
		{"failure", errors.New("missing field"), codes.Error, []string{"exception"}},
		{"interrupt", fmt.Errorf("run interrupted: %w", context.Canceled), codes.Unset, []string{"interrupted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec := recording(t)
			_, span := p.tracer.Start(context.Background(), "structure")
			End(span, tt.err)

			ended := rec.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, tt.wantCode, ended[0].Status().Code)
			var names []string
			for _, ev := range ended[0].Events() {
				names = append(names, ev.Name)
			}
			assert.Equal(t, tt.wantEvents, names)
		})
	}
}
