package telemetry

import (
	"context"
	"time"

	"github.com/dgnsrekt/narrator/internal/tts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dgnsrekt/narrator/internal/telemetry"

// InstrumentedEngine records a span, latency and failures for every call to
// the wrapped engine.
type InstrumentedEngine struct {
	next     tts.Engine
	tracer   trace.Tracer
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	chars    metric.Int64Counter
}

// NewInstrumentedEngine wraps next.
func NewInstrumentedEngine(next tts.Engine, mp metric.MeterProvider, tp trace.TracerProvider) (*InstrumentedEngine, error) {
	meter := mp.Meter(instrumentationName)
	latency, err := meter.Float64Histogram("narrator.synthesis.duration",
		metric.WithDescription("Synthesis call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("narrator.synthesis.failures",
		metric.WithDescription("Failed synthesis calls by kind"))
	if err != nil {
		return nil, err
	}
	chars, err := meter.Int64Counter("narrator.synthesis.characters",
		metric.WithDescription("Characters sent for synthesis"))
	if err != nil {
		return nil, err
	}
	return &InstrumentedEngine{
		next:     next,
		tracer:   tp.Tracer(instrumentationName),
		latency:  latency,
		failures: failures,
		chars:    chars,
	}, nil
}

// Name returns the wrapped engine's name.
func (e *InstrumentedEngine) Name() string {
	return e.next.Name()
}

// Synthesize calls the wrapped engine.
func (e *InstrumentedEngine) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (*tts.AudioResult, error) {
	engineAttr := attribute.String("engine", e.next.Name())
	ctx, span := e.tracer.Start(ctx, "tts.synthesize", trace.WithAttributes(
		engineAttr,
		attribute.Int("text.length", len(req.Text)),
		attribute.String("voice.name", req.Voice.Name),
		attribute.String("voice.language", req.Voice.LanguageCode),
	))
	defer span.End()

	start := time.Now()
	result, err := e.next.Synthesize(ctx, req)
	e.latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(engineAttr))
	e.chars.Add(ctx, int64(len(req.Text)), metric.WithAttributes(engineAttr))

	if err != nil {
		kind, ok := tts.Classify(err)
		if !ok {
			span.SetAttributes(attribute.Bool("cancelled", true))
			return nil, err
		}
		e.failures.Add(ctx, 1, metric.WithAttributes(engineAttr, attribute.String("kind", string(kind))))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return nil, err
	}

	span.SetAttributes(attribute.Int("audio.bytes", len(result.Data)))
	return result, nil
}
