package telemetry

import (
	"context"

	"github.com/dgnsrekt/narrator/internal/narration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// NarrationObserver counts controller events. Its Observe method is a
// narration.Listener.
type NarrationObserver struct {
	events metric.Int64Counter
	errors metric.Int64Counter
}

// NewNarrationObserver creates the observer's instruments.
func NewNarrationObserver(mp metric.MeterProvider) (*NarrationObserver, error) {
	meter := mp.Meter(instrumentationName)
	events, err := meter.Int64Counter("narrator.narration.events",
		metric.WithDescription("Narration events by type and phase"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("narrator.narration.errors",
		metric.WithDescription("Narration sessions that failed, by kind"))
	if err != nil {
		return nil, err
	}
	return &NarrationObserver{events: events, errors: errs}, nil
}

// Observe records ev. Progress ticks are ignored.
func (o *NarrationObserver) Observe(ev narration.Event) {
	if ev.Type == narration.EventProgress {
		return
	}
	ctx := context.Background()
	o.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(ev.Type)),
		attribute.String("phase", ev.Snapshot.Phase.String()),
	))
	if ev.Type == narration.EventError && ev.Snapshot.LastError != nil {
		o.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", ev.Snapshot.LastError.Kind)))
	}
}
