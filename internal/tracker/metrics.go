package tracker

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce  sync.Once
	eventsSent   otelmetric.Int64Counter
	eventsFailed otelmetric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter("portfolio-pulse/tracker")
	var err error
	eventsSent, err = meter.Int64Counter(
		"tracker.events.sent",
		otelmetric.WithDescription("Interaction events accepted by the analytics backend"),
	)
	if err != nil {
		slog.Warn("tracker metrics init", slog.String("instrument", "tracker.events.sent"), slog.String("error", err.Error()))
	}
	eventsFailed, err = meter.Int64Counter(
		"tracker.events.failed",
		otelmetric.WithDescription("Interaction events that could not be delivered"),
	)
	if err != nil {
		slog.Warn("tracker metrics init", slog.String("instrument", "tracker.events.failed"), slog.String("error", err.Error()))
	}
}

func recordSent(ctx context.Context, endpoint string) {
	metricsOnce.Do(initMetrics)
	if eventsSent != nil {
		eventsSent.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("endpoint", endpoint)))
	}
}

func recordFailed(ctx context.Context, endpoint string) {
	metricsOnce.Do(initMetrics)
	if eventsFailed != nil {
		eventsFailed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("endpoint", endpoint)))
	}
}
