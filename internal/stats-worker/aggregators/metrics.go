package aggregators

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"daily-routine-service/internal/routine-manager/events"
)

const resolutionsMetric = "routine.task.resolutions"

// MetricsAggregator counts resolved tasks on an OpenTelemetry meter.
type MetricsAggregator struct {
	resolutions metric.Int64Counter
}

func NewMetricsAggregator(meter metric.Meter) (*MetricsAggregator, error) {
	c, err := meter.Int64Counter(resolutionsMetric,
		metric.WithDescription("Routine tasks completed or skipped, by status and period"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", resolutionsMetric, err)
	}
	return &MetricsAggregator{resolutions: c}, nil
}

func (m *MetricsAggregator) Name() string { return NameMetrics }

func (m *MetricsAggregator) Apply(ctx context.Context, e events.CompletionEvent) error {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(e.Status)),
		attribute.String("period", string(e.Period)),
		attribute.String("task_id", e.TaskID),
	))
	return nil
}
