package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/solatis/rulekeeper/internal/types"
)

const meterName = "github.com/solatis/rulekeeper/internal/core/api"

// evalMetrics holds the evaluation instruments.
type evalMetrics struct {
	evaluations metric.Int64Counter
	parseErrors metric.Int64Counter
	duration    metric.Float64Histogram
}

func newEvalMetrics(mp metric.MeterProvider) (*evalMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	evaluations, err := meter.Int64Counter("rulekeeper_evaluations_total",
		metric.WithDescription("Rule evaluations by outcome"))
	if err != nil {
		return nil, err
	}
	parseErrors, err := meter.Int64Counter("rulekeeper_entity_parse_errors_total",
		metric.WithDescription("Entity payloads that were not valid JSON"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("rulekeeper_evaluation_duration_seconds",
		metric.WithDescription("Time spent evaluating one rule against one entity"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &evalMetrics{evaluations: evaluations, parseErrors: parseErrors, duration: duration}, nil
}

// record counts one evaluation. method is the RPC that ran it.
func (m *evalMetrics) record(ctx context.Context, method string, result types.EvaluationResult, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("matches", result.Matches),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("method", method)))
}

func (m *evalMetrics) parseError(ctx context.Context, method string) {
	m.parseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}
