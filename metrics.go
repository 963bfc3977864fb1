package thicket

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instruments live on the global providers; no exporter is configured here.
var (
	tracer = otel.Tracer("thicket")
	meter  = otel.Meter("thicket")
)

var (
	refreshDuration metric.Float64Histogram
	filesExtracted  metric.Int64Counter
	parseFailures   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		refreshDuration, err = meter.Float64Histogram(
			"thicket_refresh_duration_seconds",
			metric.WithDescription("Duration of inventory and call-graph refreshes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesExtracted, err = meter.Int64Counter(
			"thicket_files_extracted_total",
			metric.WithDescription("Files parsed and extracted into the call graph"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseFailures, err = meter.Int64Counter(
			"thicket_parse_failures_total",
			metric.WithDescription("Files that failed extraction"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRefreshSpan opens a span for one refresh operation.
func startRefreshSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+op,
		trace.WithAttributes(attribute.String("thicket.operation", op)),
	)
}

// endSpan marks span failed when err is set and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func recordRefresh(ctx context.Context, op string, d time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	refreshDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Bool("success", success),
	))
}

func recordExtraction(ctx context.Context, extracted, failed int) {
	if err := initMetrics(); err != nil {
		return
	}
	if extracted > 0 {
		filesExtracted.Add(ctx, int64(extracted))
	}
	if failed > 0 {
		parseFailures.Add(ctx, int64(failed))
	}
}
