package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tuneforge"

// StartExportSpan starts a span for a dataset export.
func StartExportSpan(ctx context.Context, datasetID, format string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dataset.export",
		trace.WithAttributes(
			attribute.String("dataset.id", datasetID),
			attribute.String("export.format", format),
		),
	)
}

// StartToolExecSpan starts a span for a live tool execution.
func StartToolExecSpan(ctx context.Context, toolID, host string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.id", toolID),
			attribute.String("server.address", host),
		),
	)
}
