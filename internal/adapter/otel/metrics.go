package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tuneforge"

// Metrics holds the TuneForge metric instruments. A nil *Metrics records
// nothing, so callers never need to check whether telemetry is enabled.
type Metrics struct {
	Exports        metric.Int64Counter
	ExportRecords  metric.Int64Histogram
	ToolExecutions metric.Int64Counter
	ToolDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Exports, err = meter.Int64Counter("tuneforge.exports",
		metric.WithDescription("Number of dataset exports"))
	if err != nil {
		return nil, err
	}

	m.ExportRecords, err = meter.Int64Histogram("tuneforge.export.records",
		metric.WithDescription("Training records per export"))
	if err != nil {
		return nil, err
	}

	m.ToolExecutions, err = meter.Int64Counter("tuneforge.tool.executions",
		metric.WithDescription("Number of live tool executions"))
	if err != nil {
		return nil, err
	}

	m.ToolDuration, err = meter.Float64Histogram("tuneforge.tool.duration_seconds",
		metric.WithDescription("Live tool execution duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordExport counts one export of records conversations in format.
func (m *Metrics) RecordExport(ctx context.Context, format string, records int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("format", format))
	m.Exports.Add(ctx, 1, attrs)
	m.ExportRecords.Record(ctx, int64(records), attrs)
}

// RecordToolExecution counts one tool execution with outcome "ok" or "error".
func (m *Metrics) RecordToolExecution(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.ToolExecutions.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, d.Seconds(), attrs)
}
