package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/stacklok/pgsearch-sync/sync"

// Cycle outcomes used as the "outcome" attribute on the cycle duration histogram.
const (
	OutcomeSynced    = "synced"
	OutcomeNoUpdates = "no_updates"
	OutcomeFailed    = "failed"
)

// SyncMetrics holds the OpenTelemetry instruments for sync cycles
type SyncMetrics struct {
	cycleDuration   metric.Float64Histogram
	documentsLoaded metric.Int64Counter
	pendingIDs      metric.Int64Gauge
	retries         metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"pgsearch_sync_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	documentsLoaded, err := meter.Int64Counter(
		"pgsearch_sync_documents_loaded_total",
		metric.WithDescription("Number of documents upserted into the search index"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	pendingIDs, err := meter.Int64Gauge(
		"pgsearch_sync_pending_ids",
		metric.WithDescription("Number of aggregate IDs waiting in the pending set"),
		metric.WithUnit("{id}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"pgsearch_sync_retries_total",
		metric.WithDescription("Number of retried operations against external services"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration:   cycleDuration,
		documentsLoaded: documentsLoaded,
		pendingIDs:      pendingIDs,
		retries:         retries,
	}, nil
}

// RecordCycleDuration records how long a sync cycle took and how it ended
func (m *SyncMetrics) RecordCycleDuration(ctx context.Context, duration time.Duration, outcome string) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	m.cycleDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDocumentsLoaded adds count to the number of documents written to index
func (m *SyncMetrics) RecordDocumentsLoaded(ctx context.Context, index string, count int) {
	if m == nil || m.documentsLoaded == nil || count == 0 {
		return
	}

	m.documentsLoaded.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("index", index)))
}

// RecordPending records the current size of the pending set
func (m *SyncMetrics) RecordPending(ctx context.Context, count int64) {
	if m == nil || m.pendingIDs == nil {
		return
	}

	m.pendingIDs.Record(ctx, count)
}

// RecordRetry counts one retry of the named operation
func (m *SyncMetrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil || m.retries == nil {
		return
	}

	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
