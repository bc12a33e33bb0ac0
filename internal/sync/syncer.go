package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/pgsearch-sync/internal/collect"
	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/otel"
	"github.com/stacklok/pgsearch-sync/internal/telemetry"
	"github.com/stacklok/pgsearch-sync/internal/transform"
)

// Syncer is the default Manager
type Syncer struct {
	extractor  Extractor
	collector  Collector
	loader     Loader
	watermark  Watermark
	pendingKey string
	indices    Indices
	now        func() time.Time
	tracer     trace.Tracer
	metrics    *telemetry.SyncMetrics
}

var _ Manager = (*Syncer)(nil)

// Option configures a Syncer
type Option func(*Syncer)

// WithPendingKey sets the Redis key of the pending set
func WithPendingKey(key string) Option {
	return func(s *Syncer) {
		if key != "" {
			s.pendingKey = key
		}
	}
}

// WithIndices sets the destination index names
func WithIndices(indices Indices) Option {
	return func(s *Syncer) {
		s.indices = indices
	}
}

// WithClock replaces time.Now, used to stamp the watermark
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithTracer enables cycle and stage spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Syncer) {
		s.tracer = tracer
	}
}

// WithMetrics records cycle metrics
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(s *Syncer) {
		s.metrics = metrics
	}
}

// NewSyncer creates a Syncer
func NewSyncer(extractor Extractor, collector Collector, loader Loader, watermark Watermark, opts ...Option) *Syncer {
	s := &Syncer{
		extractor:  extractor,
		collector:  collector,
		loader:     loader,
		watermark:  watermark,
		pendingKey: collect.DefaultKey,
		indices:    DefaultIndices,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle runs Detect, Collect, Drain, Rebuild, Load and Advance once.
// It returns extract.ErrNoUpdatesFound, unwrapped, when nothing changed.
// Other failures are returned as *Error.
func (s *Syncer) RunCycle(ctx context.Context) (_ *Result, err error) {
	started := s.now()
	outcome := telemetry.OutcomeFailed
	defer func() {
		s.metrics.RecordCycleDuration(ctx, s.now().Sub(started), outcome)
	}()

	ctx, span := otel.StartSpan(ctx, s.tracer, "sync.cycle")
	defer func() {
		if !errors.Is(err, extract.ErrNoUpdatesFound) {
			otel.RecordError(span, err)
		}
		span.End()
	}()

	since, err := s.watermark.LastUpdated()
	if err != nil {
		return nil, &Error{Stage: StageDetect, Err: err}
	}
	span.SetAttributes(otel.AttrWatermark.String(since.Format(time.RFC3339Nano)))

	var (
		batches   []extract.Batch
		noUpdates bool
	)
	err = otel.WithSpan(ctx, s.tracer, "sync.detect", func(ctx context.Context) error {
		var detectErr error
		batches, detectErr = s.extractor.ChangedSince(ctx, since)
		if errors.Is(detectErr, extract.ErrNoUpdatesFound) {
			noUpdates = true
			return nil
		}
		return detectErr
	})
	if noUpdates {
		outcome = telemetry.OutcomeNoUpdates
		slog.Info("No updates found", "since", since)
		return nil, extract.ErrNoUpdatesFound
	}
	if err != nil {
		return nil, &Error{Stage: StageDetect, Err: err}
	}

	result := &Result{
		Since:       since,
		ChangedRows: make(map[extract.Relation]int, len(extract.Relations)),
	}

	err = otel.WithSpan(ctx, s.tracer, "sync.collect", func(ctx context.Context) error {
		return s.collect(ctx, batches, result)
	})
	if err != nil {
		return nil, &Error{Stage: StageCollect, Err: err}
	}
	s.recordPending(ctx)

	err = otel.WithSpan(ctx, s.tracer, "sync.drain", func(ctx context.Context) error {
		return s.collector.Drain(ctx, s.pendingKey, func(ctx context.Context, page collect.Page) error {
			return s.rebuild(ctx, page, result)
		})
	})
	if err != nil {
		return nil, &Error{Stage: StageDrain, Err: err}
	}

	if err := s.watermark.SetLastUpdated(ctx, started); err != nil {
		return nil, &Error{Stage: StageAdvance, Err: err}
	}

	outcome = telemetry.OutcomeSynced
	result.Watermark = started
	result.Duration = s.now().Sub(started)
	s.metrics.RecordPending(ctx, 0)

	slog.Info("Sync cycle completed",
		"since", since,
		"watermark", started,
		"changed_rows", result.TotalChangedRows(),
		"affected_ids", result.AffectedIDs,
		"movies_loaded", result.MoviesLoaded,
		"duration", result.Duration,
	)
	return result, nil
}

// collect loads referenced documents and queues the affected film works of every batch
func (s *Syncer) collect(ctx context.Context, batches []extract.Batch, result *Result) error {
	for _, batch := range batches {
		result.ChangedRows[batch.Relation] += len(batch.Rows)

		if docs := batch.Documents(); len(docs) > 0 && s.referencedIndex(batch.Relation) != "" {
			if err := s.upsert(ctx, s.referencedIndex(batch.Relation), docs); err != nil {
				return err
			}
			result.ReferencedDocuments += len(docs)
		}

		ids, err := s.extractor.AffectedAggregateIDs(ctx, batch.Relation, batch.IDs())
		if err != nil {
			return err
		}
		if err := s.collector.Add(ctx, s.pendingKey, ids...); err != nil {
			return err
		}
		result.AffectedIDs += len(ids)

		slog.Debug("Collected batch",
			"relation", batch.Relation,
			"rows", len(batch.Rows),
			"affected_ids", len(ids))
	}
	return nil
}

// rebuild turns one page of pending ids into movie documents and loads them
func (s *Syncer) rebuild(ctx context.Context, page collect.Page, result *Result) error {
	rows, err := s.extractor.FetchAggregateRows(ctx, page)
	if err != nil {
		return err
	}

	builder := transform.NewBuilder(page)
	if err := builder.ApplyAll(rows); err != nil {
		return err
	}

	movies := builder.Documents()
	if missing := builder.Missing(); len(missing) > 0 {
		slog.Warn("Pending film works no longer exist", "count", len(missing))
		result.MissingMovies += len(missing)
	}

	docs := make([]documents.Document, len(movies))
	for i, movie := range movies {
		docs[i] = movie
	}
	if err := s.upsert(ctx, s.indices.Movies, docs); err != nil {
		return err
	}

	result.Pages++
	result.MoviesLoaded += len(docs)
	return nil
}

func (s *Syncer) upsert(ctx context.Context, index string, docs []documents.Document) error {
	err := otel.WithSpan(ctx, s.tracer, "sync.load", func(ctx context.Context) error {
		return s.loader.Upsert(ctx, index, docs)
	}, otel.AttrIndex.String(index), otel.AttrBatchSize.Int(len(docs)))
	if err != nil {
		return err
	}
	s.metrics.RecordDocumentsLoaded(ctx, index, len(docs))
	return nil
}

func (s *Syncer) referencedIndex(relation extract.Relation) string {
	switch relation {
	case extract.Person:
		return s.indices.Persons
	case extract.Genre:
		return s.indices.Genres
	default:
		return ""
	}
}

func (s *Syncer) recordPending(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.collector.Len(ctx, s.pendingKey)
	if err != nil {
		slog.Warn("Failed to read pending set size", "error", err)
		return
	}
	s.metrics.RecordPending(ctx, n)
}
