package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/pgsearch-sync/internal/collect"
	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/extract"
)

//go:generate mockgen -destination=mocks/mock_sync.go -package=mocks github.com/stacklok/pgsearch-sync/internal/sync Manager,Extractor,Collector,Loader,Watermark

// Manager runs sync cycles
type Manager interface {
	RunCycle(ctx context.Context) (*Result, error)
}

// Extractor reads changes from the source database
type Extractor interface {
	ChangedSince(ctx context.Context, since time.Time) ([]extract.Batch, error)
	AffectedAggregateIDs(ctx context.Context, relation extract.Relation, ids []uuid.UUID) ([]uuid.UUID, error)
	FetchAggregateRows(ctx context.Context, ids []uuid.UUID) ([]extract.FlattenedJoinRow, error)
}

// Collector queues and drains pending film work ids
type Collector interface {
	Add(ctx context.Context, key string, ids ...uuid.UUID) error
	Drain(ctx context.Context, key string, fn func(ctx context.Context, page collect.Page) error) error
	Len(ctx context.Context, key string) (int64, error)
}

// Loader writes documents to the search index
type Loader interface {
	Upsert(ctx context.Context, index string, docs []documents.Document) error
}

// Watermark reads and advances the persisted progress marker
type Watermark interface {
	LastUpdated() (time.Time, error)
	SetLastUpdated(ctx context.Context, ts time.Time) error
}

// Stage names the step of a cycle an error came from
type Stage string

// Cycle stages
const (
	StageDetect  Stage = "detect"
	StageCollect Stage = "collect"
	StageDrain   Stage = "drain"
	StageAdvance Stage = "advance"
)

// Error is a cycle failure tagged with the stage it happened in
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result counts the work done by a cycle that found updates
type Result struct {
	// Since is the watermark the cycle started from
	Since time.Time
	// Watermark is the value persisted at the end of the cycle
	Watermark time.Time

	ChangedRows         map[extract.Relation]int
	ReferencedDocuments int
	AffectedIDs         int
	Pages               int
	MoviesLoaded        int
	// MissingMovies counts pending ids with no film_work row left
	MissingMovies int
	Duration      time.Duration
}

// TotalChangedRows sums ChangedRows over every relation
func (r *Result) TotalChangedRows() int {
	total := 0
	for _, n := range r.ChangedRows {
		total += n
	}
	return total
}

// Indices names the destination index of each document kind
type Indices struct {
	Movies  string
	Persons string
	Genres  string
}

// DefaultIndices are the index names used when none are configured
var DefaultIndices = Indices{Movies: "movies", Persons: "persons", Genres: "genres"}
