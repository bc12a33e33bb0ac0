package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/retry"
)

// DefaultBatchSize is the number of changed rows per batch
const DefaultBatchSize = 100

// Querier is the subset of pgx used by the extractor. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Extractor queries the content schema for changes
type Extractor struct {
	db        Querier
	policy    *retry.Policy
	batchSize int
}

// Option configures an Extractor
type Option func(*Extractor)

// WithRetryPolicy wraps every query in policy
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(e *Extractor) {
		e.policy = policy
	}
}

// WithBatchSize sets the number of changed rows per batch
func WithBatchSize(size int) Option {
	return func(e *Extractor) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// New creates an Extractor reading from db
func New(db Querier, opts ...Option) *Extractor {
	e := &Extractor{
		db:        db,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchSize returns the configured page size
func (e *Extractor) BatchSize() int {
	return e.batchSize
}

// ChangedSince returns the rows of every tracked relation modified strictly
// after since, ordered by modification time and split into batches. It returns
// ErrNoUpdatesFound when no relation has changed.
func (e *Extractor) ChangedSince(ctx context.Context, since time.Time) ([]Batch, error) {
	changed := make(map[Relation][]ChangeRow, len(Relations))
	total := 0
	for _, relation := range Relations {
		rows, err := retry.Value(ctx, e.policy, "postgres.changed."+string(relation), func() ([]ChangeRow, error) {
			return e.changedRows(ctx, relation, since)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read changes from %s: %w", relation, err)
		}
		changed[relation] = rows
		total += len(rows)
	}

	if total == 0 {
		return nil, ErrNoUpdatesFound
	}

	var batches []Batch
	for _, relation := range Relations {
		batches = append(batches, paginate(relation, changed[relation], e.batchSize)...)
	}

	slog.Debug("Detected changes",
		"since", since,
		"rows", total,
		"batches", len(batches),
	)
	return batches, nil
}

// AffectedAggregateIDs maps changed rows of relation to the film works they
// belong to. film_work rows map to themselves; person and genre rows are
// resolved through their link tables. The result is ordered by film work
// modification time and contains no duplicates.
func (e *Extractor) AffectedAggregateIDs(ctx context.Context, relation Relation, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var query string
	switch relation {
	case FilmWork:
		return dedupe(ids), nil
	case Person:
		query = affectedByPersonQuery
	case Genre:
		query = affectedByGenreQuery
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, relation)
	}

	affected, err := retry.Value(ctx, e.policy, "postgres.affected."+string(relation), func() ([]uuid.UUID, error) {
		rows, err := e.db.Query(ctx, query, uuidStrings(ids))
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve film works affected by %s: %w", relation, err)
	}
	return affected, nil
}

// FetchAggregateRows returns the flattened join rows for the given film works.
func (e *Extractor) FetchAggregateRows(ctx context.Context, ids []uuid.UUID) ([]FlattenedJoinRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := retry.Value(ctx, e.policy, "postgres.aggregate_rows", func() ([]FlattenedJoinRow, error) {
		rows, err := e.db.Query(ctx, aggregateRowsQuery, uuidStrings(ids))
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, scanFlattenedJoinRow)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch film work rows: %w", err)
	}
	return rows, nil
}

// Ping checks the database is reachable
func (e *Extractor) Ping(ctx context.Context) error {
	_, err := e.db.Exec(ctx, "SELECT 1")
	return err
}

func (e *Extractor) changedRows(ctx context.Context, relation Relation, since time.Time) ([]ChangeRow, error) {
	switch relation {
	case FilmWork:
		rows, err := e.db.Query(ctx, changedFilmWorksQuery, since)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChangeRow, error) {
			c := ChangeRow{Relation: FilmWork}
			err := row.Scan(&c.ID, &c.Modified)
			return c, err
		})
	case Person:
		rows, err := e.db.Query(ctx, changedPersonsQuery, since)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChangeRow, error) {
			var p documents.Person
			c := ChangeRow{Relation: Person}
			err := row.Scan(&c.ID, &c.Modified, &p.Name)
			p.ID = c.ID
			c.Document = p
			return c, err
		})
	case Genre:
		rows, err := e.db.Query(ctx, changedGenresQuery, since)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChangeRow, error) {
			var (
				g           documents.Genre
				description *string
			)
			c := ChangeRow{Relation: Genre}
			err := row.Scan(&c.ID, &c.Modified, &g.Name, &description)
			g.ID = c.ID
			if description != nil {
				g.Description = *description
			}
			c.Document = g
			return c, err
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, relation)
	}
}

func scanFlattenedJoinRow(row pgx.CollectableRow) (FlattenedJoinRow, error) {
	var r FlattenedJoinRow
	err := row.Scan(
		&r.FilmWorkID,
		&r.Title,
		&r.Description,
		&r.Rating,
		&r.Role,
		&r.PersonID,
		&r.FullName,
		&r.GenreName,
	)
	return r, err
}

func paginate(relation Relation, rows []ChangeRow, size int) []Batch {
	var batches []Batch
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, Batch{Relation: relation, Rows: rows[start:end]})
	}
	return batches
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// uuidStrings encodes ids as text so they bind to a uuid[] parameter
// regardless of the driver's UUID type registration.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
