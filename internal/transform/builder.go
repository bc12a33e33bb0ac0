package transform

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/extract"
)

// ErrUnknownAggregate is returned when a row belongs to a film work outside the page.
var ErrUnknownAggregate = errors.New("row does not belong to the page")

// Builder owns one movie document per film work of a page
type Builder struct {
	order []uuid.UUID
	docs  map[uuid.UUID]*documents.Movie
}

// NewBuilder returns a builder with a blank document for every id.
// Duplicate ids share one document.
func NewBuilder(ids []uuid.UUID) *Builder {
	b := &Builder{
		order: make([]uuid.UUID, 0, len(ids)),
		docs:  make(map[uuid.UUID]*documents.Movie, len(ids)),
	}
	for _, id := range ids {
		if _, ok := b.docs[id]; ok {
			continue
		}
		b.order = append(b.order, id)
		b.docs[id] = documents.NewMovie()
	}
	return b
}

// Apply folds row into the document of its film work
func (b *Builder) Apply(row extract.FlattenedJoinRow) error {
	doc, ok := b.docs[row.FilmWorkID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAggregate, row.FilmWorkID)
	}
	return Merge(row, doc)
}

// ApplyAll folds every row, stopping at the first error
func (b *Builder) ApplyAll(rows []extract.FlattenedJoinRow) error {
	for _, row := range rows {
		if err := b.Apply(row); err != nil {
			return err
		}
	}
	return nil
}

// Documents returns copies of the built documents in page order. Film works
// that received no row, for example because they were deleted, are left out.
func (b *Builder) Documents() []*documents.Movie {
	out := make([]*documents.Movie, 0, len(b.order))
	for _, id := range b.order {
		if doc := b.docs[id]; doc.HasID() {
			out = append(out, doc.Clone())
		}
	}
	return out
}

// Missing returns the ids of the page that received no row
func (b *Builder) Missing() []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range b.order {
		if !b.docs[id].HasID() {
			missing = append(missing, id)
		}
	}
	return missing
}

// Len returns the number of distinct film works in the page
func (b *Builder) Len() int {
	return len(b.order)
}
