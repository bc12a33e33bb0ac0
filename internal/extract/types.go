package extract

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/pgsearch-sync/internal/documents"
)

// ErrNoUpdatesFound is returned by ChangedSince when no tracked relation has
// rows modified after the watermark.
var ErrNoUpdatesFound = errors.New("no updates found")

// ErrUnknownRelation is returned for relations the extractor does not track.
var ErrUnknownRelation = errors.New("unknown relation")

// Relation names a tracked table of the content schema.
type Relation string

// Tracked relations, in the order they are scanned.
const (
	FilmWork Relation = "film_work"
	Person   Relation = "person"
	Genre    Relation = "genre"
)

// Relations lists every tracked relation in scan order.
var Relations = []Relation{FilmWork, Person, Genre}

// ChangeRow is one changed row of a tracked relation. Document holds the
// search document for person and genre rows and is nil for film_work.
type ChangeRow struct {
	Relation Relation
	ID       uuid.UUID
	Modified time.Time
	Document documents.Document
}

// Batch is a page of changed rows from a single relation.
type Batch struct {
	Relation Relation
	Rows     []ChangeRow
}

// IDs returns the row identifiers of the batch in order.
func (b Batch) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Rows))
	for _, row := range b.Rows {
		ids = append(ids, row.ID)
	}
	return ids
}

// Documents returns the non-nil documents carried by the batch.
func (b Batch) Documents() []documents.Document {
	var docs []documents.Document
	for _, row := range b.Rows {
		if row.Document != nil {
			docs = append(docs, row.Document)
		}
	}
	return docs
}

// FlattenedJoinRow is one row of the film work join. A film work with
// several people and genres yields their cross product; a film work with
// neither yields a single row with every nullable column nil.
type FlattenedJoinRow struct {
	FilmWorkID  uuid.UUID
	Title       string
	Description *string
	Rating      *float64
	Role        *string
	PersonID    *uuid.UUID
	FullName    *string
	GenreName   *string
}
