// Package transform folds flattened film work join rows into movie documents.
package transform

import (
	"errors"
	"fmt"
	"slices"

	"github.com/stacklok/pgsearch-sync/internal/documents"
	"github.com/stacklok/pgsearch-sync/internal/extract"
)

// ErrUnknownRole is returned for a person row whose role is not in the role table.
var ErrUnknownRole = errors.New("unknown person role")

// Role is the part a person plays in a film work
type Role string

// Known roles
const (
	RoleActor    Role = "actor"
	RoleDirector Role = "director"
	RoleWriter   Role = "writer"
)

type roleFields struct {
	persons func(*documents.Movie) *[]documents.Person
	names   func(*documents.Movie) *[]string
}

var roles = map[Role]roleFields{
	RoleActor: {
		persons: func(m *documents.Movie) *[]documents.Person { return &m.Actors },
		names:   func(m *documents.Movie) *[]string { return &m.ActorsNames },
	},
	RoleDirector: {
		persons: func(m *documents.Movie) *[]documents.Person { return &m.Directors },
		names:   func(m *documents.Movie) *[]string { return &m.DirectorsNames },
	},
	RoleWriter: {
		persons: func(m *documents.Movie) *[]documents.Person { return &m.Writers },
		names:   func(m *documents.Movie) *[]string { return &m.WritersNames },
	},
}

// MergeScalar sets the film work fields of doc from the first row seen.
// Later rows never overwrite them.
func MergeScalar(row extract.FlattenedJoinRow, doc *documents.Movie) {
	if doc.HasID() {
		return
	}
	doc.ID = row.FilmWorkID
	doc.Title = row.Title
	if row.Description != nil {
		doc.Description = *row.Description
	}
	if row.Rating != nil {
		rating := *row.Rating
		doc.IMDBRating = &rating
	}
}

// MergePerson adds the row's person to the list of its role. Rows without a
// person are ignored; a person already listed under the role is not added again.
func MergePerson(row extract.FlattenedJoinRow, doc *documents.Movie) error {
	if row.PersonID == nil {
		return nil
	}

	var role Role
	if row.Role != nil {
		role = Role(*row.Role)
	}
	fields, ok := roles[role]
	if !ok {
		return fmt.Errorf("%w: %q for person %s in film work %s", ErrUnknownRole, role, *row.PersonID, row.FilmWorkID)
	}

	persons := fields.persons(doc)
	if slices.ContainsFunc(*persons, func(p documents.Person) bool { return p.ID == *row.PersonID }) {
		return nil
	}

	var name string
	if row.FullName != nil {
		name = *row.FullName
	}
	*persons = append(*persons, documents.Person{ID: *row.PersonID, Name: name})
	names := fields.names(doc)
	*names = append(*names, name)
	return nil
}

// MergeGenre adds the row's genre name to doc unless it is already present.
func MergeGenre(row extract.FlattenedJoinRow, doc *documents.Movie) {
	if row.GenreName == nil || slices.Contains(doc.Genre, *row.GenreName) {
		return
	}
	doc.Genre = append(doc.Genre, *row.GenreName)
}

// Merge folds row into doc. Applying the same row twice leaves doc unchanged.
func Merge(row extract.FlattenedJoinRow, doc *documents.Movie) error {
	MergeScalar(row, doc)
	if err := MergePerson(row, doc); err != nil {
		return err
	}
	MergeGenre(row, doc)
	return nil
}
