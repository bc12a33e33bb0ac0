// Package documents defines the denormalized documents written to the search index.
package documents

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
)

// Document is anything that can be written to the search index.
// The identifier is used as the index document _id, which makes writes idempotent.
type Document interface {
	DocumentID() string
}

// Person is a participant of a film work as stored in the persons index.
// The same shape is embedded in movie documents.
type Person struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DocumentID implements Document
func (p Person) DocumentID() string {
	return p.ID.String()
}

// Genre is a film work category as stored in the genres index.
type Genre struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// DocumentID implements Document
func (g Genre) DocumentID() string {
	return g.ID.String()
}

// Movie is the denormalized film work aggregate stored in the movies index.
type Movie struct {
	ID          uuid.UUID `json:"id"`
	IMDBRating  *float64  `json:"imdb_rating"`
	Genre       []string  `json:"genre"`
	Title       string    `json:"title"`
	Description string    `json:"description"`

	// DirectorsNames is written both as "directors_names" and under the
	// "director" field of the existing movies index mapping.
	DirectorsNames []string `json:"director"`
	ActorsNames    []string `json:"actors_names"`
	WritersNames   []string `json:"writers_names"`

	Directors []Person `json:"directors"`
	Actors    []Person `json:"actors"`
	Writers   []Person `json:"writers"`
}

// NewMovie returns a blank movie skeleton: no identifier, empty scalars and empty lists.
func NewMovie() *Movie {
	return &Movie{
		Genre:          []string{},
		DirectorsNames: []string{},
		ActorsNames:    []string{},
		WritersNames:   []string{},
		Directors:      []Person{},
		Actors:         []Person{},
		Writers:        []Person{},
	}
}

// DocumentID implements Document
func (m *Movie) DocumentID() string {
	return m.ID.String()
}

// HasID reports whether the scalar fields have been populated
func (m *Movie) HasID() bool {
	return m.ID != uuid.Nil
}

// Clone returns a deep copy of the movie
func (m *Movie) Clone() *Movie {
	out := *m
	if m.IMDBRating != nil {
		rating := *m.IMDBRating
		out.IMDBRating = &rating
	}
	out.Genre = slices.Clone(m.Genre)
	out.DirectorsNames = slices.Clone(m.DirectorsNames)
	out.ActorsNames = slices.Clone(m.ActorsNames)
	out.WritersNames = slices.Clone(m.WritersNames)
	out.Directors = slices.Clone(m.Directors)
	out.Actors = slices.Clone(m.Actors)
	out.Writers = slices.Clone(m.Writers)
	return &out
}

// MarshalJSON adds the "directors_names" field next to "director".
func (m Movie) MarshalJSON() ([]byte, error) {
	type movie Movie
	return json.Marshal(struct {
		movie
		DirectorsNamesAlias []string `json:"directors_names"`
	}{
		movie:               movie(m),
		DirectorsNamesAlias: m.DirectorsNames,
	})
}
