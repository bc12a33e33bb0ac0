package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// FilmWork is a film_work row for seeding
type FilmWork struct {
	ID          uuid.UUID
	Title       string
	Description *string
	Rating      *float64
	Modified    time.Time
}

// InsertFilmWork inserts a film_work row
func (db *TestDB) InsertFilmWork(t testing.TB, fw FilmWork) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO film_work (id, title, description, rating, modified) VALUES ($1, $2, $3, $4, $5)`,
		fw.ID, fw.Title, fw.Description, fw.Rating, fw.Modified)
	require.NoError(t, err)
}

// InsertPerson inserts a person row
func (db *TestDB) InsertPerson(t testing.TB, id uuid.UUID, fullName string, modified time.Time) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO person (id, full_name, modified) VALUES ($1, $2, $3)`,
		id, fullName, modified)
	require.NoError(t, err)
}

// InsertGenre inserts a genre row
func (db *TestDB) InsertGenre(t testing.TB, id uuid.UUID, name, description string, modified time.Time) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO genre (id, name, description, modified) VALUES ($1, $2, $3, $4)`,
		id, name, description, modified)
	require.NoError(t, err)
}

// LinkPerson attaches a person to a film work in role
func (db *TestDB) LinkPerson(t testing.TB, filmWorkID, personID uuid.UUID, role string) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO person_film_work (id, film_work_id, person_id, role) VALUES ($1, $2, $3, $4)`,
		uuid.New(), filmWorkID, personID, role)
	require.NoError(t, err)
}

// LinkGenre attaches a genre to a film work
func (db *TestDB) LinkGenre(t testing.TB, filmWorkID, genreID uuid.UUID) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(),
		`INSERT INTO genre_film_work (id, film_work_id, genre_id) VALUES ($1, $2, $3)`,
		uuid.New(), filmWorkID, genreID)
	require.NoError(t, err)
}

// Touch sets the modified column of a row in table
func (db *TestDB) Touch(t testing.TB, table string, id uuid.UUID, modified time.Time) {
	t.Helper()
	var query string
	switch table {
	case "film_work", "person", "genre":
		query = "UPDATE " + table + " SET modified = $2 WHERE id = $1"
	default:
		t.Fatalf("cannot touch table %q", table)
	}
	_, err := db.Pool.Exec(context.Background(), query, id, modified)
	require.NoError(t, err)
}
