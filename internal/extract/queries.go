package extract

// Tables are referenced unqualified; the pool puts the content schema on the search_path.
const (
	changedFilmWorksQuery = `
		SELECT id, modified
		FROM film_work
		WHERE modified > $1
		ORDER BY modified, id`

	changedPersonsQuery = `
		SELECT id, modified, full_name
		FROM person
		WHERE modified > $1
		ORDER BY modified, id`

	changedGenresQuery = `
		SELECT id, modified, name, description
		FROM genre
		WHERE modified > $1
		ORDER BY modified, id`

	affectedByPersonQuery = `
		SELECT fw.id
		FROM film_work fw
		JOIN person_film_work pfw ON pfw.film_work_id = fw.id
		WHERE pfw.person_id = ANY($1::uuid[])
		GROUP BY fw.id, fw.modified
		ORDER BY fw.modified, fw.id`

	affectedByGenreQuery = `
		SELECT fw.id
		FROM film_work fw
		JOIN genre_film_work gfw ON gfw.film_work_id = fw.id
		WHERE gfw.genre_id = ANY($1::uuid[])
		GROUP BY fw.id, fw.modified
		ORDER BY fw.modified, fw.id`

	aggregateRowsQuery = `
		SELECT
			fw.id,
			fw.title,
			fw.description,
			fw.rating,
			pfw.role,
			p.id AS person_id,
			p.full_name,
			g.name AS genre_name
		FROM film_work fw
		LEFT JOIN person_film_work pfw ON pfw.film_work_id = fw.id
		LEFT JOIN person p ON p.id = pfw.person_id
		LEFT JOIN genre_film_work gfw ON gfw.film_work_id = fw.id
		LEFT JOIN genre g ON g.id = gfw.genre_id
		WHERE fw.id = ANY($1::uuid[])`
)
