// Package extract reads change history from the PostgreSQL content schema.
//
// An Extractor finds rows of film_work, person and genre modified after a
// watermark, resolves which film works those rows affect, and fetches the
// flattened join rows needed to rebuild the affected movie documents. Every
// query runs under a retry policy; only connectivity failures are retried.
package extract
