// Package integration runs the synchronizer end to end against a PostgreSQL
// container, an in-process Redis and a fake Elasticsearch bulk endpoint.
package integration
