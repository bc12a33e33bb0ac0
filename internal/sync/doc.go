// Package sync runs one incremental PostgreSQL to Elasticsearch sync cycle.
//
// A cycle has six steps:
//
//   - Detect: read the watermark and ask the extractor for rows changed after it.
//   - Collect: index changed persons and genres into their own indices, resolve
//     the film works every changed row affects and queue their ids in the
//     pending set.
//   - Drain: page through the pending set.
//   - Rebuild: fetch the join rows of each page and fold them into movie documents.
//   - Load: upsert the movie documents.
//   - Advance: persist the cycle start time as the new watermark.
//
// A cycle that finds no changed rows returns extract.ErrNoUpdatesFound and
// leaves the watermark alone. Any other failure also leaves the watermark and
// the pending set in place, so the next cycle picks the same work up again.
// Delivery is at-least-once; documents are keyed by id so reprocessing is
// harmless.
//
// The coordinator subpackage schedules cycles at a fixed interval.
package sync
