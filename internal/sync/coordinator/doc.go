// Package coordinator schedules sync cycles in the background.
//
// A cycle runs as soon as Start is called. The next one starts Interval after
// the previous one finished, so cycles never overlap and a slow cycle pushes
// the schedule back instead of queueing ticks.
//
// Cycle outcomes are reported to a status.Tracker:
//
//   - success marks the tracker Complete with the cycle counters
//   - extract.ErrNoUpdatesFound marks it Complete without touching the watermark
//   - any other error marks it Failed; the cycle is retried on the next interval
//
// A state.ErrStore failure means the watermark can no longer be trusted. Start
// returns it and the process exits.
package coordinator
