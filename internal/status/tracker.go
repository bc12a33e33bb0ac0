package status

import (
	"sync"
	"time"
)

// Tracker holds the current SyncStatus. It is written by the sync loop and
// read concurrently by the HTTP server.
type Tracker struct {
	mu     sync.RWMutex
	status SyncStatus
}

// NewTracker returns a tracker in the Idle phase
func NewTracker() *Tracker {
	return &Tracker{status: SyncStatus{Phase: SyncPhaseIdle}}
}

// Get returns a copy of the current status
func (t *Tracker) Get() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	if t.status.LastResult != nil {
		summary := *t.status.LastResult
		out.LastResult = &summary
	}
	return out
}

// Update applies fn to the status under the write lock
func (t *Tracker) Update(fn func(*SyncStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.status)
}

// MarkSyncing records the start of a cycle
func (t *Tracker) MarkSyncing(at time.Time) {
	t.Update(func(s *SyncStatus) {
		s.Phase = SyncPhaseSyncing
		s.LastAttempt = &at
		s.Message = "Sync in progress"
	})
}

// MarkComplete records a cycle that loaded updates and advanced the watermark
func (t *Tracker) MarkComplete(at, watermark time.Time, summary CycleSummary) {
	t.Update(func(s *SyncStatus) {
		s.Phase = SyncPhaseComplete
		s.Message = "Sync completed successfully"
		s.AttemptCount = 0
		s.LastSyncTime = &at
		s.Watermark = &watermark
		s.LastResult = &summary
	})
}

// MarkNoUpdates records a cycle that found nothing to do
func (t *Tracker) MarkNoUpdates(at time.Time) {
	t.Update(func(s *SyncStatus) {
		s.Phase = SyncPhaseComplete
		s.Message = "No updates found"
		s.AttemptCount = 0
		s.LastSyncTime = &at
	})
}

// MarkFailed records a failed cycle
func (t *Tracker) MarkFailed(err error) {
	t.Update(func(s *SyncStatus) {
		s.Phase = SyncPhaseFailed
		s.Message = err.Error()
		s.AttemptCount++
	})
}

// SetPending records the observed size of the pending set
func (t *Tracker) SetPending(n int64) {
	t.Update(func(s *SyncStatus) {
		s.PendingIDs = n
	})
}

// SetWatermark records the persisted watermark, typically once at startup
func (t *Tracker) SetWatermark(watermark time.Time) {
	if watermark.IsZero() {
		return
	}
	t.Update(func(s *SyncStatus) {
		s.Watermark = &watermark
	})
}
