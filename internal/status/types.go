// Package status tracks the outcome of sync cycles for the status endpoint.
package status

import "time"

// SyncPhase represents the current phase of the sync loop
type SyncPhase string

const (
	// SyncPhaseIdle means no cycle has run yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means a cycle is in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last cycle finished, with or without updates
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last cycle failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// CycleSummary holds the counters of the last cycle that found updates
type CycleSummary struct {
	ChangedRows         int    `json:"changedRows"`
	ReferencedDocuments int    `json:"referencedDocuments"`
	AffectedIDs         int    `json:"affectedIds"`
	Pages               int    `json:"pages"`
	MoviesLoaded        int    `json:"moviesLoaded"`
	Duration            string `json:"duration"`
}

// SyncStatus is a point-in-time view of the sync loop
type SyncStatus struct {
	Phase SyncPhase `json:"phase"`

	// Message describes the last outcome
	Message string `json:"message,omitempty"`

	// LastAttempt is the start time of the last cycle
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of failed cycles since the last success
	AttemptCount int `json:"attemptCount"`

	// LastSyncTime is the end time of the last successful cycle
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// Watermark is the persisted progress marker after the last successful cycle
	Watermark *time.Time `json:"watermark,omitempty"`

	// PendingIDs is the size of the pending set when last observed
	PendingIDs int64 `json:"pendingIds"`

	LastResult *CycleSummary `json:"lastResult,omitempty"`
}
