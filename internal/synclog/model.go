// Package synclog records the outcome of reconciliation passes so failed
// syncs stay observable after the fact.
package synclog

import (
	"time"

	"github.com/tildaslashalef/tasknest/internal/ulid"
)

// SyncType says what triggered a reconciliation pass
type SyncType string

const (
	// SyncTypeManual is a user-initiated "sync now"
	SyncTypeManual SyncType = "manual"
	// SyncTypeConnectivity is a pass triggered by connectivity restoration
	SyncTypeConnectivity SyncType = "connectivity"
	// SyncTypeInterval is a pass run by the periodic background timer
	SyncTypeInterval SyncType = "interval"
)

// SyncLog is one reconciliation pass of one repository.
type SyncLog struct {
	ID             string    `json:"id"`
	SyncType       SyncType  `json:"sync_type"`
	Repository     string    `json:"repository"`
	TotalItems     int       `json:"total_items"`
	SuccessItems   int       `json:"success_items"`
	FailedItems    int       `json:"failed_items"`
	AbandonedItems int       `json:"abandoned_items"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewSyncLog starts a log entry for a pass that is about to run.
func NewSyncLog(syncType SyncType, repository string) *SyncLog {
	now := time.Now().UTC()
	return &SyncLog{
		ID:         ulid.SyncLogID(),
		SyncType:   syncType,
		Repository: repository,
		StartedAt:  now,
		CompletedAt: now,
	}
}

// Finish records the per-entity outcome counts of a completed pass.
// A pass is successful when nothing failed; abandoned entities (remote
// twin exists but cannot be reconciled) do not count as failures.
func (l *SyncLog) Finish(total, success, failed, abandoned int) {
	l.TotalItems = total
	l.SuccessItems = success
	l.FailedItems = failed
	l.AbandonedItems = abandoned
	l.Success = failed == 0
	l.CompletedAt = time.Now().UTC()
}

// MarkFailed records a pass that could not run at all.
func (l *SyncLog) MarkFailed(message string) {
	l.Success = false
	l.ErrorMessage = message
	l.CompletedAt = time.Now().UTC()
}
