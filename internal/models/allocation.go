// internal/models/allocation.go
package models

import "time"

type AllocationStatus string

const (
	AllocationScheduled AllocationStatus = "scheduled"
	AllocationPublished AllocationStatus = "published"
	AllocationSuspended AllocationStatus = "suspended"
	AllocationFailed    AllocationStatus = "failed"
)

// Allocation is one scheduled content publication for a client. Created once
// by the allocator, mutated only by the publish dispatcher (scheduled ->
// published/failed) and the grace-period monitor (scheduled <-> suspended).
type Allocation struct {
	ID         string `json:"id"`
	ClientID   string `json:"clientId"`
	ContentRef string `json:"contentRef"`
	// ScheduledDate is the calendar day; ScheduledTime is "HH:MM" wall time.
	ScheduledDate time.Time `json:"scheduledDate"`
	ScheduledTime string    `json:"scheduledTime"`
	Platform      string    `json:"platform"`
	CycleID       string    `json:"cycleId"`
	// BatchID groups allocations created by one bulk request. Empty for
	// single-item requests.
	BatchID    string           `json:"batchId,omitempty"`
	Status     AllocationStatus `json:"status"`
	IsFallback bool             `json:"isFallback"`
	// FailureReason records the last publish error for failed allocations.
	FailureReason string     `json:"failureReason,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// UniquenessKey is the (clientID, contentRef, cycleID) triple. A client never
// receives the same content twice within one cycle.
func (a *Allocation) UniquenessKey() string {
	return a.ClientID + "|" + a.ContentRef + "|" + a.CycleID
}
