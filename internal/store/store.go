// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"content-scheduler/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an allocation insert collides on the
	// (clientId, contentRef, cycleId) unique key.
	ErrDuplicate = errors.New("store: duplicate allocation")
)

// SubscriptionStore persists the per-client quota ledger records.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, clientID string) (*models.Subscription, error)
	// PutSubscription upserts the record.
	PutSubscription(ctx context.Context, sub *models.Subscription) error
	// ListRolloverDue returns client IDs of active subscriptions whose
	// cycle ended before today.
	ListRolloverDue(ctx context.Context, today time.Time) ([]string, error)
	// ListGraceExpired returns client IDs of active subscriptions with
	// paymentStatus=failed whose grace period ended before today.
	ListGraceExpired(ctx context.Context, today time.Time) ([]string, error)
}

// AllocationStore persists allocations. Inserts are all-or-nothing per call.
type AllocationStore interface {
	// InsertAllocations inserts every allocation or none; a uniqueness
	// collision yields ErrDuplicate with no partial insert.
	InsertAllocations(ctx context.Context, allocs []*models.Allocation) error
	GetAllocation(ctx context.Context, id string) (*models.Allocation, error)
	AllocationExists(ctx context.Context, clientID, contentRef, cycleID string) (bool, error)
	// ListCalendar returns a client's allocations in [from, to], ordered by
	// scheduled date then time.
	ListCalendar(ctx context.Context, clientID string, from, to time.Time) ([]*models.Allocation, error)
	// ListPublishDue returns scheduled allocations due at or before the
	// given calendar day and wall time ("HH:MM"). Past-dated scheduled
	// allocations count as due so a stalled dispatcher catches up.
	ListPublishDue(ctx context.Context, date time.Time, wallTime string) ([]*models.Allocation, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	MarkPublishFailed(ctx context.Context, id, reason string) error
	// SetStatus transitions a single allocation; used by the explicit
	// re-enqueue operation.
	SetStatus(ctx context.Context, id string, status models.AllocationStatus) error
	// SuspendScheduledAfter moves a client's scheduled allocations with
	// scheduledDate strictly after the cutoff to suspended.
	SuspendScheduledAfter(ctx context.Context, clientID string, cutoff time.Time) (int, error)
	// ReactivateSuspendedFrom moves a client's suspended allocations with
	// scheduledDate at or after the cutoff back to scheduled. Past-dated
	// suspended allocations remain suspended permanently.
	ReactivateSuspendedFrom(ctx context.Context, clientID string, cutoff time.Time) (int, error)
}

// Store is the combined persistence surface used at wiring time.
type Store interface {
	SubscriptionStore
	AllocationStore
}
