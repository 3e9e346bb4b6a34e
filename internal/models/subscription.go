// internal/models/subscription.go
package models

import (
	"fmt"
	"time"
)

// BillingCycleKind is the recurring period a subscription's quota is valid for.
type BillingCycleKind string

const (
	CycleMonthly   BillingCycleKind = "monthly"
	CycleQuarterly BillingCycleKind = "quarterly"
	CycleAnnual    BillingCycleKind = "annual"
)

// Valid reports whether the cycle kind is one of the recognized values.
func (k BillingCycleKind) Valid() bool {
	switch k {
	case CycleMonthly, CycleQuarterly, CycleAnnual:
		return true
	}
	return false
}

// AddTo advances a cycle start date by one unit of the cycle kind.
// Calendar-aware: variable month lengths and leap years are handled by AddDate.
func (k BillingCycleKind) AddTo(t time.Time) time.Time {
	switch k {
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	case CycleAnnual:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// Subscription is the per-client quota ledger record. It is owned exclusively
// by the ledger; every mutation happens under the per-client lock.
type Subscription struct {
	ClientID        string             `json:"clientId"`
	CycleKind       BillingCycleKind   `json:"billingCycleKind"`
	QuotaPerCycle   int                `json:"quotaPerCycle"`
	UsedThisCycle   int                `json:"usedThisCycle"`
	CycleStart      time.Time          `json:"cycleStart"`
	CycleEnd        time.Time          `json:"cycleEnd"`
	NextBillingDate time.Time          `json:"nextBillingDate"`
	Status          SubscriptionStatus `json:"subscriptionStatus"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus"`
	// GracePeriodEnd is set if and only if PaymentStatus == PaymentFailed.
	GracePeriodEnd *time.Time `json:"gracePeriodEnd,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CycleID derives the deterministic cycle identifier for the subscription's
// current boundaries. Allocations keep the cycle ID they were created under;
// it is never reassigned after a rollover.
func (s *Subscription) CycleID() string {
	return CycleIDFor(s.ClientID, s.CycleStart, s.CycleEnd)
}

// CycleIDFor builds a cycle identifier from a client and cycle boundaries.
func CycleIDFor(clientID string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s", clientID, start.Format(DateLayout), end.Format(DateLayout))
}

// RemainingQuota returns how many quota-charged allocations the client may
// still create this cycle.
func (s *Subscription) RemainingQuota() int {
	remaining := s.QuotaPerCycle - s.UsedThisCycle
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InCycleWindow reports whether a calendar date falls within the current
// [CycleStart, CycleEnd] window (inclusive).
func (s *Subscription) InCycleWindow(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(s.CycleStart)) && !d.After(DateOnly(s.CycleEnd))
}
