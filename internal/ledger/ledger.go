// internal/ledger/ledger.go
package ledger

import (
	"context"
	"sync"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

// Config holds the billing behavior knobs.
type Config struct {
	// GracePeriodDays is the window granted after a payment failure.
	GracePeriodDays int
	// QuotaPerCycle maps billing cycle kind to the quota granted when a
	// first payment creates a subscription.
	QuotaPerCycle map[models.BillingCycleKind]int
}

// Ledger owns the per-client Subscription records. Every mutation (payment
// event, allocation debit, cycle rollover, suspension, reactivation) runs
// inside WithClient, the per-client mutual-exclusion boundary. No cross-client
// lock ordering exists, so there is no deadlock risk across clients.
type Ledger struct {
	subs   store.SubscriptionStore
	allocs store.AllocationStore
	config Config
	clock  clock.Clock
	logger logger.Logger

	locks sync.Map // clientID -> *sync.Mutex
}

func New(s store.Store, cfg Config, clk clock.Clock, log logger.Logger) *Ledger {
	if cfg.GracePeriodDays <= 0 {
		cfg.GracePeriodDays = 3
	}
	return &Ledger{
		subs:   s,
		allocs: s,
		config: cfg,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "ledger"}),
	}
}

func (l *Ledger) lockFor(clientID string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(clientID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithClient runs fn while holding the client's lock. fn receives the current
// subscription record (nil when none exists); when fn returns nil and the
// record is non-nil it is persisted. Collaborator network calls must happen
// outside this boundary.
func (l *Ledger) WithClient(ctx context.Context, clientID string, fn func(sub *models.Subscription) error) error {
	mu := l.lockFor(clientID)
	mu.Lock()
	defer mu.Unlock()

	sub, err := l.subs.GetSubscription(ctx, clientID)
	if err != nil && err != store.ErrNotFound {
		return errors.NewStoreFailureError("get subscription", err)
	}

	if err := fn(sub); err != nil {
		return err
	}
	if sub == nil {
		return nil
	}

	sub.UpdatedAt = l.clock.Now()
	if err := l.subs.PutSubscription(ctx, sub); err != nil {
		return errors.NewStoreFailureError("put subscription", err)
	}
	return nil
}

// withExistingClient is WithClient for mutators that require the record.
func (l *Ledger) withExistingClient(ctx context.Context, clientID string, fn func(sub *models.Subscription) error) error {
	return l.WithClient(ctx, clientID, func(sub *models.Subscription) error {
		if sub == nil {
			return errors.NewSubscriptionNotFoundError(clientID)
		}
		return fn(sub)
	})
}

// Get returns the client's subscription record.
func (l *Ledger) Get(ctx context.Context, clientID string) (*models.Subscription, error) {
	sub, err := l.subs.GetSubscription(ctx, clientID)
	if err == store.ErrNotFound {
		return nil, errors.NewSubscriptionNotFoundError(clientID)
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("get subscription", err)
	}
	return sub, nil
}

// ApplyPaymentSuccess handles a PaymentSucceeded event. It marks the
// subscription paid, clears the grace period, and reactivates a suspended
// subscription (reverting its future suspended allocations to scheduled).
// Billing cycle boundaries are never touched: they persist regardless of
// payment timing, which prevents drift. If no subscription exists, a first
// payment creates one with boundaries derived from the cycle hint.
func (l *Ledger) ApplyPaymentSuccess(ctx context.Context, ev models.PaymentEvent) error {
	created := false
	err := l.WithClient(ctx, ev.ClientID, func(sub *models.Subscription) error {
		if sub == nil {
			created = true
			return nil
		}

		if sub.Status == models.SubscriptionCancelled {
			// Cancellation is permanent; record the payment state only.
			sub.PaymentStatus = models.PaymentPaid
			sub.GracePeriodEnd = nil
			return nil
		}

		wasSuspended := sub.Status == models.SubscriptionSuspended
		sub.PaymentStatus = models.PaymentPaid
		sub.GracePeriodEnd = nil
		sub.Status = models.SubscriptionActive

		if wasSuspended {
			today := models.DateOnly(l.clock.Now())
			n, err := l.allocs.ReactivateSuspendedFrom(ctx, ev.ClientID, today)
			if err != nil {
				return errors.NewStoreFailureError("reactivate allocations", err)
			}
			metrics.Reactivations.Inc()
			l.logger.Info("subscription reactivated", map[string]interface{}{
				"clientId":               ev.ClientID,
				"reactivatedAllocations": n,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		return l.createSubscription(ctx, ev)
	}
	return nil
}

// createSubscription provisions the record on first successful payment.
func (l *Ledger) createSubscription(ctx context.Context, ev models.PaymentEvent) error {
	return l.WithClient(ctx, ev.ClientID, func(sub *models.Subscription) error {
		if sub != nil {
			return nil // raced with another creator; nothing to do
		}

		kind := ev.CycleHint
		if !kind.Valid() {
			kind = models.CycleMonthly
		}

		now := l.clock.Now()
		start := models.DateOnly(now)
		end := kind.AddTo(start).AddDate(0, 0, -1)

		created := &models.Subscription{
			ClientID:        ev.ClientID,
			CycleKind:       kind,
			QuotaPerCycle:   l.config.QuotaPerCycle[kind],
			UsedThisCycle:   0,
			CycleStart:      start,
			CycleEnd:        end,
			NextBillingDate: start,
			Status:          models.SubscriptionActive,
			PaymentStatus:   models.PaymentPaid,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := l.subs.PutSubscription(ctx, created); err != nil {
			return errors.NewStoreFailureError("create subscription", err)
		}

		l.logger.Info("subscription created", map[string]interface{}{
			"clientId":  ev.ClientID,
			"cycleKind": string(kind),
			"quota":     created.QuotaPerCycle,
		})
		return nil
	})
}

// ApplyPaymentFailure marks the subscription failed and opens the grace
// period. Subscription status and the usage counter are left untouched: the
// quota is frozen, not reset.
func (l *Ledger) ApplyPaymentFailure(ctx context.Context, ev models.PaymentEvent) error {
	return l.withExistingClient(ctx, ev.ClientID, func(sub *models.Subscription) error {
		sub.PaymentStatus = models.PaymentFailed
		graceEnd := models.DateOnly(l.clock.Now()).AddDate(0, 0, l.config.GracePeriodDays)
		sub.GracePeriodEnd = &graceEnd

		l.logger.Warn("payment failed, grace period opened", map[string]interface{}{
			"clientId":       ev.ClientID,
			"attemptCount":   ev.AttemptCount,
			"gracePeriodEnd": graceEnd.Format(models.DateLayout),
		})
		return nil
	})
}

// RollCycle closes the current billing cycle and opens the next one. The new
// cycle is anchored at the previous cycleEnd + 1 day, never at "today", so
// boundaries cannot drift. A no-op unless today is past cycleEnd, which makes
// a second invocation on the same day idempotent.
func (l *Ledger) RollCycle(ctx context.Context, clientID string) error {
	return l.withExistingClient(ctx, clientID, func(sub *models.Subscription) error {
		today := models.DateOnly(l.clock.Now())
		if !today.After(models.DateOnly(sub.CycleEnd)) {
			return nil
		}

		newStart := models.DateOnly(sub.CycleEnd).AddDate(0, 0, 1)
		newEnd := sub.CycleKind.AddTo(newStart).AddDate(0, 0, -1)

		sub.CycleStart = newStart
		sub.CycleEnd = newEnd
		sub.NextBillingDate = newStart
		sub.UsedThisCycle = 0

		metrics.CycleRollovers.Inc()
		l.logger.Info("cycle rolled", map[string]interface{}{
			"clientId":   clientID,
			"cycleStart": newStart.Format(models.DateLayout),
			"cycleEnd":   newEnd.Format(models.DateLayout),
		})
		return nil
	})
}

// Suspend enforces the grace-period deadline: an active subscription with a
// failed payment whose grace period has lapsed becomes suspended, and its
// future-dated scheduled allocations become suspended with it.
// Already-published allocations are untouched. Returns the number of
// allocations suspended.
func (l *Ledger) Suspend(ctx context.Context, clientID string) (int, error) {
	suspended := 0
	err := l.withExistingClient(ctx, clientID, func(sub *models.Subscription) error {
		today := models.DateOnly(l.clock.Now())

		if sub.Status != models.SubscriptionActive || sub.PaymentStatus != models.PaymentFailed {
			return nil
		}
		if sub.GracePeriodEnd == nil || !today.After(models.DateOnly(*sub.GracePeriodEnd)) {
			return nil
		}

		sub.Status = models.SubscriptionSuspended

		n, err := l.allocs.SuspendScheduledAfter(ctx, clientID, today)
		if err != nil {
			return errors.NewStoreFailureError("suspend allocations", err)
		}
		suspended = n

		metrics.Suspensions.Inc()
		l.logger.Warn("subscription suspended", map[string]interface{}{
			"clientId":             clientID,
			"suspendedAllocations": n,
			"gracePeriodEnd":       sub.GracePeriodEnd.Format(models.DateLayout),
		})
		return nil
	})
	return suspended, err
}

// Reactivate restores a suspended subscription to active and reverts its
// suspended allocations from today onward back to scheduled. Past-dated
// suspended allocations remain suspended permanently.
func (l *Ledger) Reactivate(ctx context.Context, clientID string) (int, error) {
	reactivated := 0
	err := l.withExistingClient(ctx, clientID, func(sub *models.Subscription) error {
		if sub.Status != models.SubscriptionSuspended {
			return nil
		}

		sub.Status = models.SubscriptionActive
		today := models.DateOnly(l.clock.Now())
		n, err := l.allocs.ReactivateSuspendedFrom(ctx, clientID, today)
		if err != nil {
			return errors.NewStoreFailureError("reactivate allocations", err)
		}
		reactivated = n
		metrics.Reactivations.Inc()
		return nil
	})
	return reactivated, err
}
