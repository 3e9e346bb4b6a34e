// internal/allocator/allocator.go
package allocator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
	"content-scheduler/internal/distributor"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

// ContentSource supplies a content reference for an allocation and reports
// whether it came from the fallback pool.
type ContentSource interface {
	ObtainContent(ctx context.Context, clientID, topic string) (ref string, fromPool bool, err error)
}

// SingleRequest asks for one allocation on a specific date.
type SingleRequest struct {
	ClientID      string
	ScheduledDate time.Time
	// ScheduledTime is "HH:MM"; defaults to 09:00.
	ScheduledTime string
	Platform      string
	Topic         string
}

// BatchRequest asks for count allocations spread across a window.
type BatchRequest struct {
	ClientID    string
	Count       int
	Period      string
	WindowStart time.Time
	WindowEnd   time.Time
	Platform    string
	Topic       string
}

// Allocator turns allocation requests into Allocation records. Content is
// sourced before the client lock is taken; the lock covers only the
// precondition checks, the insert, and the quota debit, so a slow generator
// never blocks other mutations for the client.
type Allocator struct {
	ledger *ledger.Ledger
	allocs store.AllocationStore
	source ContentSource
	clock  clock.Clock
	logger logger.Logger
}

func New(l *ledger.Ledger, allocs store.AllocationStore, source ContentSource, clk clock.Clock, log logger.Logger) *Allocator {
	return &Allocator{
		ledger: l,
		allocs: allocs,
		source: source,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "allocator"}),
	}
}

// sourcedItem is one content piece obtained before the lock, bound to its slot.
type sourcedItem struct {
	ref      string
	fallback bool
	date     time.Time
	wallTime string
}

// RequestSingle allocates one content piece for the given date.
func (a *Allocator) RequestSingle(ctx context.Context, req SingleRequest) (*models.Allocation, error) {
	wallTime := req.ScheduledTime
	if wallTime == "" {
		wallTime = models.DefaultScheduledTime
	}
	if !models.ValidClockTime(wallTime) {
		return nil, errors.NewValidationError("scheduledTime must be HH:MM")
	}
	date := models.DateOnly(req.ScheduledDate)

	// Fail fast on preconditions before paying for content generation. The
	// authoritative check runs again under the lock.
	if err := a.precheck(ctx, req.ClientID, 1, []time.Time{date}); err != nil {
		metrics.AllocationRequests.WithLabelValues("single", "rejected", string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	ref, fromPool, err := a.source.ObtainContent(ctx, req.ClientID, req.Topic)
	if err != nil {
		metrics.AllocationRequests.WithLabelValues("single", "error", string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	items := []sourcedItem{{ref: ref, fallback: fromPool, date: date, wallTime: wallTime}}
	created, err := a.commit(ctx, req.ClientID, req.Platform, "", items)
	if err != nil {
		metrics.AllocationRequests.WithLabelValues("single", "rejected", string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	metrics.AllocationRequests.WithLabelValues("single", "success", "").Inc()
	return created[0], nil
}

// RequestBatch allocates count pieces spread across the window, all-or-nothing.
// Every allocation in the batch shares one batch ID.
func (a *Allocator) RequestBatch(ctx context.Context, req BatchRequest) (string, []*models.Allocation, error) {
	if req.Count <= 0 {
		return "", nil, errors.NewValidationError("count must be positive")
	}

	slots, err := distributor.Distribute(req.WindowStart, req.WindowEnd, req.Count, optionsForPeriod(req.Period))
	if err != nil {
		return "", nil, err
	}

	dates := make([]time.Time, len(slots))
	for i, s := range slots {
		dates[i] = s.Date
	}
	if err := a.precheck(ctx, req.ClientID, req.Count, dates); err != nil {
		metrics.AllocationRequests.WithLabelValues("batch", "rejected", string(errors.CodeOf(err))).Inc()
		return "", nil, err
	}

	items := make([]sourcedItem, 0, len(slots))
	for _, s := range slots {
		ref, fromPool, err := a.source.ObtainContent(ctx, req.ClientID, req.Topic)
		if err != nil {
			// No inserts have happened yet, so the batch dies cleanly here.
			metrics.AllocationRequests.WithLabelValues("batch", "error", string(errors.CodeOf(err))).Inc()
			return "", nil, err
		}
		items = append(items, sourcedItem{ref: ref, fallback: fromPool, date: s.Date, wallTime: s.Time})
	}

	batchID := uuid.NewString()
	created, err := a.commit(ctx, req.ClientID, req.Platform, batchID, items)
	if err != nil {
		metrics.AllocationRequests.WithLabelValues("batch", "rejected", string(errors.CodeOf(err))).Inc()
		return "", nil, err
	}

	metrics.AllocationRequests.WithLabelValues("batch", "success", "").Inc()
	a.logger.Info("batch allocated", map[string]interface{}{
		"clientId": req.ClientID,
		"batchId":  batchID,
		"count":    len(created),
	})
	return batchID, created, nil
}

// optionsForPeriod maps the request's spread policy onto distributor options.
func optionsForPeriod(period string) distributor.Options {
	switch period {
	case "weekdays":
		return distributor.Options{AvoidWeekends: true}
	default:
		return distributor.Options{}
	}
}

// precheck rejects obviously doomed requests without taking the write path.
func (a *Allocator) precheck(ctx context.Context, clientID string, count int, dates []time.Time) error {
	sub, err := a.ledger.Get(ctx, clientID)
	if err != nil {
		return err
	}
	return checkPreconditions(sub, count, dates)
}

// checkPreconditions enforces the rejection order: payment, then quota, then
// date window.
func checkPreconditions(sub *models.Subscription, count int, dates []time.Time) error {
	if sub.PaymentStatus == models.PaymentFailed {
		return errors.NewPaymentBlockedError(sub.ClientID)
	}
	if sub.UsedThisCycle+count > sub.QuotaPerCycle {
		return errors.NewQuotaExceededError(sub.ClientID, sub.UsedThisCycle, sub.QuotaPerCycle, count)
	}
	for _, d := range dates {
		if !sub.InCycleWindow(d) {
			return errors.NewDateOutOfCycleError(
				sub.ClientID,
				d.Format(models.DateLayout),
				sub.CycleStart.Format(models.DateLayout),
				sub.CycleEnd.Format(models.DateLayout),
			)
		}
	}
	return nil
}

// commit performs the locked check-and-debit: preconditions, uniqueness,
// insert, and quota debit form one atomic unit under the client lock. The
// insert itself is all-or-nothing, so a uniqueness collision leaves no
// partial batch behind.
func (a *Allocator) commit(ctx context.Context, clientID, platform, batchID string, items []sourcedItem) ([]*models.Allocation, error) {
	var created []*models.Allocation

	err := a.ledger.WithClient(ctx, clientID, func(sub *models.Subscription) error {
		if sub == nil {
			return errors.NewSubscriptionNotFoundError(clientID)
		}

		// Fallback items never debit quota, but the request is still gated
		// on the full count: a client out of quota gets rejected, not
		// silently served from the pool.
		dates := make([]time.Time, len(items))
		for i, it := range items {
			dates[i] = it.date
		}
		if err := checkPreconditions(sub, len(items), dates); err != nil {
			return err
		}

		cycleID := sub.CycleID()
		now := a.clock.Now()
		debit := 0

		allocs := make([]*models.Allocation, 0, len(items))
		for _, it := range items {
			exists, err := a.allocs.AllocationExists(ctx, clientID, it.ref, cycleID)
			if err != nil {
				return errors.NewStoreFailureError("uniqueness check", err)
			}
			if exists {
				return errors.NewDuplicateAllocationError(clientID, it.ref, cycleID)
			}

			allocs = append(allocs, &models.Allocation{
				ID:            uuid.NewString(),
				ClientID:      clientID,
				ContentRef:    it.ref,
				ScheduledDate: it.date,
				ScheduledTime: it.wallTime,
				Platform:      platform,
				CycleID:       cycleID,
				BatchID:       batchID,
				Status:        models.AllocationScheduled,
				IsFallback:    it.fallback,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
			if !it.fallback {
				debit++
			}
		}

		if err := a.allocs.InsertAllocations(ctx, allocs); err != nil {
			if err == store.ErrDuplicate {
				return errors.NewDuplicateAllocationError(clientID, "", cycleID)
			}
			return errors.NewStoreFailureError("insert allocations", err)
		}

		sub.UsedThisCycle += debit
		for _, al := range allocs {
			src := "generated"
			if al.IsFallback {
				src = "fallback"
			}
			metrics.AllocationsCreated.WithLabelValues(src).Inc()
		}
		created = allocs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
