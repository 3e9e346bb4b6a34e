// internal/store/memory_test.go
package store

import (
	"context"
	"testing"
	"time"

	"content-scheduler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSubscription(clientID string) *models.Subscription {
	return &models.Subscription{
		ClientID:        clientID,
		CycleKind:       models.CycleMonthly,
		QuotaPerCycle:   10,
		UsedThisCycle:   0,
		CycleStart:      date(2025, time.June, 1),
		CycleEnd:        date(2025, time.June, 30),
		NextBillingDate: date(2025, time.June, 1),
		Status:          models.SubscriptionActive,
		PaymentStatus:   models.PaymentPaid,
		CreatedAt:       date(2025, time.June, 1),
		UpdatedAt:       date(2025, time.June, 1),
	}
}

func testAllocation(id, clientID, contentRef string, day time.Time) *models.Allocation {
	return &models.Allocation{
		ID:            id,
		ClientID:      clientID,
		ContentRef:    contentRef,
		ScheduledDate: day,
		ScheduledTime: "09:00",
		Platform:      "instagram",
		CycleID:       models.CycleIDFor(clientID, date(2025, time.June, 1), date(2025, time.June, 30)),
		Status:        models.AllocationScheduled,
		CreatedAt:     day,
		UpdatedAt:     day,
	}
}

// ==========================
// Subscription Tests
// ==========================

func TestMemoryStore_SubscriptionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetSubscription(ctx, "client-1")
	assert.ErrorIs(t, err, ErrNotFound)

	sub := testSubscription("client-1")
	require.NoError(t, s.PutSubscription(ctx, sub))

	got, err := s.GetSubscription(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, sub.ClientID, got.ClientID)
	assert.Equal(t, 10, got.QuotaPerCycle)

	// The store returns copies; mutating the result must not leak back.
	got.UsedThisCycle = 99
	again, err := s.GetSubscription(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.UsedThisCycle)
}

func TestMemoryStore_ListRolloverDue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	current := testSubscription("current")
	require.NoError(t, s.PutSubscription(ctx, current))

	ended := testSubscription("ended")
	ended.CycleEnd = date(2025, time.May, 31)
	require.NoError(t, s.PutSubscription(ctx, ended))

	cancelled := testSubscription("cancelled")
	cancelled.CycleEnd = date(2025, time.May, 31)
	cancelled.Status = models.SubscriptionCancelled
	require.NoError(t, s.PutSubscription(ctx, cancelled))

	due, err := s.ListRolloverDue(ctx, date(2025, time.June, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"ended"}, due)
}

func TestMemoryStore_ListGraceExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	inGrace := testSubscription("in-grace")
	inGrace.PaymentStatus = models.PaymentFailed
	graceEnd := date(2025, time.June, 20)
	inGrace.GracePeriodEnd = &graceEnd
	require.NoError(t, s.PutSubscription(ctx, inGrace))

	expired := testSubscription("expired")
	expired.PaymentStatus = models.PaymentFailed
	pastEnd := date(2025, time.June, 10)
	expired.GracePeriodEnd = &pastEnd
	require.NoError(t, s.PutSubscription(ctx, expired))

	got, err := s.ListGraceExpired(ctx, date(2025, time.June, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, got)
}

// ==========================
// Allocation Tests
// ==========================

func TestMemoryStore_InsertAllocations_UniquenessGuard(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := testAllocation("a-1", "client-1", "content-1", date(2025, time.June, 5))
	require.NoError(t, s.InsertAllocations(ctx, []*models.Allocation{a}))

	dup := testAllocation("a-2", "client-1", "content-1", date(2025, time.June, 9))
	err := s.InsertAllocations(ctx, []*models.Allocation{dup})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.GetAllocation(ctx, "a-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InsertAllocations_BatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	existing := testAllocation("a-1", "client-1", "content-1", date(2025, time.June, 5))
	require.NoError(t, s.InsertAllocations(ctx, []*models.Allocation{existing}))

	batch := []*models.Allocation{
		testAllocation("b-1", "client-1", "content-2", date(2025, time.June, 6)),
		testAllocation("b-2", "client-1", "content-1", date(2025, time.June, 7)), // collides
	}
	err := s.InsertAllocations(ctx, batch)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Nothing from the batch may have landed.
	_, err = s.GetAllocation(ctx, "b-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListPublishDue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := date(2025, time.June, 5)

	morning := testAllocation("a-morning", "client-1", "content-1", day)
	morning.ScheduledTime = "09:00"
	evening := testAllocation("a-evening", "client-1", "content-2", day)
	evening.ScheduledTime = "19:00"
	tomorrow := testAllocation("a-tomorrow", "client-1", "content-3", day.AddDate(0, 0, 1))
	published := testAllocation("a-done", "client-1", "content-4", day)
	published.Status = models.AllocationPublished
	// Missed while the dispatcher was down; its late time must not matter.
	overdue := testAllocation("a-overdue", "client-1", "content-5", day.AddDate(0, 0, -1))
	overdue.ScheduledTime = "23:00"

	require.NoError(t, s.InsertAllocations(ctx, []*models.Allocation{morning, evening, tomorrow, published, overdue}))

	due, err := s.ListPublishDue(ctx, day, "12:00")
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a-overdue", due[0].ID, "oldest first")
	assert.Equal(t, "a-morning", due[1].ID)
}

func TestMemoryStore_SuspendAndReactivate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	today := date(2025, time.June, 15)

	past := testAllocation("a-past", "client-1", "content-1", date(2025, time.June, 10))
	todayAlloc := testAllocation("a-today", "client-1", "content-2", today)
	future := testAllocation("a-future", "client-1", "content-3", date(2025, time.June, 20))
	require.NoError(t, s.InsertAllocations(ctx, []*models.Allocation{past, todayAlloc, future}))

	n, err := s.SuspendScheduledAfter(ctx, "client-1", today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := s.GetAllocation(ctx, "a-future")
	assert.Equal(t, models.AllocationSuspended, got.Status)
	got, _ = s.GetAllocation(ctx, "a-today")
	assert.Equal(t, models.AllocationScheduled, got.Status)

	// Reactivation at a later date: the future allocation returns to
	// scheduled; nothing else changes.
	n, err = s.ReactivateSuspendedFrom(ctx, "client-1", date(2025, time.June, 17))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ = s.GetAllocation(ctx, "a-future")
	assert.Equal(t, models.AllocationScheduled, got.Status)
}

func TestMemoryStore_ListCalendar_Ordered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	late := testAllocation("a-late", "client-1", "content-1", date(2025, time.June, 20))
	early := testAllocation("a-early", "client-1", "content-2", date(2025, time.June, 2))
	other := testAllocation("a-other", "client-2", "content-3", date(2025, time.June, 10))
	require.NoError(t, s.InsertAllocations(ctx, []*models.Allocation{late, early, other}))

	got, err := s.ListCalendar(ctx, "client-1", date(2025, time.June, 1), date(2025, time.June, 30))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-early", got[0].ID)
	assert.Equal(t, "a-late", got[1].ID)
}
