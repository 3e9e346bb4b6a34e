package publishdispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/errors"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

// fakePublisher records publishes and fails for configured allocation IDs.
type fakePublisher struct {
	published []string
	failFor   map[string]bool
}

func (f *fakePublisher) Publish(ctx context.Context, alloc *models.Allocation) error {
	if f.failFor[alloc.ID] {
		return errors.NewPublishFailedError(alloc.ID, context.DeadlineExceeded)
	}
	f.published = append(f.published, alloc.ID)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func alloc(id, wallTime string, day time.Time, status models.AllocationStatus) *models.Allocation {
	return &models.Allocation{
		ID: id, ClientID: "acme", ContentRef: "content-" + id, CycleID: "x",
		ScheduledDate: day, ScheduledTime: wallTime, Status: status, Platform: "linkedin",
	}
}

func newFixture(t *testing.T, now time.Time) (*Task, *store.MemoryStore, *fakePublisher, *clock.Fake) {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFake(now)
	pub := &fakePublisher{failFor: map[string]bool{}}
	task := NewTask(st, pub, nil, clk, logger.NewTestLogger(t))
	return task, st, pub, clk
}

func TestTask_PublishesDueAllocations(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	task, st, pub, _ := newFixture(t, now)
	ctx := context.Background()
	today := date(2025, time.June, 10)

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("due-morning", "09:00", today, models.AllocationScheduled),
		alloc("due-noon", "12:00", today, models.AllocationScheduled),
		alloc("later-today", "18:00", today, models.AllocationScheduled),
		alloc("tomorrow", "09:00", today.AddDate(0, 0, 1), models.AllocationScheduled),
		alloc("already-done", "08:00", today, models.AllocationPublished),
	}))

	require.NoError(t, task.Run(ctx))
	assert.ElementsMatch(t, []string{"due-morning", "due-noon"}, pub.published)

	done, err := st.GetAllocation(ctx, "due-morning")
	require.NoError(t, err)
	assert.Equal(t, models.AllocationPublished, done.Status)
	require.NotNil(t, done.PublishedAt)
	assert.Equal(t, now, *done.PublishedAt)

	later, err := st.GetAllocation(ctx, "later-today")
	require.NoError(t, err)
	assert.Equal(t, models.AllocationScheduled, later.Status)
}

func TestTask_CatchesUpOverdueAllocations(t *testing.T) {
	// Allocations whose day passed while the dispatcher was down are still
	// due on the next sweep, whatever their wall time was.
	now := time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)
	task, st, pub, _ := newFixture(t, now)
	ctx := context.Background()
	today := date(2025, time.June, 10)

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("missed-yesterday", "18:00", today.AddDate(0, 0, -1), models.AllocationScheduled),
		alloc("missed-last-week", "09:00", today.AddDate(0, 0, -7), models.AllocationScheduled),
		alloc("later-today", "18:00", today, models.AllocationScheduled),
	}))

	require.NoError(t, task.Run(ctx))
	assert.ElementsMatch(t, []string{"missed-yesterday", "missed-last-week"}, pub.published)

	caught, err := st.GetAllocation(ctx, "missed-last-week")
	require.NoError(t, err)
	assert.Equal(t, models.AllocationPublished, caught.Status)
}

func TestTask_FailureParksAllocation(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	task, st, pub, _ := newFixture(t, now)
	ctx := context.Background()
	today := date(2025, time.June, 10)

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("bad", "09:00", today, models.AllocationScheduled),
		alloc("good", "09:00", today, models.AllocationScheduled),
	}))
	pub.failFor["bad"] = true

	require.NoError(t, task.Run(ctx), "a publish failure does not fail the sweep")

	bad, err := st.GetAllocation(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, models.AllocationFailed, bad.Status)
	assert.NotEmpty(t, bad.FailureReason)

	assert.Equal(t, []string{"good"}, pub.published, "other allocations still go out")
}

func TestTask_FailedAllocationNotRetriedAutomatically(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	task, st, pub, _ := newFixture(t, now)
	ctx := context.Background()

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("bad", "09:00", date(2025, time.June, 10), models.AllocationScheduled),
	}))
	pub.failFor["bad"] = true

	require.NoError(t, task.Run(ctx))
	require.NoError(t, task.Run(ctx))
	assert.Empty(t, pub.published)
}

func TestReenqueue_ResetsFailedAllocation(t *testing.T) {
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
	task, st, pub, _ := newFixture(t, now)
	ctx := context.Background()

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("bad", "09:00", date(2025, time.June, 10), models.AllocationScheduled),
	}))
	pub.failFor["bad"] = true
	require.NoError(t, task.Run(ctx))

	h := NewReenqueueHandler(st, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/allocations/reenqueue", strings.NewReader(`{"allocationId":"bad"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Next sweep picks it up once the publisher recovers.
	delete(pub.failFor, "bad")
	require.NoError(t, task.Run(ctx))
	assert.Equal(t, []string{"bad"}, pub.published)
}

func TestReenqueue_RejectsNonFailedAllocation(t *testing.T) {
	_, st, _, _ := newFixture(t, time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, st.InsertAllocations(ctx, []*models.Allocation{
		alloc("pending", "09:00", date(2025, time.June, 11), models.AllocationScheduled),
	}))

	h := NewReenqueueHandler(st, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/allocations/reenqueue", strings.NewReader(`{"allocationId":"pending"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReenqueue_UnknownAllocation(t *testing.T) {
	_, st, _, _ := newFixture(t, time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))

	h := NewReenqueueHandler(st, logger.NewTestLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/allocations/reenqueue", strings.NewReader(`{"allocationId":"ghost"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
