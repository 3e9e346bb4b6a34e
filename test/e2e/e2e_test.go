// test/e2e/e2e_test.go
//
// Full lifecycle scenario against in-memory infrastructure: first payment,
// batch allocation, publication, payment failure, grace expiry, suspension,
// and reactivation, all driven by a fake clock.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-scheduler/internal/allocator"
	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/database"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/retry"
	"content-scheduler/internal/fallback"
	"content-scheduler/internal/generator"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/notifier"
	"content-scheduler/internal/store"

	allocatebatch "content-scheduler/internal/workers/allocation/allocate-batch"
	querycalendar "content-scheduler/internal/workers/allocation/query-calendar"
	cyclerollover "content-scheduler/internal/workers/billing/cycle-rollover"
	graceperiod "content-scheduler/internal/workers/billing/grace-period"
	paymentwebhook "content-scheduler/internal/workers/billing/payment-webhook"
	publishdispatch "content-scheduler/internal/workers/publishing/publish-dispatch"
)

type memPublisher struct {
	published int64
}

func (m *memPublisher) Publish(ctx context.Context, alloc *models.Allocation) error {
	atomic.AddInt64(&m.published, 1)
	return nil
}

type seqGenerator struct{ seq int64 }

func (g *seqGenerator) Generate(ctx context.Context, req generator.Request) (string, error) {
	return fmt.Sprintf("content-%d", atomic.AddInt64(&g.seq, 1)), nil
}

type system struct {
	store     *store.MemoryStore
	ledger    *ledger.Ledger
	clock     *clock.Fake
	publisher *memPublisher

	webhook  http.Handler
	batch    http.Handler
	calendar http.Handler

	rollover *cyclerollover.Task
	grace    *graceperiod.Task
	dispatch *publishdispatch.Task
}

func newSystem(t *testing.T) *system {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC))
	log := logger.NewTestLogger(t)

	led := ledger.New(st, ledger.Config{
		GracePeriodDays: 3,
		QuotaPerCycle: map[models.BillingCycleKind]int{
			models.CycleMonthly: 30,
		},
	}, clk, log)

	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	pool := fallback.NewRedisPool(rdb, "fallback-pool")
	selector := fallback.NewSelector(&seqGenerator{}, pool, retry.Policy{}, log)
	alloc := allocator.New(led, st, selector, clk, log)

	pub := &memPublisher{}
	deduper := paymentwebhook.NewRedisDeduper(rdb, 72*time.Hour)

	return &system{
		store:     st,
		ledger:    led,
		clock:     clk,
		publisher: pub,
		webhook:   paymentwebhook.NewHandler(led, deduper, notifier.NoOpNotifier{}, clk, log),
		batch:     allocatebatch.NewHandler(alloc, log),
		calendar:  querycalendar.NewHandler(st, log),
		rollover:  cyclerollover.NewTask(led, st, clk, log),
		grace:     graceperiod.NewTask(led, st, notifier.NoOpNotifier{}, clk, log),
		dispatch:  publishdispatch.NewTask(st, pub, nil, clk, log),
	}
}

func (s *system) post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *system) runDay(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, s.rollover.Run(ctx))
	require.NoError(t, s.grace.Run(ctx))
	require.NoError(t, s.dispatch.Run(ctx))
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := newSystem(t)
	ctx := context.Background()

	// Day 1: first payment creates the subscription.
	rec := s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-1","type":"payment.succeeded","clientId":"acme","amount":49.0,"cycleHint":"monthly"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sub, err := s.ledger.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), sub.CycleStart)
	assert.Equal(t, time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC), sub.CycleEnd)

	// Allocate 10 pieces across the cycle.
	rec = s.post(t, s.batch, "/allocations/batch",
		`{"clientId":"acme","count":10,"windowStart":"2025-06-01","windowEnd":"2025-06-30","platform":"linkedin"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sub, err = s.ledger.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 10, sub.UsedThisCycle)

	// Walk the month: tasks run daily at 10:00, so due publications go out.
	published := 0
	for day := 1; day <= 30; day++ {
		s.clock.Set(time.Date(2025, time.June, day, 10, 0, 0, 0, time.UTC))
		s.runDay(t, ctx)

		if day == 10 {
			// Mid-cycle payment failure opens the grace period (June 10 + 3).
			rec := s.post(t, s.webhook, "/webhooks/payment",
				`{"eventId":"evt-2","type":"payment.failed","clientId":"acme","attemptCount":1}`)
			require.Equal(t, http.StatusOK, rec.Code)
		}
		if day == 12 {
			// Payment recovers inside the grace window; nothing was suspended.
			rec := s.post(t, s.webhook, "/webhooks/payment",
				`{"eventId":"evt-3","type":"payment.succeeded","clientId":"acme"}`)
			require.Equal(t, http.StatusOK, rec.Code)

			sub, err := s.ledger.Get(ctx, "acme")
			require.NoError(t, err)
			assert.Equal(t, models.SubscriptionActive, sub.Status)
			assert.Nil(t, sub.GracePeriodEnd)
		}
		published = int(atomic.LoadInt64(&s.publisher.published))
	}
	assert.Equal(t, 10, published, "every allocation in the window was published")

	// July 1: rollover opens the next cycle and resets usage.
	s.clock.Set(time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC))
	s.runDay(t, ctx)

	sub, err = s.ledger.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), sub.CycleStart)
	assert.Equal(t, time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC), sub.CycleEnd)
	assert.Zero(t, sub.UsedThisCycle)
}

func TestSuspensionAndReactivation(t *testing.T) {
	s := newSystem(t)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-1","type":"payment.succeeded","clientId":"acme","cycleHint":"monthly"}`).Code)

	rec := s.post(t, s.batch, "/allocations/batch",
		`{"clientId":"acme","count":6,"windowStart":"2025-06-01","windowEnd":"2025-06-30","platform":"linkedin"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// June 2: payment fails; grace covers June 2-5.
	s.clock.Set(time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC))
	require.Equal(t, http.StatusOK, s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-2","type":"payment.failed","clientId":"acme","attemptCount":1}`).Code)
	s.runDay(t, ctx)

	// June 6: grace lapsed, subscription and future allocations suspend.
	s.clock.Set(time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC))
	s.runDay(t, ctx)

	sub, err := s.ledger.Get(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, models.SubscriptionSuspended, sub.Status)

	suspendedBefore := countByStatus(t, s, models.AllocationSuspended)
	assert.Greater(t, suspendedBefore, 0)

	// June 8: payment recovers; allocations from today onward resume,
	// past-dated suspended ones stay parked forever.
	s.clock.Set(time.Date(2025, time.June, 8, 10, 0, 0, 0, time.UTC))
	require.Equal(t, http.StatusOK, s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-3","type":"payment.succeeded","clientId":"acme"}`).Code)

	sub, err = s.ledger.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)

	for _, e := range calendarEntries(t, s) {
		d, err := models.ParseDate(e.ScheduledDate)
		require.NoError(t, err)
		if e.Status == string(models.AllocationSuspended) {
			assert.True(t, d.Before(time.Date(2025, time.June, 8, 0, 0, 0, 0, time.UTC)),
				"only past-dated allocations stay suspended")
		}
	}
}

func TestWebhookIdempotencyAcrossLifecycle(t *testing.T) {
	s := newSystem(t)

	require.Equal(t, http.StatusOK, s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-1","type":"payment.succeeded","clientId":"acme","cycleHint":"monthly"}`).Code)
	require.Equal(t, http.StatusOK, s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-2","type":"payment.failed","clientId":"acme"}`).Code)

	// Replaying the success event must not undo the failure state.
	rec := s.post(t, s.webhook, "/webhooks/payment",
		`{"eventId":"evt-1","type":"payment.succeeded","clientId":"acme","cycleHint":"monthly"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate"`)

	sub, err := s.ledger.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, sub.PaymentStatus)
}

func calendarEntries(t *testing.T, s *system) []querycalendar.Entry {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/calendar?clientId=acme&from=2025-06-01&to=2025-06-30", nil)
	rec := httptest.NewRecorder()
	s.calendar.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out querycalendar.Output
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Entries
}

func countByStatus(t *testing.T, s *system, status models.AllocationStatus) int {
	t.Helper()
	n := 0
	for _, e := range calendarEntries(t, s) {
		if e.Status == string(status) {
			n++
		}
	}
	return n
}
