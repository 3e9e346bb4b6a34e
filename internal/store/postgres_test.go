// internal/store/postgres_test.go
package store

import (
	"context"
	"testing"
	"time"

	"content-scheduler/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_GetSubscription(t *testing.T) {
	s, mock := newMockStore(t)

	cols := []string{
		"client_id", "cycle_kind", "quota_per_cycle", "used_this_cycle",
		"cycle_start", "cycle_end", "next_billing_date", "status",
		"payment_status", "grace_period_end", "created_at", "updated_at",
	}
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM subscriptions WHERE client_id = \$1`).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"client-1", "monthly", 10, 3,
			date(2025, time.June, 1), date(2025, time.June, 30), date(2025, time.June, 1),
			"active", "paid", nil, now, now,
		))

	sub, err := s.GetSubscription(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.CycleMonthly, sub.CycleKind)
	assert.Equal(t, 3, sub.UsedThisCycle)
	assert.Nil(t, sub.GracePeriodEnd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSubscription_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM subscriptions WHERE client_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}))

	_, err := s.GetSubscription(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_InsertAllocations_DuplicateRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO allocations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO allocations`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	allocs := []*models.Allocation{
		testAllocation("a-1", "client-1", "content-1", date(2025, time.June, 5)),
		testAllocation("a-2", "client-1", "content-2", date(2025, time.June, 6)),
	}
	err := s.InsertAllocations(context.Background(), allocs)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAllocations_Commits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO allocations`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InsertAllocations(context.Background(), []*models.Allocation{
		testAllocation("a-1", "client-1", "content-1", date(2025, time.June, 5)),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished(t *testing.T) {
	s, mock := newMockStore(t)
	publishedAt := time.Date(2025, time.June, 5, 9, 12, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE allocations`).
		WithArgs("published", publishedAt, "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkPublished(context.Background(), "a-1", publishedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE allocations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetStatus(context.Background(), "missing", models.AllocationScheduled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ListRolloverDue(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT client_id FROM subscriptions`).
		WithArgs("active", date(2025, time.June, 15)).
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).
			AddRow("client-a").AddRow("client-b"))

	due, err := s.ListRolloverDue(context.Background(), date(2025, time.June, 15))
	require.NoError(t, err)
	assert.Equal(t, []string{"client-a", "client-b"}, due)
}
