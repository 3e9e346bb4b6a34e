// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"content-scheduler/internal/models"

	"github.com/lib/pq"
)

// PostgresStore is the durable Store implementation over lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS subscriptions (
    client_id         TEXT PRIMARY KEY,
    cycle_kind        TEXT NOT NULL,
    quota_per_cycle   INTEGER NOT NULL CHECK (quota_per_cycle >= 0),
    used_this_cycle   INTEGER NOT NULL CHECK (used_this_cycle >= 0),
    cycle_start       DATE NOT NULL,
    cycle_end         DATE NOT NULL,
    next_billing_date DATE NOT NULL,
    status            TEXT NOT NULL,
    payment_status    TEXT NOT NULL,
    grace_period_end  DATE,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
    id             TEXT PRIMARY KEY,
    client_id      TEXT NOT NULL,
    content_ref    TEXT NOT NULL,
    scheduled_date DATE NOT NULL,
    scheduled_time TEXT NOT NULL,
    platform       TEXT NOT NULL,
    cycle_id       TEXT NOT NULL,
    batch_id       TEXT,
    status         TEXT NOT NULL,
    is_fallback    BOOLEAN NOT NULL,
    failure_reason TEXT,
    published_at   TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS allocations_client_content_cycle
    ON allocations (client_id, content_ref, cycle_id);
CREATE INDEX IF NOT EXISTS allocations_due
    ON allocations (status, scheduled_date, scheduled_time);
CREATE INDEX IF NOT EXISTS allocations_client_date
    ON allocations (client_id, scheduled_date);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// --- SubscriptionStore ---

const subscriptionColumns = `client_id, cycle_kind, quota_per_cycle, used_this_cycle,
	cycle_start, cycle_end, next_billing_date, status, payment_status,
	grace_period_end, created_at, updated_at`

func (s *PostgresStore) GetSubscription(ctx context.Context, clientID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE client_id = $1`
	row := s.db.QueryRowContext(ctx, query, clientID)
	return scanSubscription(row)
}

func (s *PostgresStore) PutSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (client_id) DO UPDATE SET
			cycle_kind = EXCLUDED.cycle_kind,
			quota_per_cycle = EXCLUDED.quota_per_cycle,
			used_this_cycle = EXCLUDED.used_this_cycle,
			cycle_start = EXCLUDED.cycle_start,
			cycle_end = EXCLUDED.cycle_end,
			next_billing_date = EXCLUDED.next_billing_date,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			grace_period_end = EXCLUDED.grace_period_end,
			updated_at = EXCLUDED.updated_at`

	var graceEnd interface{}
	if sub.GracePeriodEnd != nil {
		graceEnd = *sub.GracePeriodEnd
	}

	_, err := s.db.ExecContext(ctx, query,
		sub.ClientID, string(sub.CycleKind), sub.QuotaPerCycle, sub.UsedThisCycle,
		sub.CycleStart, sub.CycleEnd, sub.NextBillingDate,
		string(sub.Status), string(sub.PaymentStatus),
		graceEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRolloverDue(ctx context.Context, today time.Time) ([]string, error) {
	query := `SELECT client_id FROM subscriptions
		WHERE status = $1 AND cycle_end < $2 ORDER BY client_id`
	return s.listClientIDs(ctx, query, string(models.SubscriptionActive), models.DateOnly(today))
}

func (s *PostgresStore) ListGraceExpired(ctx context.Context, today time.Time) ([]string, error) {
	query := `SELECT client_id FROM subscriptions
		WHERE status = $1 AND payment_status = $2
		  AND grace_period_end IS NOT NULL AND grace_period_end < $3
		ORDER BY client_id`
	return s.listClientIDs(ctx, query,
		string(models.SubscriptionActive), string(models.PaymentFailed), models.DateOnly(today))
}

func (s *PostgresStore) listClientIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- AllocationStore ---

const allocationColumns = `id, client_id, content_ref, scheduled_date, scheduled_time,
	platform, cycle_id, batch_id, status, is_fallback, failure_reason,
	published_at, created_at, updated_at`

func (s *PostgresStore) InsertAllocations(ctx context.Context, allocs []*models.Allocation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO allocations (` + allocationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	for _, a := range allocs {
		var batchID interface{}
		if a.BatchID != "" {
			batchID = a.BatchID
		}
		_, err := tx.ExecContext(ctx, query,
			a.ID, a.ClientID, a.ContentRef, models.DateOnly(a.ScheduledDate), a.ScheduledTime,
			a.Platform, a.CycleID, batchID, string(a.Status), a.IsFallback,
			nullIfEmpty(a.FailureReason), a.PublishedAt, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert allocation %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetAllocation(ctx context.Context, id string) (*models.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	return scanAllocation(row)
}

func (s *PostgresStore) AllocationExists(ctx context.Context, clientID, contentRef, cycleID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM allocations WHERE client_id = $1 AND content_ref = $2 AND cycle_id = $3)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, clientID, contentRef, cycleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("allocation exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListCalendar(ctx context.Context, clientID string, from, to time.Time) ([]*models.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE client_id = $1 AND scheduled_date BETWEEN $2 AND $3
		ORDER BY scheduled_date, scheduled_time, id`
	return s.listAllocations(ctx, query, clientID, models.DateOnly(from), models.DateOnly(to))
}

func (s *PostgresStore) ListPublishDue(ctx context.Context, date time.Time, wallTime string) ([]*models.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations
		WHERE status = $1 AND (scheduled_date < $2 OR (scheduled_date = $2 AND scheduled_time <= $3))
		ORDER BY scheduled_date, scheduled_time, id`
	return s.listAllocations(ctx, query,
		string(models.AllocationScheduled), models.DateOnly(date), wallTime)
}

func (s *PostgresStore) listAllocations(ctx context.Context, query string, args ...interface{}) ([]*models.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []*models.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	query := `UPDATE allocations
		SET status = $1, published_at = $2, failure_reason = NULL, updated_at = NOW()
		WHERE id = $3`
	return s.execOne(ctx, query, string(models.AllocationPublished), publishedAt, id)
}

func (s *PostgresStore) MarkPublishFailed(ctx context.Context, id, reason string) error {
	query := `UPDATE allocations
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3`
	return s.execOne(ctx, query, string(models.AllocationFailed), reason, id)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status models.AllocationStatus) error {
	query := `UPDATE allocations SET status = $1, updated_at = NOW() WHERE id = $2`
	return s.execOne(ctx, query, string(status), id)
}

func (s *PostgresStore) SuspendScheduledAfter(ctx context.Context, clientID string, cutoff time.Time) (int, error) {
	query := `UPDATE allocations SET status = $1, updated_at = NOW()
		WHERE client_id = $2 AND status = $3 AND scheduled_date > $4`
	return s.execCount(ctx, query,
		string(models.AllocationSuspended), clientID,
		string(models.AllocationScheduled), models.DateOnly(cutoff))
}

func (s *PostgresStore) ReactivateSuspendedFrom(ctx context.Context, clientID string, cutoff time.Time) (int, error) {
	query := `UPDATE allocations SET status = $1, updated_at = NOW()
		WHERE client_id = $2 AND status = $3 AND scheduled_date >= $4`
	return s.execCount(ctx, query,
		string(models.AllocationScheduled), clientID,
		string(models.AllocationSuspended), models.DateOnly(cutoff))
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) execCount(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update allocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	var kind, status, payment string
	var graceEnd sql.NullTime

	err := row.Scan(
		&sub.ClientID, &kind, &sub.QuotaPerCycle, &sub.UsedThisCycle,
		&sub.CycleStart, &sub.CycleEnd, &sub.NextBillingDate,
		&status, &payment, &graceEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.CycleKind = models.BillingCycleKind(kind)
	sub.Status = models.SubscriptionStatus(status)
	sub.PaymentStatus = models.PaymentStatus(payment)
	if graceEnd.Valid {
		t := graceEnd.Time
		sub.GracePeriodEnd = &t
	}
	return &sub, nil
}

func scanAllocation(row rowScanner) (*models.Allocation, error) {
	var a models.Allocation
	var status string
	var batchID, failureReason sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.ClientID, &a.ContentRef, &a.ScheduledDate, &a.ScheduledTime,
		&a.Platform, &a.CycleID, &batchID, &status, &a.IsFallback,
		&failureReason, &publishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan allocation: %w", err)
	}

	a.Status = models.AllocationStatus(status)
	a.BatchID = batchID.String
	a.FailureReason = failureReason.String
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
