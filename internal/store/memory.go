// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"content-scheduler/internal/models"
)

// MemoryStore is the in-memory Store implementation, used by tests and
// single-node deployments without Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	subs       map[string]*models.Subscription
	allocs     map[string]*models.Allocation
	uniqueness map[string]string // uniqueness key -> allocation ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:       make(map[string]*models.Subscription),
		allocs:     make(map[string]*models.Allocation),
		uniqueness: make(map[string]string),
	}
}

// --- SubscriptionStore ---

func (m *MemoryStore) GetSubscription(ctx context.Context, clientID string) (*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) PutSubscription(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *sub
	m.subs[sub.ClientID] = &cp
	return nil
}

func (m *MemoryStore) ListRolloverDue(ctx context.Context, today time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := models.DateOnly(today)
	var due []string
	for id, sub := range m.subs {
		if sub.Status == models.SubscriptionActive && day.After(models.DateOnly(sub.CycleEnd)) {
			due = append(due, id)
		}
	}
	sort.Strings(due)
	return due, nil
}

func (m *MemoryStore) ListGraceExpired(ctx context.Context, today time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := models.DateOnly(today)
	var expired []string
	for id, sub := range m.subs {
		if sub.Status != models.SubscriptionActive || sub.PaymentStatus != models.PaymentFailed {
			continue
		}
		if sub.GracePeriodEnd != nil && day.After(models.DateOnly(*sub.GracePeriodEnd)) {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired, nil
}

// --- AllocationStore ---

func (m *MemoryStore) InsertAllocations(ctx context.Context, allocs []*models.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check the whole batch before touching anything: all-or-nothing.
	seen := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		key := a.UniquenessKey()
		if _, exists := m.uniqueness[key]; exists || seen[key] {
			return ErrDuplicate
		}
		seen[key] = true
	}

	for _, a := range allocs {
		cp := *a
		m.allocs[a.ID] = &cp
		m.uniqueness[a.UniquenessKey()] = a.ID
	}
	return nil
}

func (m *MemoryStore) GetAllocation(ctx context.Context, id string) (*models.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.allocs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) AllocationExists(ctx context.Context, clientID, contentRef, cycleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.uniqueness[clientID+"|"+contentRef+"|"+cycleID]
	return exists, nil
}

func (m *MemoryStore) ListCalendar(ctx context.Context, clientID string, from, to time.Time) ([]*models.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fromDay, toDay := models.DateOnly(from), models.DateOnly(to)
	var out []*models.Allocation
	for _, a := range m.allocs {
		if a.ClientID != clientID {
			continue
		}
		day := models.DateOnly(a.ScheduledDate)
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sortAllocations(out)
	return out, nil
}

func (m *MemoryStore) ListPublishDue(ctx context.Context, date time.Time, wallTime string) ([]*models.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	day := models.DateOnly(date)
	var due []*models.Allocation
	for _, a := range m.allocs {
		if a.Status != models.AllocationScheduled {
			continue
		}
		d := models.DateOnly(a.ScheduledDate)
		if d.After(day) {
			continue
		}
		// "HH:MM" compares lexicographically. Past-dated allocations are
		// overdue regardless of time (dispatcher downtime catch-up).
		if d.Equal(day) && a.ScheduledTime > wallTime {
			continue
		}
		cp := *a
		due = append(due, &cp)
	}
	sortAllocations(due)
	return due, nil
}

func (m *MemoryStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocs[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = models.AllocationPublished
	at := publishedAt
	a.PublishedAt = &at
	a.FailureReason = ""
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) MarkPublishFailed(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocs[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = models.AllocationFailed
	a.FailureReason = reason
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status models.AllocationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.allocs[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) SuspendScheduledAfter(ctx context.Context, clientID string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := models.DateOnly(cutoff)
	count := 0
	for _, a := range m.allocs {
		if a.ClientID != clientID || a.Status != models.AllocationScheduled {
			continue
		}
		if models.DateOnly(a.ScheduledDate).After(day) {
			a.Status = models.AllocationSuspended
			a.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ReactivateSuspendedFrom(ctx context.Context, clientID string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := models.DateOnly(cutoff)
	count := 0
	for _, a := range m.allocs {
		if a.ClientID != clientID || a.Status != models.AllocationSuspended {
			continue
		}
		if !models.DateOnly(a.ScheduledDate).Before(day) {
			a.Status = models.AllocationScheduled
			a.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func sortAllocations(allocs []*models.Allocation) {
	sort.Slice(allocs, func(i, j int) bool {
		di, dj := models.DateOnly(allocs[i].ScheduledDate), models.DateOnly(allocs[j].ScheduledDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if allocs[i].ScheduledTime != allocs[j].ScheduledTime {
			return allocs[i].ScheduledTime < allocs[j].ScheduledTime
		}
		return allocs[i].ID < allocs[j].ID
	})
}
