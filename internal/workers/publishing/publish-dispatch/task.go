package publishdispatch

import (
	"context"

	"content-scheduler/internal/audit"
	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
	"content-scheduler/internal/models"
	"content-scheduler/internal/publisher"
	"content-scheduler/internal/store"
)

const TaskName = "publish-dispatch"

// Task pushes due allocations out through the Publisher. Runs every few
// minutes; an allocation is due when its scheduled date is today and its
// scheduled time has passed. Publish outcomes never touch quota.
type Task struct {
	allocs    store.AllocationStore
	publisher publisher.Publisher
	audit     *audit.Indexer
	clock     clock.Clock
	logger    logger.Logger
}

func NewTask(allocs store.AllocationStore, pub publisher.Publisher, auditor *audit.Indexer, clk clock.Clock, log logger.Logger) *Task {
	return &Task{
		allocs:    allocs,
		publisher: pub,
		audit:     auditor,
		clock:     clk,
		logger:    log.WithFields(map[string]interface{}{"task": TaskName}),
	}
}

func (t *Task) Name() string { return TaskName }

func (t *Task) Run(ctx context.Context) error {
	now := t.clock.Now()
	today := models.DateOnly(now)
	wallTime := now.UTC().Format(models.TimeLayout)

	due, err := t.allocs.ListPublishDue(ctx, today, wallTime)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	t.logger.Info("dispatching publications", map[string]interface{}{"due": len(due)})

	var firstErr error
	for _, alloc := range due {
		if err := t.dispatchOne(ctx, alloc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Task) dispatchOne(ctx context.Context, alloc *models.Allocation) error {
	now := t.clock.Now()

	if err := t.publisher.Publish(ctx, alloc); err != nil {
		metrics.PublishAttempts.WithLabelValues("failed").Inc()
		t.logger.Error("publish failed", map[string]interface{}{
			"allocationId": alloc.ID,
			"clientId":     alloc.ClientID,
			"error":        err.Error(),
		})
		t.audit.RecordPublication(ctx, alloc, "failed", err.Error(), now)

		if markErr := t.allocs.MarkPublishFailed(ctx, alloc.ID, err.Error()); markErr != nil {
			return markErr
		}
		// The failure itself is not an error for the sweep: the allocation
		// is parked as failed and waits for an explicit re-enqueue.
		return nil
	}

	metrics.PublishAttempts.WithLabelValues("published").Inc()
	t.audit.RecordPublication(ctx, alloc, "published", "", now)

	if err := t.allocs.MarkPublished(ctx, alloc.ID, now); err != nil {
		return err
	}

	t.logger.Info("publication sent", map[string]interface{}{
		"allocationId": alloc.ID,
		"clientId":     alloc.ClientID,
		"platform":     alloc.Platform,
	})
	return nil
}
