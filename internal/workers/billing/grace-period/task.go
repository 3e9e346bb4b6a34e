package graceperiod

import (
	"context"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/notifier"
	"content-scheduler/internal/store"
)

const TaskName = "grace-period"

// Task suspends subscriptions whose grace period has lapsed. Reactivation is
// not this task's job: it happens synchronously when a payment success event
// arrives.
type Task struct {
	ledger   *ledger.Ledger
	subs     store.SubscriptionStore
	notifier notifier.Notifier
	clock    clock.Clock
	logger   logger.Logger
}

func NewTask(l *ledger.Ledger, subs store.SubscriptionStore, notify notifier.Notifier, clk clock.Clock, log logger.Logger) *Task {
	return &Task{
		ledger:   l,
		subs:     subs,
		notifier: notify,
		clock:    clk,
		logger:   log.WithFields(map[string]interface{}{"task": TaskName}),
	}
}

func (t *Task) Name() string { return TaskName }

func (t *Task) Run(ctx context.Context) error {
	today := models.DateOnly(t.clock.Now())

	expired, err := t.subs.ListGraceExpired(ctx, today)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	t.logger.Info("enforcing grace periods", map[string]interface{}{"expired": len(expired)})

	var firstErr error
	for _, clientID := range expired {
		n, err := t.ledger.Suspend(ctx, clientID)
		if err != nil {
			t.logger.Error("suspension failed", map[string]interface{}{
				"clientId": clientID,
				"error":    err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if sub, err := t.ledger.Get(ctx, clientID); err == nil && sub.Status == models.SubscriptionSuspended {
			t.notifier.NotifySuspended(ctx, sub, n)
		}
	}
	return firstErr
}
