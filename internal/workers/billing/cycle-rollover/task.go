package cyclerollover

import (
	"context"

	"content-scheduler/internal/common/clock"
	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/ledger"
	"content-scheduler/internal/models"
	"content-scheduler/internal/store"
)

const TaskName = "cycle-rollover"

// Task rolls billing cycles forward. It runs daily; the boundary check inside
// RollCycle makes a repeated run on the same day a no-op.
type Task struct {
	ledger *ledger.Ledger
	subs   store.SubscriptionStore
	clock  clock.Clock
	logger logger.Logger
}

func NewTask(l *ledger.Ledger, subs store.SubscriptionStore, clk clock.Clock, log logger.Logger) *Task {
	return &Task{
		ledger: l,
		subs:   subs,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"task": TaskName}),
	}
}

func (t *Task) Name() string { return TaskName }

// Run rolls every active subscription whose cycle ended before today. One bad
// client does not stop the sweep; the first error is reported after all
// clients were attempted.
func (t *Task) Run(ctx context.Context) error {
	today := models.DateOnly(t.clock.Now())

	due, err := t.subs.ListRolloverDue(ctx, today)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	t.logger.Info("rolling cycles", map[string]interface{}{"due": len(due)})

	var firstErr error
	for _, clientID := range due {
		if err := t.ledger.RollCycle(ctx, clientID); err != nil {
			t.logger.Error("rollover failed", map[string]interface{}{
				"clientId": clientID,
				"error":    err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
