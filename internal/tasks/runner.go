// internal/tasks/runner.go
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"content-scheduler/internal/common/logger"
	"content-scheduler/internal/common/metrics"
	"content-scheduler/internal/common/observability"
)

// Task is one unit of periodic work. Run must be safe to invoke repeatedly
// and tolerate overlap with request handlers touching the same clients.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner drives a Task on a fixed interval until stopped. Each task gets its
// own Runner; they share nothing, so one slow task never delays another.
type Runner struct {
	task     Task
	interval time.Duration
	logger   logger.Logger
	obs      *observability.Observability

	stopCh chan struct{}
	doneWg sync.WaitGroup
	once   sync.Once
}

func NewRunner(task Task, interval time.Duration, log logger.Logger, obs *observability.Observability) *Runner {
	return &Runner{
		task:     task,
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"task": task.Name()}),
		obs:      obs,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the loop. The task runs once immediately, then on every
// tick. Returns right away; use Stop to shut down.
func (r *Runner) Start(ctx context.Context) {
	r.doneWg.Add(1)
	go func() {
		defer r.doneWg.Done()

		r.runOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runOnce(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	r.logger.Info("task runner started", map[string]interface{}{"interval": r.interval.String()})
}

// Stop halts the loop and waits for an in-flight run to finish.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.doneWg.Wait()
	r.logger.Info("task runner stopped", nil)
}

func (r *Runner) runOnce(ctx context.Context) {
	start := time.Now()
	err := r.safeRun(ctx)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		r.logger.Error("task run failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": elapsed.String(),
		})
	}

	metrics.TaskRuns.WithLabelValues(r.task.Name(), outcome).Inc()
	metrics.TaskRunDuration.WithLabelValues(r.task.Name()).Observe(elapsed.Seconds())
	if r.obs != nil {
		r.obs.RecordTaskRun(ctx, r.task.Name(), outcome)
		r.obs.RecordTaskDuration(ctx, r.task.Name(), elapsed, outcome)
	}
}

// safeRun contains a panicking task so one bad run cannot kill the loop.
func (r *Runner) safeRun(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return r.task.Run(ctx)
}
