// internal/tasks/runner_test.go
package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"content-scheduler/internal/common/logger"
)

type countingTask struct {
	name string
	runs int64
	fn   func() error
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Run(ctx context.Context) error {
	atomic.AddInt64(&c.runs, 1)
	if c.fn != nil {
		return c.fn()
	}
	return nil
}

func waitForRuns(t *testing.T, task *countingTask, want int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if atomic.LoadInt64(&task.runs) >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("task ran %d times, want at least %d", atomic.LoadInt64(&task.runs), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunner_RunsImmediatelyAndOnTick(t *testing.T) {
	task := &countingTask{name: "test-task"}
	r := NewRunner(task, 20*time.Millisecond, logger.NewTestLogger(t), nil)

	r.Start(context.Background())
	waitForRuns(t, task, 3)
	r.Stop()
}

func TestRunner_StopHaltsLoop(t *testing.T) {
	task := &countingTask{name: "test-task"}
	r := NewRunner(task, 10*time.Millisecond, logger.NewTestLogger(t), nil)

	r.Start(context.Background())
	waitForRuns(t, task, 1)
	r.Stop()

	after := atomic.LoadInt64(&task.runs)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&task.runs), "no runs after Stop")
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	task := &countingTask{name: "test-task"}
	r := NewRunner(task, time.Hour, logger.NewTestLogger(t), nil)

	r.Start(context.Background())
	waitForRuns(t, task, 1)
	r.Stop()
	r.Stop()
}

func TestRunner_SurvivesErrorsAndPanics(t *testing.T) {
	var mode int64
	task := &countingTask{
		name: "flaky-task",
		fn: func() error {
			switch atomic.AddInt64(&mode, 1) {
			case 1:
				return errors.New("transient failure")
			case 2:
				panic("boom")
			default:
				return nil
			}
		},
	}
	r := NewRunner(task, 10*time.Millisecond, logger.NewTestLogger(t), nil)

	r.Start(context.Background())
	waitForRuns(t, task, 4)
	r.Stop()
}

func TestRunner_ContextCancelHaltsLoop(t *testing.T) {
	task := &countingTask{name: "test-task"}
	r := NewRunner(task, 10*time.Millisecond, logger.NewTestLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	waitForRuns(t, task, 1)
	cancel()

	time.Sleep(30 * time.Millisecond)
	after := atomic.LoadInt64(&task.runs)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt64(&task.runs), after+1)
}
