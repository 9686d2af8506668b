package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reactorcore/reactor/pkg/status"
)

func TestFunctorTaskRun(t *testing.T) {
	ran := false
	task := NewFunctorTask(func(r *Reactor) { ran = true })
	task.Run(nil)
	assert.True(t, ran)
}

func TestFunctorTaskAbortIsNoop(t *testing.T) {
	ran := false
	task := NewFunctorTask(func(r *Reactor) { ran = true })
	task.Abort(status.New(status.Aborted, "rejected", 0))
	assert.False(t, ran)
}

func TestRunOnReactorTaskWaitBlocksUntilRun(t *testing.T) {
	want := status.New(status.NetworkError, "failed", 0)
	task := newRunOnReactorTask(func(r *Reactor) status.Status { return want })

	done := make(chan status.Status, 1)
	go func() { done <- task.Wait() }()

	task.Run(nil)
	assert.Equal(t, want, <-done)
}

func TestRunOnReactorTaskWaitUnblocksOnAbort(t *testing.T) {
	task := newRunOnReactorTask(func(r *Reactor) status.Status { return status.OKStatus() })

	done := make(chan status.Status, 1)
	go func() { done <- task.Wait() }()

	want := status.ShutdownError(true)
	task.Abort(want)
	assert.Equal(t, want, <-done)
}
