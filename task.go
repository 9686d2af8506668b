package reactor

import (
	"sync"

	"github.com/reactorcore/reactor/pkg/status"
)

// Task is a unit of work posted onto the reactor thread. Exactly one of
// Run or Abort is invoked per successfully enqueued task -- Run when the
// reactor thread actually executes it, Abort when it is rejected at post
// time (closing already set) or discarded during shutdown drain.
//
// Run implementations must not block: the reactor thread has no other way
// to make progress while a Run call is in flight. A Task whose Run can run
// long should re-check Reactor.Closing() itself; none of the tasks in this
// package need to, since all are short, but the convention is documented
// here for callers adding their own.
type Task interface {
	Run(r *Reactor)
	Abort(status.Status)
}

// FunctorTask is a one-shot callable invoked on the reactor thread. It is
// the Task variant behind ScheduleReactorFunctor.
type FunctorTask struct {
	fn func(r *Reactor)
}

// NewFunctorTask wraps fn as a Task.
func NewFunctorTask(fn func(r *Reactor)) *FunctorTask {
	return &FunctorTask{fn: fn}
}

func (t *FunctorTask) Run(r *Reactor) {
	t.fn(r)
}

func (t *FunctorTask) Abort(status.Status) {
	// The functor never ran; there is nothing to undo and no caller
	// blocked on it (use runOnReactorTask for that).
}

// runOnReactorTask is a functor that returns a status, with a latch so a
// caller on a different thread can block until it completes. It backs
// Reactor.RunOnReactorThread.
type runOnReactorTask struct {
	fn  func(r *Reactor) status.Status
	wg  sync.WaitGroup
	out status.Status
}

func newRunOnReactorTask(fn func(r *Reactor) status.Status) *runOnReactorTask {
	t := &runOnReactorTask{fn: fn}
	t.wg.Add(1)
	return t
}

func (t *runOnReactorTask) Run(r *Reactor) {
	t.out = t.fn(r)
	t.wg.Done()
}

func (t *runOnReactorTask) Abort(s status.Status) {
	t.out = s
	t.wg.Done()
}

// Wait blocks until the task has run or been aborted and returns its
// result.
func (t *runOnReactorTask) Wait() status.Status {
	t.wg.Wait()
	return t.out
}
