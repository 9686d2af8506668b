package reactor

import (
	"sync"
	"time"

	"github.com/RussellLuo/timingwheel"

	"github.com/reactorcore/reactor/pkg/status"
)

// DelayedTaskId identifies an armed delayed task for cancellation and for
// the completion notification the reactor sends back to the messenger.
type DelayedTaskId uint64

// DelayedTask is a one-shot callback scheduled to run after a delay, bound
// to the reactor's own timer wheel. Run arms the timer (it must be called
// on the reactor thread, from the async handler, exactly like every other
// Task); Abort may be called from any thread and races Run's eventual timer
// fire for which one invokes the user callback -- exactly one does.
type DelayedTask struct {
	id       DelayedTaskId
	delay    time.Duration
	callback func(status.Status)

	mu   sync.Mutex
	done bool
	r    *Reactor
	wt   *timingwheel.Timer
}

// NewDelayedTask builds a DelayedTask. Pass it to
// Reactor.ScheduleReactorTask (or ScheduleDelayedTask) to arm it.
func NewDelayedTask(id DelayedTaskId, delay time.Duration, callback func(status.Status)) *DelayedTask {
	return &DelayedTask{id: id, delay: delay, callback: callback}
}

// ID reports the task's identifier.
func (t *DelayedTask) ID() DelayedTaskId { return t.id }

// Run arms the task's timer against the reactor's wheel and inserts it into
// scheduled_tasks. If the task was aborted before Run got a chance to
// execute (concurrent Abort beat the post), it returns without arming,
// matching the original's "check done before arming" rule.
func (t *DelayedTask) Run(r *Reactor) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.r = r
	t.wt = r.timingWheel.AfterFunc(t.delay, func() { t.fire() })
	t.mu.Unlock()

	r.scheduledTasks[t.id] = t
}

// Abort may be called from any thread. It wins the race against a
// concurrent timer fire by marking done first; the loser's side effect
// (timer fire, or this Abort) is the one that never runs the callback.
func (t *DelayedTask) Abort(s status.Status) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	wt := t.wt
	r := t.r
	t.mu.Unlock()

	if wt != nil {
		wt.Stop()
	}
	if r != nil {
		// Best-effort reactor-thread cleanup of scheduled_tasks; a
		// concurrent Shutdown sweep may already have cleared the set, in
		// which case this is a harmless no-op. Unlike the fire path below,
		// no callback guarantee is needed here: Abort itself delivers s below.
		r.ScheduleReactorFunctor(func(r *Reactor) {
			delete(r.scheduledTasks, t.id)
		})
	}
	t.callback(s)
}

// fire runs on the timingwheel's own goroutine. It only ever posts a task
// back onto the reactor thread to perform the actual bookkeeping: the
// wheel's goroutine must never touch scheduled_tasks directly, since every
// mutation of that set is a reactor-thread-only invariant.
func (t *DelayedTask) fire() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	r := t.r
	t.mu.Unlock()

	if r == nil {
		return
	}
	r.ScheduleReactorTask(&delayedTaskFireTask{t: t})
}

// delayedTaskFireTask delivers the fire-path completion. The timer already
// elapsed for real by the time this is posted, so even if the reactor
// rejects it (Abort, because closing raced the fire), the user callback
// still receives Ok -- Abort on this task type is not "the timer never
// ran", it only means the reactor thread never got to run the bookkeeping.
type delayedTaskFireTask struct {
	t *DelayedTask
}

func (f *delayedTaskFireTask) Run(r *Reactor) {
	delete(r.scheduledTasks, f.t.id)
	r.notifyDelayedTaskComplete(f.t.id)
	f.t.callback(status.OKStatus())
}

func (f *delayedTaskFireTask) Abort(status.Status) {
	f.t.callback(status.OKStatus())
}
