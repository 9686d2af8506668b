package reactor

import (
	"time"

	"github.com/reactorcore/reactor/pkg/status"
)

// QueueOutboundCall is the cross-thread entry point application threads use
// to dispatch an RPC call. It never blocks on the reactor thread: it takes
// the outbound lock just long enough to append the call (or detect that the
// queue has been stopped), then, only if this push transitioned the queue
// from empty to non-empty, schedules the singleton drain task so concurrent
// pushes piggy-back on the already-scheduled drain instead of each
// re-triggering it.
func (r *Reactor) QueueOutboundCall(call OutboundCall) {
	r.outboundQueueLock.Lock()
	if r.outboundQueueStopped {
		r.outboundQueueLock.Unlock()
		call.Transferred(status.ShutdownError(true))
		return
	}
	wasEmpty := len(r.outboundQueue) == 0
	r.outboundQueue = append(r.outboundQueue, call)
	r.outboundQueueLock.Unlock()

	if wasEmpty {
		r.ScheduleReactorTask(r.processOutboundQueueTask)
	}
}

// processOutboundQueueTask is the singleton, re-schedulable drain task
// backing ProcessOutboundQueue.
type processOutboundQueueTask struct {
	r *Reactor
}

func (t *processOutboundQueueTask) Run(r *Reactor) {
	r.processOutboundQueue()
}

func (t *processOutboundQueueTask) Abort(s status.Status) {
	// The queue itself was already (or will be) drained and every call
	// inside it signalled Transferred(Aborted) by ShutdownInternal; the
	// drain task having no calls of its own to abort is a no-op here.
}

// processOutboundQueue swaps the shared queue into a local buffer,
// dispatches each call via AssignOutboundCall, and calls OutboundQueued
// exactly once per connection touched by the batch.
func (r *Reactor) processOutboundQueue() {
	r.outboundQueueLock.Lock()
	batch := r.outboundQueue
	r.outboundQueue = nil
	r.outboundQueueLock.Unlock()

	if len(batch) == 0 {
		return
	}

	var touched []Connection
	for _, call := range batch {
		if c := r.assignOutboundCall(call); c != nil {
			touched = append(touched, c)
		}
	}
	for _, c := range uniqueConnections(touched) {
		c.OutboundQueued()
	}
}

// assignOutboundCall computes the call's deadline, finds or starts the
// target connection, and queues the call on it. It returns the connection
// the call landed on, or nil if the call was failed instead.
func (r *Reactor) assignOutboundCall(call OutboundCall) Connection {
	timeout := call.Timeout()
	var deadline time.Time
	if timeout <= 0 {
		r.logger.Warnf("outbound call to %s has no deadline set, using max", call.ConnectionId())
		deadline = maxTime
	} else {
		deadline = time.Now().Add(timeout)
	}

	c, s := r.findOrStartConnection(call.ConnectionId(), deadline)
	if !s.IsOK() {
		call.SetFailed(s)
		return nil
	}

	if qerr := c.QueueOutboundCall(call); qerr != nil {
		call.SetFailed(status.New(status.NetworkError, qerr.Error(), 0))
		return nil
	}
	return c
}

// maxTime stands in for the original's MonoTime::Max() sentinel: an
// effectively-never deadline for calls that didn't configure a timeout.
var maxTime = time.Unix(1<<62, 0)
