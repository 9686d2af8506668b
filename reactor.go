package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/RussellLuo/timingwheel"
	"golang.org/x/sync/errgroup"

	"github.com/reactorcore/reactor/internal/netpoll"
	"github.com/reactorcore/reactor/internal/spinlock"
	"github.com/reactorcore/reactor/pkg/logging"
	"github.com/reactorcore/reactor/pkg/status"
)

// Reactor is a single-threaded event-loop I/O worker owning a disjoint set
// of connections. All fields below the connectionTable embed are either
// immutable after New, or guarded by the spinlocks named in their comments;
// connectionTable's fields are reactor-thread-only.
type Reactor struct {
	connectionTable

	name      string
	index     int
	options   *Options
	messenger Messenger
	logger    logging.Logger

	loop            *eventLoop
	timingWheel     *timingwheel.TimingWheel
	negotiationPool NegotiationPool
	ownsNegPool     bool

	pendingTasksLock spinlock.SpinLock
	pendingTasks     []Task
	closing          bool // guarded by pendingTasksLock

	outboundQueueLock    spinlock.SpinLock
	outboundQueue        []OutboundCall
	outboundQueueStopped bool // guarded by outboundQueueLock

	processOutboundQueueTask *processOutboundQueueTask

	stopping bool // reactor-thread only

	nextDelayedTaskID uint64 // reactor-thread only

	group *errgroup.Group

	initOnce sync.Once
	initErr  error

	stopOnce sync.Once
}

// New constructs a Reactor bound to messenger, identified by index within
// the fleet. Init must be called before the reactor does any work.
func New(messenger Messenger, index int, opts ...Option) *Reactor {
	options := initOptions(opts...)
	r := &Reactor{
		name:            fmt.Sprintf("reactor-%d", index),
		index:           index,
		options:         options,
		messenger:       messenger,
		logger:          options.Logger,
		connectionTable: newConnectionTable(),
		timingWheel:     timingwheel.NewTimingWheel(10*time.Millisecond, 512),
	}
	r.processOutboundQueueTask = &processOutboundQueueTask{r: r}
	return r
}

// Name returns the reactor's human-readable name.
func (r *Reactor) Name() string { return r.name }

// Init creates the event-loop goroutine, arms the wake mechanism and the
// coarse periodic timer, and starts the negotiation pool. It may only be
// called once; subsequent calls return the first call's result.
func (r *Reactor) Init() error {
	r.initOnce.Do(func() {
		r.initErr = r.init()
	})
	return r.initErr
}

func (r *Reactor) init() error {
	poller, err := netpoll.OpenPoller()
	if err != nil {
		return fmt.Errorf("reactor: open poller: %w", err)
	}
	if err := poller.ArmTimer(r.options.CoarseTimerGranularity); err != nil {
		_ = poller.Close()
		return fmt.Errorf("reactor: arm coarse timer: %w", err)
	}
	r.loop = &eventLoop{poller: poller}

	switch {
	case r.options.NegotiationPool != nil:
		r.negotiationPool = r.options.NegotiationPool
	case r.messenger.NegotiationPool() != nil:
		// The messenger owns a pool shared across every reactor in its
		// fleet; prefer it over starting a redundant per-reactor one.
		r.negotiationPool = r.messenger.NegotiationPool()
	default:
		pool, err := NewAntsNegotiationPool(r.options.NegotiationPoolCapacity)
		if err != nil {
			_ = poller.Close()
			return fmt.Errorf("reactor: start negotiation pool: %w", err)
		}
		r.negotiationPool = pool
		r.ownsNegPool = true
	}

	r.timingWheel.Start()

	g := &errgroup.Group{}
	g.Go(r.runLoop)
	r.group = g

	return nil
}

// runLoop is the reactor's single goroutine: it parks in the poller,
// servicing connection readiness, the wake eventfd (pending task drain),
// and the coarse timer tick (scheduled-task bookkeeping is driven entirely
// through tasks, so the tick callback here only needs to run the idle scan
// and check for shutdown completion).
func (r *Reactor) runLoop() error {
	err := r.loop.poller.Polling(r.onConnectionReady, r.onWake, r.onTick)
	if err != nil && err != errLoopStopped {
		r.logger.Errorf("%s: event loop exited: %v", r.name, err)
		return err
	}
	return nil
}

// errLoopStopped is returned by the poller callbacks to unwind Polling once
// shutdown has drained waiting_conns; it is not a real failure.
var errLoopStopped = fmt.Errorf("reactor: loop stopped")

func (r *Reactor) onConnectionReady(fd int, readable, writable bool) error {
	// Per-connection read/write servicing is dispatched by the connection
	// implementation itself in a fuller build; wire-level framing is out
	// of scope for this reactor, so readiness events only need to keep
	// the loop alive and let QueueOutboundData/OutboundQueued bookkeeping
	// (already handled at queue time) stay consistent.
	return nil
}

func (r *Reactor) onWake() error {
	return r.drainPendingTasks()
}

func (r *Reactor) onTick() error {
	if r.stopping {
		return r.checkReadyToStop()
	}
	r.scanIdleConnections(time.Now(), r.options.ConnectionKeepaliveTime)
	return nil
}

// drainPendingTasks swaps pending_tasks into a local buffer under the lock,
// then, outside the lock, runs each task. If closing was observed while
// swapping, ShutdownInternal runs instead of the drained tasks -- they were
// already aborted at post time, or will be aborted by ShutdownInternal.
func (r *Reactor) drainPendingTasks() error {
	r.pendingTasksLock.Lock()
	closingNow := r.closing
	batch := r.pendingTasks
	r.pendingTasks = nil
	r.pendingTasksLock.Unlock()

	if closingNow && !r.stopping {
		r.shutdownInternal(batch)
		return r.checkReadyToStop()
	}

	for _, t := range batch {
		t.Run(r)
	}
	if r.stopping {
		return r.checkReadyToStop()
	}
	return nil
}

// ScheduleReactorTask posts t to the reactor thread. If the reactor is
// already closing, t.Abort is invoked synchronously by the calling thread
// instead, after the lock is released -- Abort never runs while the lock
// is held.
func (r *Reactor) ScheduleReactorTask(t Task) {
	r.pendingTasksLock.Lock()
	if r.closing {
		r.pendingTasksLock.Unlock()
		t.Abort(status.ShutdownError(true))
		return
	}
	r.pendingTasks = append(r.pendingTasks, t)
	r.pendingTasksLock.Unlock()

	if err := r.loop.poller.Wake(); err != nil {
		r.logger.Errorf("%s: wake failed: %v", r.name, err)
	}
}

// ScheduleReactorFunctor is shorthand for ScheduleReactorTask(NewFunctorTask(fn)).
func (r *Reactor) ScheduleReactorFunctor(fn func(r *Reactor)) {
	r.ScheduleReactorTask(NewFunctorTask(fn))
}

// RunOnReactorThread posts fn to the reactor thread and blocks until it
// completes (or is aborted), returning its status.
func (r *Reactor) RunOnReactorThread(fn func(r *Reactor) status.Status) status.Status {
	t := newRunOnReactorTask(fn)
	r.ScheduleReactorTask(t)
	return t.Wait()
}

// ScheduleDelayedTask arms t on the reactor thread.
func (r *Reactor) ScheduleDelayedTask(t *DelayedTask) {
	r.ScheduleReactorTask(t)
}

// NextDelayedTaskID hands out a fresh id for a caller building a
// DelayedTask; it is only ever called from the reactor thread (by
// convention -- callers typically request it from inside a
// ScheduleReactorFunctor if they need uniqueness across concurrent
// schedulers).
func (r *Reactor) NextDelayedTaskID() DelayedTaskId {
	r.nextDelayedTaskID++
	return DelayedTaskId(r.nextDelayedTaskID)
}

// notifyDelayedTaskComplete reports a delayed task's id as complete to the
// messenger, if it chooses to track that; in this module it is a
// reactor-thread-only hook kept minimal since per-call bookkeeping of that
// kind lives in the messenger, not the reactor.
func (r *Reactor) notifyDelayedTaskComplete(DelayedTaskId) {}

// Closing reports whether Shutdown has been observed. Safe to call from any
// thread.
func (r *Reactor) Closing() bool {
	r.pendingTasksLock.Lock()
	defer r.pendingTasksLock.Unlock()
	return r.closing
}

// Shutdown requests an orderly shutdown from any thread and blocks until the
// event loop has exited. It is idempotent: a second call observes closing
// already set, skips the wake, and waits for the same stop as the first.
func (r *Reactor) Shutdown() error {
	r.pendingTasksLock.Lock()
	if r.closing {
		r.pendingTasksLock.Unlock()
		return r.waitForStop()
	}
	r.closing = true
	r.pendingTasksLock.Unlock()

	if err := r.loop.poller.Wake(); err != nil {
		r.logger.Errorf("%s: wake failed during shutdown: %v", r.name, err)
	}
	return r.waitForStop()
}

func (r *Reactor) waitForStop() error {
	if r.group == nil {
		return nil
	}
	err := r.group.Wait()
	r.stopOnce.Do(func() {
		r.timingWheel.Stop()
		if r.ownsNegPool {
			r.negotiationPool.Release()
		}
		_ = r.loop.poller.Close()
	})
	return err
}

// shutdownInternal runs exactly once, on the reactor thread, the first time
// drainPendingTasks observes closing. drained is whatever batch of pending
// tasks had already been swapped out of pending_tasks before closing was
// noticed; every entry in it that hasn't run yet is aborted rather than
// run.
func (r *Reactor) shutdownInternal(drained []Task) {
	r.stopping = true

	for id, c := range r.clientConns {
		c.Shutdown(status.ShutdownError(false))
		if !c.Context().ReadyToStop() {
			r.waitingConns = append(r.waitingConns, c)
		}
		delete(r.clientConns, id)
	}

	for _, c := range r.serverConns {
		c.Shutdown(status.ShutdownError(false))
		if !c.Context().ReadyToStop() {
			r.waitingConns = append(r.waitingConns, c)
		}
	}
	r.serverConns = nil

	for id, t := range r.scheduledTasks {
		t.Abort(status.ShutdownError(false))
		delete(r.scheduledTasks, id)
	}

	for _, t := range drained {
		t.Abort(status.ShutdownError(true))
	}

	r.outboundQueueLock.Lock()
	r.outboundQueueStopped = true
	pending := r.outboundQueue
	r.outboundQueue = nil
	r.outboundQueueLock.Unlock()

	for _, call := range pending {
		call.Transferred(status.ShutdownError(true))
	}
}

// checkReadyToStop filters waiting_conns down to those not yet
// ReadyToStop; once empty, it unwinds the event loop by returning
// errLoopStopped from the poller callback chain.
func (r *Reactor) checkReadyToStop() error {
	if !r.stopping {
		return nil
	}
	var still []Connection
	for _, c := range r.waitingConns {
		if !c.Context().ReadyToStop() {
			still = append(still, c)
		}
	}
	r.waitingConns = still
	if len(r.waitingConns) == 0 {
		return errLoopStopped
	}
	return nil
}

// completeConnectionNegotiation runs on the reactor thread after the
// negotiation pool reports completion for c. On error the connection is
// destroyed; on success the socket returns to non-blocking mode, the
// connection is marked negotiation-complete, and it is registered with the
// event loop.
func (r *Reactor) completeConnectionNegotiation(c Connection, s status.Status) {
	if !s.IsOK() {
		r.destroyConnection(c, s)
		return
	}
	if err := c.SetNonBlocking(true); err != nil {
		r.destroyConnection(c, status.New(status.NetworkError, err.Error(), 0))
		return
	}
	c.MarkNegotiationComplete()
	if err := c.EpollRegister(r.loop); err != nil {
		r.destroyConnection(c, status.New(status.NetworkError, err.Error(), 0))
	}
}

// QueueEventOnAllConnections schedules a reactor functor that queues event
// on every server connection -- used by the messenger to broadcast, e.g., a
// shutdown notice ahead of a graceful drain.
func (r *Reactor) QueueEventOnAllConnections(event []byte) {
	r.ScheduleReactorFunctor(func(r *Reactor) {
		r.queueEventOnAllConnections(event)
	})
}

// DropWithRemoteAddress shuts down every connection (both directions) whose
// peer host matches addr.
func (r *Reactor) DropWithRemoteAddress(addr string) {
	r.ScheduleReactorFunctor(func(r *Reactor) {
		r.dropWithRemoteAddress(addr)
	})
}

// RunningRpcsSummary is DumpRunningRpcs' reactor-scope report: per-call
// introspection is out of scope (call bodies aren't modeled here), so this
// reports connection counts by direction, which is enough to exercise the
// blocking round-trip primitive the original operation is built on.
type RunningRpcsSummary struct {
	ClientConnections int
	ServerConnections int
}

// DumpRunningRpcs blocks until the reactor thread has sampled a running
// summary.
func (r *Reactor) DumpRunningRpcs() RunningRpcsSummary {
	var out RunningRpcsSummary
	_ = r.RunOnReactorThread(func(r *Reactor) status.Status {
		out.ClientConnections = len(r.clientConns)
		out.ServerConnections = len(r.serverConns)
		return status.OKStatus()
	})
	return out
}
