// Package spinlock implements the two guard locks the reactor takes on its
// hot cross-thread paths: the pending-task queue and the outbound-call
// queue. Both are held only long enough to append or swap a slice, so a
// spinning lock with exponential back-off beats a mutex's syscall-capable
// slow path under contention.
package spinlock

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// SpinLock is a sync.Locker backed by a CAS loop with exponential back-off,
// the same shape gnet benchmarks as backOffSpinLock.
type SpinLock uint32

// New returns a ready-to-use spinlock.
func New() *SpinLock {
	return new(SpinLock)
}

func (sl *SpinLock) Lock() {
	wait := 1
	for !atomic.CompareAndSwapUint32((*uint32)(sl), 0, 1) {
		for i := 0; i < wait; i++ {
			runtime.Gosched()
		}
		if wait < 1024 {
			wait <<= 1
		}
	}
}

func (sl *SpinLock) Unlock() {
	atomic.StoreUint32((*uint32)(sl), 0)
}

var _ sync.Locker = (*SpinLock)(nil)
