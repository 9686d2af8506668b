package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactorcore/reactor/pkg/status"
)

func TestDelayedTaskFiresAfterDelay(t *testing.T) {
	r := newTestReactor(t)

	resultCh := make(chan status.Status, 1)
	task := NewDelayedTask(r.NextDelayedTaskID(), 30*time.Millisecond, func(s status.Status) {
		resultCh <- s
	})
	r.ScheduleDelayedTask(task)

	select {
	case s := <-resultCh:
		assert.True(t, s.IsOK())
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never fired")
	}
}

func TestDelayedTaskAbortPreventsFire(t *testing.T) {
	r := newTestReactor(t)

	var calls int32
	var delivered status.Status
	resultCh := make(chan status.Status, 1)
	task := NewDelayedTask(r.NextDelayedTaskID(), time.Hour, func(s status.Status) {
		atomic.AddInt32(&calls, 1)
		delivered = s
		resultCh <- s
	})
	r.ScheduleDelayedTask(task)

	// Give Run a moment to actually arm the timer before aborting it.
	time.Sleep(20 * time.Millisecond)
	task.Abort(status.New(status.Aborted, "cancelled", 0))

	select {
	case <-resultCh:
	case <-time.After(time.Second):
		t.Fatal("abort never delivered the callback")
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, status.Aborted, delivered.Code())
}

func TestDelayedTaskCallbackFiresExactlyOnce(t *testing.T) {
	r := newTestReactor(t)

	var calls int32
	task := NewDelayedTask(r.NextDelayedTaskID(), 15*time.Millisecond, func(status.Status) {
		atomic.AddInt32(&calls, 1)
	})
	r.ScheduleDelayedTask(task)

	// Abort races the timer fire; whichever wins, the callback must run
	// exactly once, never zero and never twice.
	time.Sleep(30 * time.Millisecond)
	task.Abort(status.New(status.Aborted, "too late", 0))
	time.Sleep(30 * time.Millisecond)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
