package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactorcore/reactor/pkg/status"
)

func newTestOutboundReactor() *Reactor {
	r := &Reactor{
		connectionTable: newConnectionTable(),
		logger:          testLogger{},
	}
	return r
}

func TestAssignOutboundCallRoutesToCachedConnection(t *testing.T) {
	r := newTestOutboundReactor()
	id := NewConnectionId("10.0.0.1:1", "u", 0)
	c := newFakeConnection(Client, "10.0.0.1:1")
	r.clientConns[id] = c

	call := newFakeOutboundCall(id, time.Second)
	got := r.assignOutboundCall(call)

	assert.Equal(t, Connection(c), got)
	failed, transferred, st := call.result()
	assert.False(t, failed)
	assert.True(t, transferred)
	assert.True(t, st.IsOK())
}

func TestAssignOutboundCallDefaultsDeadlineWhenTimeoutUnset(t *testing.T) {
	r := newTestOutboundReactor()
	id := NewConnectionId("10.0.0.1:1", "u", 0)
	c := newFakeConnection(Client, "10.0.0.1:1")
	r.clientConns[id] = c

	call := newFakeOutboundCall(id, 0)
	got := r.assignOutboundCall(call)

	require.NotNil(t, got)
	_, transferred, _ := call.result()
	assert.True(t, transferred)
}

func TestAssignOutboundCallFailsWhenConnectionRejects(t *testing.T) {
	r := newTestOutboundReactor()
	id := NewConnectionId("10.0.0.1:1", "u", 0)
	c := newFakeConnection(Client, "10.0.0.1:1")
	c.queueErr = errConnectionClosed
	r.clientConns[id] = c

	call := newFakeOutboundCall(id, time.Second)
	got := r.assignOutboundCall(call)

	assert.Nil(t, got)
	failed, _, st := call.result()
	assert.True(t, failed)
	assert.Equal(t, status.NetworkError, st.Code())
}

func TestProcessOutboundQueueCallsOutboundQueuedOncePerConnection(t *testing.T) {
	r := newTestOutboundReactor()
	id := NewConnectionId("10.0.0.1:1", "u", 0)
	c := newFakeConnection(Client, "10.0.0.1:1")
	r.clientConns[id] = c

	r.outboundQueue = []OutboundCall{
		newFakeOutboundCall(id, time.Second),
		newFakeOutboundCall(id, time.Second),
		newFakeOutboundCall(id, time.Second),
	}

	r.processOutboundQueue()

	assert.Equal(t, 1, c.outboundQueued)
}

func TestQueueOutboundCallAfterStopRejectsImmediately(t *testing.T) {
	r := newTestOutboundReactor()
	r.outboundQueueStopped = true

	id := NewConnectionId("10.0.0.1:1", "u", 0)
	call := newFakeOutboundCall(id, time.Second)
	r.QueueOutboundCall(call)

	_, transferred, st := call.result()
	assert.True(t, transferred)
	assert.Equal(t, status.Aborted, st.Code())
}

// testLogger is a no-op logging.Logger used where a test Reactor is built
// by hand rather than through New/Init.
type testLogger struct{}

func (testLogger) Debugf(string, ...interface{}) {}
func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Warnf(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}
func (testLogger) Fatalf(string, ...interface{}) {}
