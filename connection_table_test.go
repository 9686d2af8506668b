package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactorcore/reactor/pkg/status"
)

func newTestConnectionTableReactor() *Reactor {
	r := &Reactor{connectionTable: newConnectionTable()}
	return r
}

func TestScanIdleConnectionsReapsExpiredServerConnections(t *testing.T) {
	r := newTestConnectionTableReactor()

	fresh := newFakeConnection(Server, "10.0.0.1:1")
	stale := newFakeConnection(Server, "10.0.0.1:2")
	stale.setLastActivity(time.Now().Add(-time.Hour))
	busy := newFakeConnection(Server, "10.0.0.1:3")
	busy.setLastActivity(time.Now().Add(-time.Hour))
	busy.setIdle(false)

	r.serverConns = []Connection{fresh, stale, busy}

	r.scanIdleConnections(time.Now(), 10*time.Minute)

	require.Len(t, r.serverConns, 2)
	assert.Contains(t, r.serverConns, Connection(fresh))
	assert.Contains(t, r.serverConns, Connection(busy))
	assert.Equal(t, 1, stale.shutdownCalls)
	assert.Equal(t, 0, fresh.shutdownCalls)
	assert.Equal(t, 0, busy.shutdownCalls)
}

func TestScanIdleConnectionsIgnoresClientConnections(t *testing.T) {
	r := newTestConnectionTableReactor()

	staleClient := newFakeConnection(Client, "10.0.0.1:1")
	staleClient.setLastActivity(time.Now().Add(-time.Hour))
	id := NewConnectionId("10.0.0.1:1", "u", 0)
	r.clientConns[id] = staleClient

	r.scanIdleConnections(time.Now(), 10*time.Minute)

	assert.Equal(t, 0, staleClient.shutdownCalls)
	assert.Contains(t, r.clientConns, id)
}

func TestDestroyConnectionRemovesServerConnection(t *testing.T) {
	r := newTestConnectionTableReactor()
	c := newFakeConnection(Server, "10.0.0.1:1")
	r.serverConns = []Connection{c}

	r.destroyConnection(c, status.New(status.NetworkError, "closed", 0))

	assert.Empty(t, r.serverConns)
	assert.Equal(t, 1, c.shutdownCalls)
}

func TestDestroyConnectionSweepsAllClientIndices(t *testing.T) {
	r := newTestConnectionTableReactor()
	c := newFakeConnection(Client, "10.0.0.1:1")
	idA := NewConnectionId("10.0.0.1:1", "u", 0)
	idB := NewConnectionId("10.0.0.1:1", "u", 1)
	r.clientConns[idA] = c
	r.clientConns[idB] = c

	r.destroyConnection(c, status.New(status.NetworkError, "closed", 0))

	assert.NotContains(t, r.clientConns, idA)
	assert.NotContains(t, r.clientConns, idB)
}

func TestDestroyConnectionPanicsWhenClientConnectionMissing(t *testing.T) {
	r := newTestConnectionTableReactor()
	c := newFakeConnection(Client, "10.0.0.1:1")

	assert.Panics(t, func() {
		r.destroyConnection(c, status.New(status.NetworkError, "closed", 0))
	})
}

func TestQueueEventOnAllConnectionsBroadcastsToServerConnsOnly(t *testing.T) {
	r := newTestConnectionTableReactor()
	s1 := newFakeConnection(Server, "10.0.0.1:1")
	s2 := newFakeConnection(Server, "10.0.0.1:2")
	clientOnly := newFakeConnection(Client, "10.0.0.1:3")
	r.serverConns = []Connection{s1, s2}
	r.clientConns[NewConnectionId("10.0.0.1:3", "u", 0)] = clientOnly

	r.queueEventOnAllConnections([]byte("ping"))

	assert.Equal(t, [][]byte{[]byte("ping")}, s1.queuedData)
	assert.Equal(t, [][]byte{[]byte("ping")}, s2.queuedData)
	assert.Equal(t, 1, s1.outboundQueued)
	assert.Equal(t, 1, s2.outboundQueued)
	assert.Empty(t, clientOnly.queuedData)
}

func TestUniqueConnectionsDedupsPreservingMembership(t *testing.T) {
	a := newFakeConnection(Server, "10.0.0.1:1")
	b := newFakeConnection(Server, "10.0.0.1:2")

	got := uniqueConnections([]Connection{a, a, b, a, b})

	assert.Len(t, got, 2)
	assert.Contains(t, got, Connection(a))
	assert.Contains(t, got, Connection(b))
}

func TestDropWithRemoteAddressMatchesHostAcrossDirections(t *testing.T) {
	r := newTestConnectionTableReactor()
	serverHit := newFakeConnection(Server, "10.0.0.1:9999")
	serverMiss := newFakeConnection(Server, "10.0.0.2:9999")
	clientHit := newFakeConnection(Client, "10.0.0.1:1234")
	r.serverConns = []Connection{serverHit, serverMiss}
	r.clientConns[NewConnectionId("10.0.0.1:1234", "u", 0)] = clientHit

	r.dropWithRemoteAddress("10.0.0.1")

	assert.Equal(t, 1, serverHit.shutdownCalls)
	assert.Equal(t, 0, serverMiss.shutdownCalls)
	assert.Equal(t, 1, clientHit.shutdownCalls)
}
