package reactor

import (
	"fmt"
	"time"

	"github.com/reactorcore/reactor/pkg/pool/bytebuffer"
	"github.com/reactorcore/reactor/pkg/status"
)

// connectionTable holds every collection the reactor thread alone mutates:
// client_conns, server_conns, waiting_conns and scheduled_tasks from the
// data model. It is embedded directly in Reactor rather than split into its
// own struct with its own lock, since every field here is reactor-thread
// -only -- a separate lock would be redundant with that invariant.
type connectionTable struct {
	clientConns    map[ConnectionId]Connection
	serverConns    []Connection
	waitingConns   []Connection
	scheduledTasks map[DelayedTaskId]*DelayedTask
}

func newConnectionTable() connectionTable {
	return connectionTable{
		clientConns:    make(map[ConnectionId]Connection),
		scheduledTasks: make(map[DelayedTaskId]*DelayedTask),
	}
}

// registerServerConnection appends c to server_conns. Duplicates are
// impossible: every server connection originates from a distinct accepted
// socket.
func (r *Reactor) registerServerConnection(c Connection) {
	r.serverConns = append(r.serverConns, c)
}

// registerClientConnection installs c under id. Callers must have already
// checked FindOrStartConnection's cache to avoid clobbering a live entry.
func (r *Reactor) registerClientConnection(id ConnectionId, c Connection) {
	r.clientConns[id] = c
}

// destroyConnection removes c from whichever collection it belongs to.
// For a client connection it must sweep all indices sharing (remote, creds)
// because the caller does not necessarily know which index c was
// registered under; finding none is a fatal invariant violation, mirroring
// the original implementation's CHECK.
func (r *Reactor) destroyConnection(c Connection, s status.Status) {
	c.Shutdown(s)

	switch c.Direction() {
	case Server:
		for i, sc := range r.serverConns {
			if sc == c {
				r.serverConns = append(r.serverConns[:i], r.serverConns[i+1:]...)
				return
			}
		}
	case Client:
		removed := false
		for id, cc := range r.clientConns {
			if cc == c {
				delete(r.clientConns, id)
				removed = true
			}
		}
		if !removed {
			panic(fmt.Sprintf("reactor: destroyConnection could not find client connection %v in any index", c.Remote()))
		}
		return
	}
}

// scanIdleConnections runs on every coarse-timer tick. It reaps server
// connections idle for longer than keepalive; client-side idle timeout is
// intentionally not enforced here (per-call deadlines are the client's only
// liveness mechanism), and this function must never be pointed at
// clientConns.
func (r *Reactor) scanIdleConnections(now time.Time, keepalive time.Duration) {
	var survivors []Connection
	for _, c := range r.serverConns {
		if c.Idle() {
			delta := now.Sub(c.LastActivityTime())
			if delta > keepalive {
				c.Shutdown(status.New(status.NetworkError,
					fmt.Sprintf("connection timed out after %s", delta), 0))
				continue
			}
		}
		survivors = append(survivors, c)
	}
	r.serverConns = survivors
}

// dropWithRemoteAddress shuts down every connection (both directions) whose
// peer host matches addr. Connection.Shutdown reports no error, so the sweep
// always visits every connection.
func (r *Reactor) dropWithRemoteAddress(addr string) {
	shutdownIfMatch := func(c Connection) {
		if c.Remote() != nil && hostOf(c.Remote().String()) == addr {
			c.Shutdown(status.New(status.NetworkError, "dropped by remote address", 0))
		}
	}
	for _, c := range r.serverConns {
		shutdownIfMatch(c)
	}
	for _, c := range r.clientConns {
		shutdownIfMatch(c)
	}
}

func hostOf(hostport string) string {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i]
		}
	}
	return hostport
}

// queueEventOnAllConnections schedules event on every server connection,
// matching Reactor::QueueEventOnAllConnections in the system this reactor
// is modeled on.
func (r *Reactor) queueEventOnAllConnections(event []byte) {
	for _, c := range r.serverConns {
		buf := bytebuffer.Get()
		_, _ = buf.Write(event)
		c.QueueOutboundData(buf)
		c.OutboundQueued()
	}
}

// uniqueConnections is the batch-amortization helper processOutboundQueue
// uses to guarantee OutboundQueued fires at most once per connection per
// drain, regardless of how many calls in the batch targeted it.
func uniqueConnections(conns []Connection) []Connection {
	seen := make(map[Connection]struct{}, len(conns))
	unique := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			unique = append(unique, c)
		}
	}
	return unique
}
