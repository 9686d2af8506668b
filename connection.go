package reactor

import (
	"net"
	"time"

	"github.com/reactorcore/reactor/pkg/pool/bytebuffer"
	"github.com/reactorcore/reactor/pkg/status"
)

// Direction tags whether a connection was dialed by this reactor (outbound,
// client-side) or accepted from a listener elsewhere (inbound, server-side).
type Direction int

const (
	// Client connections are keyed in client_conns by ConnectionId and
	// dispatch outbound calls.
	Client Direction = iota
	// Server connections are accepted sockets handed in via
	// RegisterInboundSocket; they are subject to idle reaping.
	Server
)

func (d Direction) String() string {
	if d == Server {
		return "server"
	}
	return "client"
}

// OutboundCall is the narrow surface the reactor needs from an RPC call
// queued by an application thread. Serialization and the wire format are
// out of scope; the reactor only needs enough to route, deadline-check, and
// fail the call.
type OutboundCall interface {
	// ConnectionId reports the (remote, creds, index) slot this call is
	// bound to.
	ConnectionId() ConnectionId
	// Timeout is the caller-configured timeout, or zero if none was set.
	Timeout() time.Duration
	// SetFailed terminates the call with a status instead of dispatching
	// it; called at most once.
	SetFailed(status.Status)
	// Transferred reports that the call has been handed to a connection
	// (status OK) or could never be (status carries the reason, e.g.
	// Aborted when the reactor is shutting down).
	Transferred(status.Status)
}

// Connection is the reactor's view of one TCP connection, independent of
// wire protocol. The messenger and negotiation layers construct and own the
// socket-level behavior; the reactor only sequences lifecycle calls against
// it from its own thread (QueueOutboundCall/QueueOutboundData/OutboundQueued
// are the exception: they may be invoked by outbound dispatch from the
// reactor thread, which is always the only caller in this design, but the
// implementation must still be safe to call without any lock since no
// external synchronization wraps these calls).
type Connection interface {
	// Shutdown tears the connection down with the given status; idempotent.
	Shutdown(status.Status)
	// Idle reports whether the connection currently has no in-flight work.
	Idle() bool
	// LastActivityTime is the monotonic timestamp of the most recent I/O.
	LastActivityTime() time.Time
	// QueueOutboundCall hands the call to the connection for dispatch.
	QueueOutboundCall(OutboundCall) error
	// QueueOutboundData appends a pre-serialized event (e.g. a broadcast
	// payload from QueueEventOnAllConnections) to the outbound buffer.
	QueueOutboundData(*bytebuffer.ByteBuffer)
	// OutboundQueued is called at most once per outbound-drain batch after
	// one or more calls/data were queued, so the connection can enable
	// write-readiness a single time instead of once per call.
	OutboundQueued()
	// SetNonBlocking toggles the underlying socket's blocking mode.
	SetNonBlocking(bool) error
	// MarkNegotiationComplete transitions the connection out of the
	// negotiating state.
	MarkNegotiationComplete()
	// EpollRegister registers the connection's fd with the given poller
	// for read/write readiness.
	EpollRegister(loop *eventLoop) error
	// Context exposes the protocol-tagged connection context.
	Context() ConnectionContext
	// Direction reports Client or Server.
	Direction() Direction
	// Remote is the peer address.
	Remote() net.Addr
	// Socket is the raw file descriptor.
	Socket() int
}

// ConnectionContext is the narrow, protocol-tagged capability set the
// reactor needs regardless of whether the connection speaks YB, Redis, or
// CQL framing -- all three are out of scope for actual wire parsing, so
// each constructor below only needs to supply Name()/ReadyToStop().
type ConnectionContext interface {
	// ReadyToStop reports whether all in-flight state owned by this
	// context has surfaced, making destruction safe.
	ReadyToStop() bool
	// Name identifies the protocol this context was built for, for
	// logging.
	Name() string
}

// ConnectionType selects which ConnectionContext a new connection gets.
type ConnectionType int

const (
	YB ConnectionType = iota
	Redis
	CQL
)

func (t ConnectionType) String() string {
	switch t {
	case Redis:
		return "redis"
	case CQL:
		return "cql"
	default:
		return "yb"
	}
}

// genericContext is shared by all three protocol tags: framing and
// negotiation steps differ only in the out-of-scope wire layer, so the
// reactor-visible capability (ReadyToStop) is identical across them.
type genericContext struct {
	name      string
	readyDone func() bool
}

func (c *genericContext) ReadyToStop() bool {
	if c.readyDone == nil {
		return true
	}
	return c.readyDone()
}

func (c *genericContext) Name() string { return c.name }

// NewYBContext builds the context for a connection speaking the YB wire
// protocol. readyDone reports completion of any in-flight call draining;
// pass nil when the caller has no such state to track.
func NewYBContext(readyDone func() bool) ConnectionContext {
	return &genericContext{name: "yb", readyDone: readyDone}
}

// NewRedisContext builds the context for a connection speaking Redis.
func NewRedisContext(readyDone func() bool) ConnectionContext {
	return &genericContext{name: "redis", readyDone: readyDone}
}

// NewCQLContext builds the context for a connection speaking CQL.
func NewCQLContext(readyDone func() bool) ConnectionContext {
	return &genericContext{name: "cql", readyDone: readyDone}
}

// contextFor builds the default ConnectionContext for a newly negotiated
// connection of the given type; a connection is always ready to stop once
// negotiation has produced a context, since call-level draining tracking is
// out of scope.
func contextFor(t ConnectionType) ConnectionContext {
	switch t {
	case Redis:
		return NewRedisContext(nil)
	case CQL:
		return NewCQLContext(nil)
	default:
		return NewYBContext(nil)
	}
}
