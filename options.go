package reactor

import (
	"net"
	"time"

	"github.com/reactorcore/reactor/pkg/logging"
)

// Options configures one Reactor. It is built with functional options,
// following the same With*/initOptions shape gnet uses for its own
// engine-level configuration.
type Options struct {
	// ConnectionKeepaliveTime is the idle-timeout for server connections;
	// see the periodic idle scan.
	ConnectionKeepaliveTime time.Duration
	// CoarseTimerGranularity is the period of the maintenance tick.
	CoarseTimerGranularity time.Duration
	// NegotiationTimeout is the per-direction handshake deadline used for
	// server-side negotiation (rpc_negotiation_timeout_ms).
	NegotiationTimeout time.Duration
	// NumConnectionsToServer bounds the ConnectionId.Index range a caller
	// may use when addressing a remote peer.
	NumConnectionsToServer int
	// LocalIPForOutboundSockets, if set, is used to bind outbound sockets
	// instead of auto-binding via the messenger's OutboundAddressV4/V6.
	LocalIPForOutboundSockets net.IP
	// NegotiationPoolCapacity sizes the default ants-backed negotiation
	// pool when one isn't supplied via WithNegotiationPool.
	NegotiationPoolCapacity int
	// Logger receives all reactor log output; defaults to the package
	// logger backed by zap.
	Logger logging.Logger
	// NegotiationPool overrides the default ants-backed pool.
	NegotiationPool NegotiationPool
}

// Option mutates an Options value; pass any number to New.
type Option func(*Options)

func initOptions(opts ...Option) *Options {
	options := &Options{
		ConnectionKeepaliveTime: 15 * time.Second,
		CoarseTimerGranularity:  1 * time.Second,
		NegotiationTimeout:      3000 * time.Millisecond,
		NumConnectionsToServer:  1,
		NegotiationPoolCapacity: 1 << 14,
		Logger:                  logging.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithConnectionKeepaliveTime sets the server-connection idle timeout.
func WithConnectionKeepaliveTime(d time.Duration) Option {
	return func(o *Options) { o.ConnectionKeepaliveTime = d }
}

// WithCoarseTimerGranularity sets the maintenance-tick period.
func WithCoarseTimerGranularity(d time.Duration) Option {
	return func(o *Options) { o.CoarseTimerGranularity = d }
}

// WithNegotiationTimeoutMillis sets rpc_negotiation_timeout_ms.
func WithNegotiationTimeoutMillis(ms int) Option {
	return func(o *Options) { o.NegotiationTimeout = time.Duration(ms) * time.Millisecond }
}

// WithNumConnectionsToServer sets num_connections_to_server.
func WithNumConnectionsToServer(n int) Option {
	return func(o *Options) { o.NumConnectionsToServer = n }
}

// WithLocalIPForOutboundSockets pins the local address outbound sockets
// bind to, skipping auto-bind.
func WithLocalIPForOutboundSockets(ip net.IP) Option {
	return func(o *Options) { o.LocalIPForOutboundSockets = ip }
}

// WithNegotiationPoolCapacity sizes the default negotiation pool.
func WithNegotiationPoolCapacity(n int) Option {
	return func(o *Options) { o.NegotiationPoolCapacity = n }
}

// WithNegotiationPool overrides the default ants-backed negotiation pool,
// useful for tests that want to run handshakes synchronously.
func WithNegotiationPool(p NegotiationPool) Option {
	return func(o *Options) { o.NegotiationPool = p }
}

// WithLogger overrides the reactor's logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
