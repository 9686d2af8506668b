package reactor

import "net"

// Messenger is the narrow upward interface the reactor needs from the
// surrounding connection-fleet owner. Listener management, wire codecs, and
// cross-reactor hashing all live in the messenger and are out of scope here.
type Messenger interface {
	// Name identifies the messenger, used in logging and connection
	// context naming.
	Name() string
	// ConnectionType selects the wire protocol tag new connections get.
	ConnectionType() ConnectionType
	// NegotiationPool returns the pool blocking handshake work is
	// submitted to.
	NegotiationPool() NegotiationPool
	// OutboundAddressV4 / OutboundAddressV6 provide optional local bind
	// addresses for outbound sockets; nil means let the kernel choose.
	OutboundAddressV4() net.IP
	OutboundAddressV6() net.IP
}
