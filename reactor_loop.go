package reactor

import (
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/reactorcore/reactor/internal/netpoll"
	"github.com/reactorcore/reactor/pkg/status"
)

// eventLoop is the thin handle Connection.EpollRegister is given; it hides
// the rest of the Reactor from connection implementations while still
// letting them register their fd for readiness.
type eventLoop struct {
	poller *netpoll.Poller
}

// RegisterRead registers fd for read readiness only (used when a connection
// is registered after negotiation; EnableWrite arms write readiness later).
func (l *eventLoop) RegisterRead(fd int) error {
	return l.poller.AddRead(fd)
}

// RegisterReadWrite registers fd for both read and write readiness.
func (l *eventLoop) RegisterReadWrite(fd int) error {
	return l.poller.AddReadWrite(fd)
}

// EnableWrite arms write-readiness on an already-registered fd; this is
// what Connection.OutboundQueued calls after a batch queues data.
func (l *eventLoop) EnableWrite(fd int) error {
	return l.poller.ModReadWrite(fd)
}

// DisableWrite reverts an fd to read-only readiness once its outbound
// buffer has drained.
func (l *eventLoop) DisableWrite(fd int) error {
	return l.poller.ModRead(fd)
}

// Unregister removes fd from the poller entirely, called from
// tcpConnection.Shutdown.
func (l *eventLoop) Unregister(fd int) error {
	return l.poller.Delete(fd)
}

// findOrStartConnection implements Reactor::FindOrStartConnection: return
// the cached client connection for id if one exists, otherwise dial a new
// non-blocking socket, install it, and hand it to negotiation.
func (r *Reactor) findOrStartConnection(id ConnectionId, deadline time.Time) (Connection, status.Status) {
	if c, ok := r.clientConns[id]; ok {
		return c, status.OKStatus()
	}

	fd, remote, err := r.createClientSocket(id.Remote)
	if err != nil {
		return nil, status.New(status.NetworkError, err.Error(), 0)
	}

	c := newConnection(fd, Client, remote, r.messenger.ConnectionType(), r.loop)
	r.registerClientConnection(id, c)

	if err := r.negotiationPool.Submit(func() {
		negotiateConnection(c, deadline)
		r.ScheduleReactorFunctor(func(r *Reactor) {
			r.completeConnectionNegotiation(c, status.OKStatus())
		})
	}); err != nil {
		s := translateNegotiationError(err)
		r.destroyConnection(c, s)
		return nil, s
	}

	return c, status.OKStatus()
}

// createClientSocket creates a non-blocking TCP socket, enables
// TCP_NODELAY, optionally binds to the configured local address, and
// initiates connect. A synchronous completion and EINPROGRESS are both
// treated as success (the former is "connect finished immediately", the
// latter is normal async progress); any other error fails the call.
func (r *Reactor) createClientSocket(remote string) (int, net.Addr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", remote)
	if err != nil {
		return -1, nil, err
	}

	family := unix.AF_INET
	if tcpAddr.IP.To4() == nil {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, os.NewSyscallError("socket", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, nil, os.NewSyscallError("setnonblock", err)
	}
	if err = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		_ = unix.Close(fd)
		return -1, nil, os.NewSyscallError("setsockopt", err)
	}

	if localIP := r.localBindAddress(family); localIP != nil {
		if err = bindLocal(fd, family, localIP); err != nil {
			_ = unix.Close(fd)
			return -1, nil, err
		}
	}

	sa, err := sockaddrFor(family, tcpAddr)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, nil, os.NewSyscallError("connect", err)
	}

	return fd, tcpAddr, nil
}

// localBindAddress resolves which local address (if any) an outbound
// socket of the given family should bind to: the builder-config override
// takes priority over the messenger's per-family address.
func (r *Reactor) localBindAddress(family int) net.IP {
	if r.options.LocalIPForOutboundSockets != nil {
		return r.options.LocalIPForOutboundSockets
	}
	if family == unix.AF_INET6 {
		return r.messenger.OutboundAddressV6()
	}
	return r.messenger.OutboundAddressV4()
}

func bindLocal(fd, family int, ip net.IP) error {
	switch family {
	case unix.AF_INET6:
		var sa unix.SockaddrInet6
		copy(sa.Addr[:], ip.To16())
		return os.NewSyscallError("bind", unix.Bind(fd, &sa))
	default:
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], ip.To4())
		return os.NewSyscallError("bind", unix.Bind(fd, &sa))
	}
}

func sockaddrFor(family int, addr *net.TCPAddr) (unix.Sockaddr, error) {
	switch family {
	case unix.AF_INET6:
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To16())
		if addr.Zone != "" {
			iface, err := net.InterfaceByName(addr.Zone)
			if err != nil {
				return nil, err
			}
			sa.ZoneId = uint32(iface.Index)
		}
		return sa, nil
	default:
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To4())
		return sa, nil
	}
}

// negotiateConnection runs the blocking handshake for c. Actual SASL /
// protocol-selection framing is out of scope, so this does no handshake
// work. The deadline is not enforced: the function returns the same way
// whether or not it has passed, and both callers then report negotiation
// as successful.
func negotiateConnection(c Connection, deadline time.Time) {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return
	}
}
