package reactor

import (
	"net"
	"sync"
	"time"

	"github.com/reactorcore/reactor/pkg/pool/bytebuffer"
	"github.com/reactorcore/reactor/pkg/status"
)

// fakeAddr is the minimal net.Addr this package's tests need;
// dropWithRemoteAddress only ever looks at String().
type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConnection is a scriptable Connection used to exercise the reactor's
// connection-table and outbound-dispatch logic without a live socket.
type fakeConnection struct {
	mu sync.Mutex

	dir    Direction
	remote net.Addr
	ctx    ConnectionContext

	idle         bool
	lastActivity time.Time

	queueErr error

	shutdownCalls  int
	shutdownStatus status.Status
	outboundQueued int
	queuedCalls    []OutboundCall
	queuedData     [][]byte
}

func newFakeConnection(dir Direction, remote string) *fakeConnection {
	return &fakeConnection{
		dir:          dir,
		remote:       fakeAddr(remote),
		idle:         true,
		lastActivity: time.Now(),
		ctx:          NewYBContext(nil),
	}
}

func (c *fakeConnection) Shutdown(s status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownCalls++
	c.shutdownStatus = s
}

func (c *fakeConnection) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

func (c *fakeConnection) setIdle(idle bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idle = idle
}

func (c *fakeConnection) LastActivityTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *fakeConnection) setLastActivity(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = t
}

func (c *fakeConnection) QueueOutboundCall(call OutboundCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queueErr != nil {
		return c.queueErr
	}
	c.queuedCalls = append(c.queuedCalls, call)
	call.Transferred(status.OKStatus())
	return nil
}

func (c *fakeConnection) QueueOutboundData(buf *bytebuffer.ByteBuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queuedData = append(c.queuedData, append([]byte(nil), buf.B...))
	bytebuffer.Put(buf)
}

func (c *fakeConnection) OutboundQueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outboundQueued++
}

func (c *fakeConnection) SetNonBlocking(bool) error { return nil }

func (c *fakeConnection) MarkNegotiationComplete() {}

func (c *fakeConnection) EpollRegister(*eventLoop) error { return nil }

func (c *fakeConnection) Context() ConnectionContext { return c.ctx }

func (c *fakeConnection) Direction() Direction { return c.dir }

func (c *fakeConnection) Remote() net.Addr { return c.remote }

func (c *fakeConnection) Socket() int { return -1 }

var _ Connection = (*fakeConnection)(nil)

// fakeOutboundCall is a scriptable OutboundCall.
type fakeOutboundCall struct {
	mu sync.Mutex

	id      ConnectionId
	timeout time.Duration

	failed      bool
	failStatus  status.Status
	transferred bool
	transferSt  status.Status
}

func newFakeOutboundCall(id ConnectionId, timeout time.Duration) *fakeOutboundCall {
	return &fakeOutboundCall{id: id, timeout: timeout}
}

func (c *fakeOutboundCall) ConnectionId() ConnectionId { return c.id }

func (c *fakeOutboundCall) Timeout() time.Duration { return c.timeout }

func (c *fakeOutboundCall) SetFailed(s status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
	c.failStatus = s
}

func (c *fakeOutboundCall) Transferred(s status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transferred = true
	c.transferSt = s
}

func (c *fakeOutboundCall) result() (failed bool, transferred bool, st status.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed {
		return true, c.transferred, c.failStatus
	}
	return false, c.transferred, c.transferSt
}

var _ OutboundCall = (*fakeOutboundCall)(nil)

// fakeMessenger is the minimal Messenger a test Reactor needs.
type fakeMessenger struct {
	name     string
	connType ConnectionType
	pool     NegotiationPool
}

func (m *fakeMessenger) Name() string { return m.name }

func (m *fakeMessenger) ConnectionType() ConnectionType { return m.connType }

func (m *fakeMessenger) NegotiationPool() NegotiationPool { return m.pool }

func (m *fakeMessenger) OutboundAddressV4() net.IP { return nil }

func (m *fakeMessenger) OutboundAddressV6() net.IP { return nil }

var _ Messenger = (*fakeMessenger)(nil)

// syncNegotiationPool runs submitted work inline, synchronously, on the
// caller's goroutine -- useful for tests that want negotiation to complete
// deterministically without a real ants worker.
type syncNegotiationPool struct {
	mu     sync.Mutex
	closed bool
}

func (p *syncNegotiationPool) Submit(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return status.New(status.IllegalState, "pool closed", 0)
	}
	p.mu.Unlock()
	fn()
	return nil
}

func (p *syncNegotiationPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

var _ NegotiationPool = (*syncNegotiationPool)(nil)
