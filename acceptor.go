package reactor

import (
	"net"
	"time"

	"github.com/reactorcore/reactor/pkg/status"
)

// RegisterInboundSocket is called from a non-reactor (acceptor) thread. It
// takes ownership of fd, builds a SERVER-direction connection for it, and
// posts a reactor task that registers the connection and starts
// negotiation. If the reactor is already closing, the posted task is
// aborted at post time and the raw socket is closed here rather than
// leaked.
func (r *Reactor) RegisterInboundSocket(fd int, remote net.Addr) {
	c := newConnection(fd, Server, remote, r.messenger.ConnectionType(), nil)
	r.ScheduleReactorTask(&registerInboundTask{r: r, c: c})
}

type registerInboundTask struct {
	r *Reactor
	c *tcpConnection
}

func (t *registerInboundTask) Run(r *Reactor) {
	r.registerConnection(t.c)
}

func (t *registerInboundTask) Abort(status.Status) {
	t.c.Shutdown(status.ShutdownError(true))
}

// registerConnection appends c to server_conns and then starts negotiation
// for it. If the pool rejects the submission, c is destroyed and removed from
// server_conns again; otherwise the subsequent negotiation completion
// finishes wiring it or destroys it.
func (r *Reactor) registerConnection(c *tcpConnection) {
	deadline := time.Now().Add(r.options.NegotiationTimeout)
	r.registerServerConnection(c)

	if err := r.negotiationPool.Submit(func() {
		negotiateConnection(c, deadline)
		r.ScheduleReactorFunctor(func(r *Reactor) {
			r.completeConnectionNegotiation(c, status.OKStatus())
		})
	}); err != nil {
		r.destroyConnection(c, translateNegotiationError(err))
	}
}
