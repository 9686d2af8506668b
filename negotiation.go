package reactor

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/reactorcore/reactor/pkg/status"
)

// NegotiationPool runs blocking handshake work off the reactor thread.
// Submit must not block the caller; it returns an error (translated by the
// reactor to ServiceUnavailable) when the pool is shutting down.
type NegotiationPool interface {
	Submit(func()) error
	Release()
}

// antsNegotiationPool adapts github.com/panjf2000/ants/v2 the same way
// gnet's pkg/pool/goroutine does: a bounded, non-blocking pool that returns
// an error instead of stalling the submitting goroutine when full or
// closed.
type antsNegotiationPool struct {
	pool *ants.Pool
}

// NewAntsNegotiationPool builds a NegotiationPool with the given capacity.
// A capacity <= 0 uses ants' unbounded default.
func NewAntsNegotiationPool(capacity int) (NegotiationPool, error) {
	if capacity <= 0 {
		capacity = -1
	}
	p, err := ants.NewPool(capacity, ants.WithOptions(ants.Options{
		ExpiryDuration: 10 * time.Second,
		Nonblocking:    true,
	}))
	if err != nil {
		return nil, err
	}
	return &antsNegotiationPool{pool: p}, nil
}

func (p *antsNegotiationPool) Submit(fn func()) error {
	return p.pool.Submit(fn)
}

func (p *antsNegotiationPool) Release() {
	p.pool.Release()
}

// translateNegotiationError maps a negotiation pool rejection to the
// ServiceUnavailable status the outbound-dispatch design requires instead
// of surfacing the pool's raw "illegal state" error.
func translateNegotiationError(err error) status.Status {
	if err == nil {
		return status.OKStatus()
	}
	return status.New(status.ServiceUnavailable, "Client RPC Messenger shutting down", 0)
}
