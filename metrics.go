package reactor

import "github.com/reactorcore/reactor/pkg/status"

// Metrics is sampled on the reactor thread via RunOnReactorThread so the
// counts it reports are always consistent with a single point in the
// event loop's timeline.
type Metrics struct {
	NumClientConnections int
	NumServerConnections int
}

// GetMetrics blocks until the reactor thread has sampled current
// connection counts. If the reactor is shutting down, the zero value is
// returned.
func (r *Reactor) GetMetrics() Metrics {
	var m Metrics
	_ = r.RunOnReactorThread(func(r *Reactor) status.Status {
		m.NumClientConnections = len(r.clientConns)
		m.NumServerConnections = len(r.serverConns)
		return status.OKStatus()
	})
	return m
}
