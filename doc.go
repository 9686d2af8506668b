// Package reactor implements a single-threaded, event-driven I/O core
// modeled on the reactor component of a multi-reactor RPC messenger: one
// goroutine per Reactor owns a disjoint set of TCP connections, dispatches
// outbound calls onto them, accepts inbound connections handed to it by an
// acceptor, and runs periodic maintenance. See SPEC_FULL.md for the full
// design; this file only collects package-level examples.
//
// A minimal setup:
//
//	r := reactor.New(messenger, 0,
//		reactor.WithConnectionKeepaliveTime(15*time.Second),
//		reactor.WithCoarseTimerGranularity(time.Second))
//	if err := r.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer r.Shutdown()
//
//	r.QueueOutboundCall(call)
package reactor
