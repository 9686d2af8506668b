//go:build linux

package netpoll

import "golang.org/x/sys/unix"

const initEvents = 128

// eventList is a growable buffer of epoll_event structs, grounded on gnet's
// netpoll event-list doubling strategy so a poller handling many connections
// doesn't pay for a large fixed-size buffer on the common case of a handful.
type eventList struct {
	size   int
	events []unix.EpollEvent
}

func newEventList(size int) *eventList {
	return &eventList{size, make([]unix.EpollEvent, size)}
}

func (el *eventList) increase() {
	el.size <<= 1
	el.events = make([]unix.EpollEvent, el.size)
}
