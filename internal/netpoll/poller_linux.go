// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2017 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package netpoll adapts gnet's epoll wrapper into the single epoll
// instance a Reactor parks its one goroutine in: connection fds, a
// coalescing wake eventfd for cross-thread task posting, and a timerfd
// driving the coarse maintenance tick.
package netpoll

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Poller wraps a single epoll instance together with the wake eventfd and
// the optional coarse-timer timerfd registered into it.
type Poller struct {
	fd      int // epoll fd
	wakeFD  int // eventfd used to interrupt EpollWait from another thread
	wakeBuf []byte
	waking  int32 // 0 or 1, CAS-guarded so concurrent Wake calls coalesce into one write

	timerFD  int // timerfd backing the coarse maintenance tick, -1 when disabled
	timerBuf []byte
}

// OpenPoller instantiates a poller with its wake eventfd already armed.
// The coarse timer is left disabled until ArmTimer is called.
func OpenPoller() (p *Poller, err error) {
	p = &Poller{timerFD: -1}
	if p.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		p = nil
		return
	}
	if p.wakeFD, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		_ = p.Close()
		p = nil
		return
	}
	p.wakeBuf = make([]byte, 8)
	if err = p.AddRead(p.wakeFD); err != nil {
		_ = p.Close()
		p = nil
		return
	}
	return
}

// ArmTimer creates a periodic timerfd with the given interval and registers
// it with the poller. Calling ArmTimer twice replaces the previous timer.
func (p *Poller) ArmTimer(interval time.Duration) error {
	if p.timerFD >= 0 {
		_ = p.Delete(p.timerFD)
		_ = unix.Close(p.timerFD)
		p.timerFD = -1
	}
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return err
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(interval.Nanoseconds()),
		Value:    unix.NsecToTimespec(interval.Nanoseconds()),
	}
	if err = unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return err
	}
	if err = p.AddRead(fd); err != nil {
		_ = unix.Close(fd)
		return err
	}
	p.timerFD = fd
	p.timerBuf = make([]byte, 8)
	return nil
}

// Close closes the poller and any fds it owns.
func (p *Poller) Close() error {
	if p.timerFD >= 0 {
		_ = unix.Close(p.timerFD)
	}
	if p.wakeFD != 0 {
		_ = unix.Close(p.wakeFD)
	}
	return unix.Close(p.fd)
}

// endianness-portable encoding of the uint64 eventfd increment, per
// http://man7.org/linux/man-pages/man2/eventfd.2.html.
var (
	wakeVal uint64 = 1
	wakeB          = (*(*[8]byte)(unsafe.Pointer(&wakeVal)))[:]
)

// Wake interrupts a blocked Polling call so it drains the reactor's pending
// task queue. Concurrent Wake calls between two drains coalesce into a
// single eventfd write.
func (p *Poller) Wake() error {
	if atomic.CompareAndSwapInt32(&p.waking, 0, 1) {
		_, err := unix.Write(p.wakeFD, wakeB)
		return err
	}
	return nil
}

// EventCallback is invoked once per ready connection fd with its
// readable/writable state.
type EventCallback func(fd int, readable, writable bool) error

// Polling blocks the calling goroutine -- meant to be the reactor's single
// thread -- servicing connection readiness, the wake eventfd, and the
// coarse timer tick until callback or onWake or onTick returns an error.
func (p *Poller) Polling(callback EventCallback, onWake func() error, onTick func() error) (err error) {
	el := newEventList(initEvents)
	for {
		n, err0 := unix.EpollWait(p.fd, el.events, -1)
		if err0 != nil && err0 != unix.EINTR {
			return err0
		}
		for i := 0; i < n; i++ {
			fd := int(el.events[i].Fd)
			ev := el.events[i].Events
			switch fd {
			case p.wakeFD:
				_, _ = unix.Read(p.wakeFD, p.wakeBuf)
				atomic.StoreInt32(&p.waking, 0)
				if onWake != nil {
					if err = onWake(); err != nil {
						return
					}
				}
			case p.timerFD:
				_, _ = unix.Read(p.timerFD, p.timerBuf)
				if onTick != nil {
					if err = onTick(); err != nil {
						return
					}
				}
			default:
				if err = callback(fd, ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0, ev&unix.EPOLLOUT != 0); err != nil {
					return
				}
			}
		}
		if n == el.size {
			el.increase()
		}
	}
}

const (
	readEvents      = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents     = unix.EPOLLOUT
	readWriteEvents = readEvents | writeEvents
)

// AddReadWrite registers fd for both readable and writable events.
func (p *Poller) AddReadWrite(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readWriteEvents})
}

// AddRead registers fd for readable events only.
func (p *Poller) AddRead(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readEvents})
}

// AddWrite registers fd for writable events only.
func (p *Poller) AddWrite(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: writeEvents})
}

// ModRead renews fd's registration to readable events only.
func (p *Poller) ModRead(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readEvents})
}

// ModReadWrite renews fd's registration to both readable and writable events.
func (p *Poller) ModReadWrite(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: readWriteEvents})
}

// Delete removes fd from the poller.
func (p *Poller) Delete(fd int) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}
