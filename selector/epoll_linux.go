//go:build linux

// File: selector/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Persistent (level-triggered) epoll backend. A registration stays armed
// until narrowed or removed; process exit is observed through a transient
// pidfd armed for readability; the wakeup side channel is an eventfd
// pre-registered with the reserved ident tag.

package selector

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/api"
)

type epollBackend struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent

	// blocked is the only state shared with foreign threads. The race of a
	// wakeup landing just before the flag is set is benign: the next turn's
	// probe observes the pending eventfd read.
	blocked atomic.Bool

	// pwait2Unsupported sticks after the first ENOSYS from epoll_pwait2.
	pwait2Unsupported bool
}

func newBackend() (backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	b := &epollBackend{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
	}
	ev := unix.EpollEvent{
		Events: uint32(unix.EPOLLIN),
		Fd:     int32(wakeupIdent),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		b.Close()
		return nil, fmt.Errorf("epoll_ctl add wakeup: %w", err)
	}
	return b, nil
}

// epollFlags translates a generic event mask to native epoll flags. Hangup
// and error are always armed: there is no dedicated generic event for them.
func epollFlags(events api.Events) uint32 {
	flags := uint32(unix.EPOLLHUP) | uint32(unix.EPOLLERR)
	if events&api.Readable != 0 {
		flags |= uint32(unix.EPOLLIN)
	}
	if events&api.Priority != 0 {
		flags |= uint32(unix.EPOLLPRI)
	}
	if events&api.Writable != 0 {
		flags |= uint32(unix.EPOLLOUT)
	}
	return flags
}

// epollEvents translates native epoll flags back to the generic mask.
// Hangup and error imply Readable so a reader always wakes on a broken
// connection instead of waiting forever.
func epollEvents(flags uint32) api.Events {
	var events api.Events
	if flags&(uint32(unix.EPOLLIN)|uint32(unix.EPOLLHUP)|uint32(unix.EPOLLERR)) != 0 {
		events |= api.Readable
	}
	if flags&uint32(unix.EPOLLPRI) != 0 {
		events |= api.Priority
	}
	if flags&uint32(unix.EPOLLOUT) != 0 {
		events |= api.Writable
	}
	return events
}

func (b *epollBackend) Arm(ident int, armed, events api.Events) (api.Events, error) {
	if armed&events == events {
		return armed, nil
	}
	union := armed | events
	ev := unix.EpollEvent{
		Events: epollFlags(union),
		Fd:     int32(ident),
	}
	op := unix.EPOLL_CTL_ADD
	if armed != 0 {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(b.epfd, op, ident, &ev)
	// A stale armed union after the OS reused the fd shows up as ENOENT on
	// MOD or EEXIST on ADD; retry with the complementary operation.
	if err == unix.ENOENT && op == unix.EPOLL_CTL_MOD {
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, ident, &ev)
	} else if err == unix.EEXIST && op == unix.EPOLL_CTL_ADD {
		err = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, ident, &ev)
	}
	if err != nil {
		if err == unix.EPERM {
			return armed, errArmUnsupported
		}
		return armed, fmt.Errorf("epoll_ctl arm fd=%d: %w", ident, err)
	}
	return union, nil
}

func (b *epollBackend) Reconcile(ident int, want, delivered api.Events) error {
	if want == 0 {
		err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, ident, nil)
		if err != nil && err != unix.ENOENT && err != unix.EBADF {
			return fmt.Errorf("epoll_ctl del fd=%d: %w", ident, err)
		}
		return nil
	}
	ev := unix.EpollEvent{
		Events: epollFlags(want),
		Fd:     int32(ident),
	}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, ident, &ev); err != nil {
		return fmt.Errorf("epoll_ctl mod fd=%d: %w", ident, err)
	}
	return nil
}

func (b *epollBackend) OpenProcess(pid int) (int, api.Events, func(), error) {
	pidfd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("pidfd_open pid=%d: %w", pid, err)
	}
	ev := unix.EpollEvent{
		Events: uint32(unix.EPOLLIN) | uint32(unix.EPOLLHUP) |
			uint32(unix.EPOLLERR) | uint32(unix.EPOLLONESHOT),
		Fd: int32(pidfd),
	}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, pidfd, &ev); err != nil {
		unix.Close(pidfd)
		return 0, 0, nil, fmt.Errorf("epoll_ctl add pidfd=%d: %w", pidfd, err)
	}
	// Closing the pidfd also drops its epoll registration.
	release := func() { unix.Close(pidfd) }
	return pidfd, api.Readable, release, nil
}

func (b *epollBackend) Wait(batch []Event, timeout time.Duration, blocking bool) (int, error) {
	if blocking {
		b.blocked.Store(true)
		defer b.blocked.Store(false)
	}
	count, err := b.wait(timeout)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}
	for i := 0; i < count; i++ {
		ev := &b.events[i]
		if int(ev.Fd) == wakeupIdent {
			b.drainWakeup()
			batch[i] = Event{Ident: wakeupIdent}
			continue
		}
		batch[i] = Event{Ident: int(ev.Fd), Events: epollEvents(ev.Events)}
	}
	return count, nil
}

func (b *epollBackend) wait(timeout time.Duration) (int, error) {
	if !b.pwait2Unsupported {
		n, err := unix.EpollPwait2(b.epfd, b.events, timespecFor(timeout), nil)
		if err != unix.ENOSYS {
			return n, err
		}
		b.pwait2Unsupported = true
	}
	return unix.EpollWait(b.epfd, b.events, millisecondsFor(timeout))
}

func timespecFor(timeout time.Duration) *unix.Timespec {
	if timeout < 0 {
		return nil
	}
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	return &ts
}

func millisecondsFor(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := int(timeout / time.Millisecond)
	if ms == 0 && timeout > 0 {
		ms = 1
	}
	return ms
}

func (b *epollBackend) drainWakeup() {
	var counter [8]byte
	for {
		if _, err := unix.Read(b.wakefd, counter[:]); err != unix.EINTR {
			return
		}
	}
}

func (b *epollBackend) Wakeup() bool {
	if !b.blocked.Load() {
		return false
	}
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	for {
		_, err := unix.Write(b.wakefd, one[:])
		if err != unix.EINTR {
			// EAGAIN means the counter is already saturated; the pending
			// wakeup is still observable.
			break
		}
	}
	return true
}

func (b *epollBackend) Oneshot() bool { return false }

func (b *epollBackend) Close() error {
	if b.epfd >= 0 {
		unix.Close(b.epfd)
		b.epfd = -1
	}
	if b.wakefd >= 0 {
		unix.Close(b.wakefd)
		b.wakefd = -1
	}
	return nil
}
