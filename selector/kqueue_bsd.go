//go:build darwin || dragonfly || freebsd

// File: selector/kqueue_bsd.go
// Author: momentics <momentics@gmail.com>
//
// Oneshot kqueue backend. Every interested filter kind gets its own
// registration, auto-disarming after one delivery; registrations for
// distinct filters on one ident are batched into a single kevent call.
// Process exit is a first-class filter, so the table is keyed by pid
// directly. The wakeup side channel is a user-triggerable event.

package selector

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/api"
)

type kqueueBackend struct {
	kqfd   int
	events []unix.Kevent_t

	// blocked is the only state shared with foreign threads.
	blocked atomic.Bool
}

func newBackend() (backend, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kqfd)
	return &kqueueBackend{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, maxEvents),
	}, nil
}

// kqueueEvents translates a native filter to the generic mask. EV_EOF and
// error conditions arrive on the read filter, so a broken connection still
// wakes a reader.
func kqueueEvents(filter int) api.Events {
	switch filter {
	case unix.EVFILT_READ:
		return api.Readable
	case unix.EVFILT_WRITE:
		return api.Writable
	case unix.EVFILT_PROC:
		return api.Exit
	default:
		return 0
	}
}

// kqueueChanges expands a generic mask into oneshot filter registrations for
// ident, one change per interested filter kind.
func kqueueChanges(ident int, events api.Events, changes []unix.Kevent_t) int {
	count := 0
	if events&api.Readable != 0 {
		changes[count] = unix.Kevent_t{
			Ident:  uint64(ident),
			Filter: unix.EVFILT_READ,
			Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT,
		}
		count++
	}
	if events&api.Writable != 0 {
		changes[count] = unix.Kevent_t{
			Ident:  uint64(ident),
			Filter: unix.EVFILT_WRITE,
			Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT,
		}
		count++
	}
	if events&api.Exit != 0 {
		changes[count] = unix.Kevent_t{
			Ident:  uint64(ident),
			Filter: unix.EVFILT_PROC,
			Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT,
			Fflags: unix.NOTE_EXIT,
		}
		count++
	}
	return count
}

func (b *kqueueBackend) Arm(ident int, armed, events api.Events) (api.Events, error) {
	var changes [3]unix.Kevent_t
	count := kqueueChanges(ident, events, changes[:])
	if count == 0 {
		return armed, nil
	}
	if _, err := unix.Kevent(b.kqfd, changes[:count], nil, nil); err != nil {
		return armed, fmt.Errorf("kevent arm ident=%d: %w", ident, err)
	}
	return armed | events, nil
}

// Reconcile is a no-op: oneshot registrations disarm themselves.
func (b *kqueueBackend) Reconcile(ident int, want, delivered api.Events) error {
	return nil
}

func (b *kqueueBackend) OpenProcess(pid int) (int, api.Events, func(), error) {
	if _, err := b.Arm(pid, 0, api.Exit); err != nil {
		return 0, 0, nil, err
	}
	return pid, api.Exit, nil, nil
}

func (b *kqueueBackend) Wait(batch []Event, timeout time.Duration, blocking bool) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		storage := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &storage
	}
	if blocking {
		b.blocked.Store(true)
		defer b.blocked.Store(false)
	}
	count, err := unix.Kevent(b.kqfd, nil, b.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("kevent wait: %w", err)
	}
	for i := 0; i < count; i++ {
		ev := &b.events[i]
		if ev.Filter == unix.EVFILT_USER {
			batch[i] = Event{Ident: wakeupIdent}
			continue
		}
		batch[i] = Event{Ident: int(ev.Ident), Events: kqueueEvents(int(ev.Filter))}
	}
	return count, nil
}

func (b *kqueueBackend) Wakeup() bool {
	if !b.blocked.Load() {
		return false
	}
	trigger := unix.Kevent_t{
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(b.kqfd, []unix.Kevent_t{trigger}, nil, nil); err != nil {
		return false
	}
	// FreeBSD only honours NOTE_TRIGGER when posted as a separate change.
	trigger.Flags = 0
	trigger.Fflags = unix.NOTE_TRIGGER
	if _, err := unix.Kevent(b.kqfd, []unix.Kevent_t{trigger}, nil, nil); err != nil {
		return false
	}
	return true
}

func (b *kqueueBackend) Oneshot() bool { return true }

func (b *kqueueBackend) Close() error {
	if b.kqfd >= 0 {
		unix.Close(b.kqfd)
		b.kqfd = -1
	}
	return nil
}
