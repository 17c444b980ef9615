// File: selector/selector.go
// Author: momentics <momentics@gmail.com>
//
// The reactor engine: arm -> suspend -> wait -> match -> resume -> re-arm,
// plus the read/write/process-wait convenience loops built on the basic
// wait primitive.

package selector

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/api"
)

// Selector multiplexes many descriptors into one wait call and resumes the
// suspended tasks whose requested events arrived. One Selector is driven by
// exactly one cooperative thread.
type Selector struct {
	backend     backend
	sched       api.Scheduler
	descriptors table
	batch       []Event
	closed      bool
}

// New constructs a Selector for the host scheduler, choosing the platform
// backend.
func New(sched api.Scheduler) (*Selector, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return &Selector{
		backend: b,
		sched:   sched,
		batch:   make([]Event, maxEvents),
	}, nil
}

// IOWait suspends task until fd reports one of the requested events and
// returns the intersection of requested and delivered masks. A resumption
// with no payload returns api.ErrCancelled. The waiting record is unlinked
// on every exit path.
func (s *Selector) IOWait(task api.Task, fd int, events api.Events) (api.Events, error) {
	if s.closed {
		return 0, api.ErrSelectorClosed
	}
	d := s.descriptors.lookup(fd)

	armed, err := s.backend.Arm(fd, d.armed, events)
	if err != nil {
		if errors.Is(err, errArmUnsupported) {
			// The descriptor kind rejects the multiplexer. Defer the task
			// onto the runnable queue and report the requested mask as-is;
			// the caller's next syscall decides actual readiness.
			Logger().Debug("readiness registration unsupported, deferring task",
				zap.Int("fd", fd))
			s.sched.Runnable().Push(task)
			if _, ok := task.Suspend(); !ok {
				return 0, api.ErrCancelled
			}
			return events, nil
		}
		return 0, err
	}
	d.armed = armed

	w := &waiting{events: events, task: task}
	d.waiters.pushFront(w)
	defer w.unlink()

	delivered, ok := task.Suspend()
	if !ok {
		return 0, api.ErrCancelled
	}
	return delivered, nil
}

// IORead reads up to length bytes into the buffer's writable region starting
// at offset, suspending on would-block conditions until the descriptor is
// readable again. It returns the number of bytes read; fewer than length are
// returned only at end-of-data. On an OS error the negated errno is returned
// together with the error. The descriptor's blocking mode is restored on
// every exit path.
func (s *Selector) IORead(task api.Task, fd int, buf api.Buffer, length, offset int) (int, error) {
	if s.closed {
		return 0, api.ErrSelectorClosed
	}
	restore, err := setNonblock(fd)
	if err != nil {
		return ioResult(err)
	}
	defer restore()

	base := buf.WritableBytes()
	total := 0
	for length > 0 && offset < len(base) {
		n, err := unix.Read(fd, base[offset:])
		switch {
		case n > 0:
			total += n
			offset += n
			if n >= length {
				return total, nil
			}
			length -= n
		case n == 0 && err == nil:
			// End of data.
			return total, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if _, werr := s.IOWait(task, fd, api.Readable); werr != nil {
				return total, werr
			}
		default:
			return ioResult(err)
		}
	}
	return total, nil
}

// IOWrite writes up to length bytes from the buffer's readable region
// starting at offset, suspending on would-block conditions until the
// descriptor is writable again. A length exceeding the readable region fails
// with api.ErrBufferOverflow before any syscall is issued.
func (s *Selector) IOWrite(task api.Task, fd int, buf api.Buffer, length, offset int) (int, error) {
	if s.closed {
		return 0, api.ErrSelectorClosed
	}
	base := buf.ReadableBytes()
	if length > len(base) {
		return 0, api.ErrBufferOverflow
	}
	restore, err := setNonblock(fd)
	if err != nil {
		return ioResult(err)
	}
	defer restore()

	total := 0
	for length > 0 && offset < len(base) {
		n, err := unix.Write(fd, base[offset:])
		switch {
		case n > 0:
			total += n
			offset += n
			if n >= length {
				return total, nil
			}
			length -= n
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if _, werr := s.IOWait(task, fd, api.Writable); werr != nil {
				return total, werr
			}
		default:
			return ioResult(err)
		}
	}
	return total, nil
}

// ProcessWait suspends task until pid terminates, then reaps and returns its
// exit status. The transient process handle, when the backend opens one, is
// released on every exit path including cancellation.
func (s *Selector) ProcessWait(task api.Task, pid int, flags int) (int, error) {
	if s.closed {
		return 0, api.ErrSelectorClosed
	}
	ident, events, release, err := s.backend.OpenProcess(pid)
	if err != nil {
		return 0, err
	}
	if release != nil {
		defer release()
	}

	d := s.descriptors.lookup(ident)
	d.armed |= events

	w := &waiting{events: events, task: task}
	d.waiters.pushFront(w)
	defer w.unlink()

	if _, ok := task.Suspend(); !ok {
		return 0, api.ErrCancelled
	}
	return s.sched.Reap(pid)
}

// Select runs one scheduler turn: flush the runnable queue, probe for ready
// events, block up to timeout only when nothing is pending, then dispatch.
// A negative timeout blocks indefinitely; zero probes without ever entering
// the blocking phase. It returns the number of native events processed.
// Select is not re-entrant.
func (s *Selector) Select(timeout time.Duration) (int, error) {
	if s.closed {
		return 0, api.ErrSelectorClosed
	}
	ready := s.sched.Runnable().Flush()

	// Always probe first with a zero timeout: draining already-ready events
	// is cheaper than setting up and tearing down a blocking pass.
	count, err := s.backend.Wait(s.batch, 0, false)
	if err != nil {
		return 0, err
	}

	// Block only if no task was runnable, the probe delivered nothing, the
	// resumptions queued no new work, and the caller allows blocking at all.
	if ready == 0 && count == 0 && s.sched.Runnable().Len() == 0 && timeout != 0 {
		count, err = s.backend.Wait(s.batch, timeout, true)
		if err != nil {
			return 0, err
		}
	}

	// Merge every delivery into its pending mask before resuming anything,
	// so a descriptor reported by several native events dispatches once with
	// the full mask.
	for i := 0; i < count; i++ {
		ev := &s.batch[i]
		if ev.Ident == wakeupIdent {
			continue
		}
		s.descriptors.lookup(ev.Ident).pending |= ev.Events
	}
	for i := 0; i < count; i++ {
		ev := &s.batch[i]
		if ev.Ident == wakeupIdent {
			continue
		}
		s.dispatch(ev.Ident)
	}
	return count, nil
}

// dispatch resumes every waiter on ident whose requested mask intersects the
// pending events, most recently registered first, passing the intersection.
// Non-matching waiters stay linked.
func (s *Selector) dispatch(ident int) {
	d := s.descriptors.lookup(ident)
	delivered := d.pending
	if delivered == 0 {
		return
	}
	d.pending = 0

	// Resumptions may unlink arbitrary records (including the next one) and
	// link new ones; the marker keeps the cursor valid across any mutation.
	var marker waiting
	for w := d.waiters.front(); w != nil; {
		matching := w.events & delivered
		if matching == 0 {
			w = d.waiters.nextOf(w)
			continue
		}
		d.waiters.insertAfter(w, &marker)
		w.task.Resume(matching)
		w = d.waiters.nextOf(&marker)
		marker.unlink()
	}

	if s.backend.Oneshot() {
		return
	}
	// The OS watch must stay wide enough for the remaining waiters and no
	// wider: events nobody wants would spin the level-triggered backend.
	want := d.waiters.want()
	if delivered&^want != 0 && want != d.armed {
		if err := s.backend.Reconcile(ident, want, delivered); err != nil {
			Logger().Debug("narrowing interest failed",
				zap.Int("fd", ident), zap.Error(err))
		}
		d.armed = want
	}
}

// Wakeup interrupts a currently blocked Select. It is safe to call from any
// thread and reports whether a blocked wait was actually interrupted.
func (s *Selector) Wakeup() bool {
	if s.closed {
		return false
	}
	return s.backend.Wakeup()
}

// Close releases the multiplexer handle, the wakeup side channel and the
// descriptor table. It is idempotent; operations after Close fail with
// api.ErrSelectorClosed.
func (s *Selector) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.descriptors.free()
	return s.backend.Close()
}

// setNonblock switches fd to non-blocking mode and returns a callback
// restoring the original flags.
func setNonblock(fd int) (func(), error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return nil, err
	}
	if flags&unix.O_NONBLOCK != 0 {
		return func() {}, nil
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return func() {
		_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	}, nil
}

// ioResult encodes an OS failure following the io-result convention: the
// negated errno as the count, the errno itself as the error.
func ioResult(err error) (int, error) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int(errno), errno
	}
	return -1, err
}
