// File: selector/backend.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral multiplexer backend contract. Two implementations exist,
// selected by build constraints: a persistent level-triggered epoll backend
// on Linux and a oneshot kqueue backend on BSD/macOS.

package selector

import (
	"errors"
	"time"

	"github.com/momentics/fiberio/api"
)

// Batch size of one wait pass.
const maxEvents = 64

// wakeupIdent tags events delivered by the wakeup side channel.
const wakeupIdent = -1

// errArmUnsupported reports a descriptor kind the multiplexer refuses to
// watch (regular files on epoll). The engine degrades to the runnable queue
// instead of failing.
var errArmUnsupported = errors.New("descriptor does not support readiness registration")

// Event is one readiness notification translated to the generic mask.
type Event struct {
	// Ident is the descriptor or pid the event belongs to, or wakeupIdent
	// for the wakeup side channel.
	Ident int

	Events api.Events
}

// backend is the OS-specific readiness multiplexer.
type backend interface {
	// Arm ensures OS-level interest in events for ident. armed is the union
	// of interest already held; the new union is returned. Oneshot backends
	// re-register on every call, persistent backends widen an existing watch.
	Arm(ident int, armed, events api.Events) (api.Events, error)

	// Reconcile narrows or removes the watch on ident after delivered events
	// exceeded what the remaining waiters want. No-op on oneshot backends.
	Reconcile(ident int, want, delivered api.Events) error

	// OpenProcess arms an exit watch for pid and returns the table ident the
	// notification will carry, the mask to wait on, and an optional release
	// callback for a transient process handle.
	OpenProcess(pid int) (ident int, events api.Events, release func(), err error)

	// Wait runs one wait pass and fills batch with translated events. A
	// negative timeout blocks indefinitely, zero never blocks. The blocking
	// flag marks the pass that may park the thread; only then is the wakeup
	// side channel effective.
	Wait(batch []Event, timeout time.Duration, blocking bool) (int, error)

	// Wakeup interrupts a blocked Wait. Safe to call from any thread;
	// reports whether a blocked pass was actually signalled.
	Wakeup() bool

	// Oneshot reports whether registrations auto-disarm after one delivery.
	Oneshot() bool

	Close() error
}
