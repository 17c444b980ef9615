// File: fiber/fiber.go
// Author: momentics <momentics@gmail.com>

package fiber

import (
	"github.com/momentics/fiberio/api"
)

// resumption is the payload of one transfer into a suspended task. ok=false
// carries no payload and means cancellation.
type resumption struct {
	events api.Events
	ok     bool
}

// Task is a cooperatively scheduled unit backed by a dedicated goroutine.
// The goroutine runs only between a Resume and the task's next Suspend;
// there is never more than one of loop and task running.
type Task struct {
	resume    chan resumption
	yield     chan struct{}
	completed bool
}

var _ api.Task = (*Task)(nil)

// Suspend transfers control back to the resumer and blocks until the task
// is resumed. The flag reports whether a payload was delivered.
func (t *Task) Suspend() (api.Events, bool) {
	t.yield <- struct{}{}
	r := <-t.resume
	return r.events, r.ok
}

// Resume transfers control to the suspended task, delivering events. It
// returns once the task suspends again or completes.
func (t *Task) Resume(events api.Events) {
	t.transfer(resumption{events: events, ok: true})
}

// Cancel resumes the suspended task with no payload.
func (t *Task) Cancel() {
	t.transfer(resumption{})
}

func (t *Task) transfer(r resumption) {
	t.resume <- r
	<-t.yield
}

// Completed reports whether the task's function has returned. A completed
// task must not be resumed or queued again.
func (t *Task) Completed() bool {
	return t.completed
}
