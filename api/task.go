// File: api/task.go
// Author: momentics <momentics@gmail.com>

package api

// Task is a cooperatively scheduled unit of execution. Control moves between
// a task and its scheduler through explicit, synchronous transfers: there is
// exactly one pending resumer per suspension point, and a transfer returns
// only once the counterpart has suspended again or completed.
type Task interface {
	// Suspend transfers control from the calling task back to its scheduler
	// and blocks until the task is resumed. The returned flag reports whether
	// a payload was delivered; a resumption without payload means the wait
	// was cancelled.
	Suspend() (Events, bool)

	// Resume transfers control to the suspended task, delivering events as
	// the payload. It must be called from the scheduler thread and returns
	// when the task suspends again or finishes.
	Resume(events Events)

	// Cancel resumes the suspended task with no payload.
	Cancel()
}

// RunQueue is the scheduler's queue of directly-runnable tasks. The reactor
// flushes it once per poll turn and pushes onto it when a registration must
// be deferred.
type RunQueue interface {
	// Push appends a task to the queue.
	Push(task Task)

	// Flush resumes the tasks that were queued before the call and reports
	// how many were resumed. Tasks queued by those resumptions are left for
	// the next flush.
	Flush() int

	// Len reports the number of queued tasks.
	Len() int
}

// Scheduler is the host driving a Selector: it owns the runnable queue and
// collects exit statuses for watched processes.
type Scheduler interface {
	// Runnable returns the scheduler's directly-runnable task queue.
	Runnable() RunQueue

	// Reap collects the terminal status for a pid whose exit has been
	// observed.
	Reap(pid int) (int, error)
}
