// File: run/queue.go
// Author: momentics <momentics@gmail.com>
//
// FIFO queue of directly-runnable tasks. The reactor flushes it once per
// poll turn; the scheduler pushes freshly spawned or deferred tasks onto it.

package run

import (
	"github.com/eapache/queue"

	"github.com/momentics/fiberio/api"
)

// Queue implements api.RunQueue. It is not safe for concurrent use: the
// single cooperative thread owns it.
type Queue struct {
	tasks *queue.Queue
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{tasks: queue.New()}
}

var _ api.RunQueue = (*Queue)(nil)

// Push appends a task.
func (q *Queue) Push(task api.Task) {
	q.tasks.Add(task)
}

// Len reports the number of queued tasks.
func (q *Queue) Len() int {
	return q.tasks.Length()
}

// Flush resumes every task that was queued before the call and reports how
// many were resumed. Tasks pushed by those resumptions stay queued for the
// next turn, so a task that keeps yielding cannot starve the poll phase.
func (q *Queue) Flush() int {
	count := q.tasks.Length()
	for i := 0; i < count; i++ {
		task := q.tasks.Remove().(api.Task)
		task.Resume(0)
	}
	return count
}
