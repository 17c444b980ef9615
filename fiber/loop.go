// File: fiber/loop.go
// Author: momentics <momentics@gmail.com>

package fiber

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/api"
	"github.com/momentics/fiberio/run"
)

// Loop is a single-threaded cooperative scheduler: it owns the runnable
// queue consumed by a Selector and collects exit statuses for watched
// processes. One goroutine drives the loop; tasks run interleaved with it
// through synchronous transfers.
type Loop struct {
	queue *run.Queue
}

var _ api.Scheduler = (*Loop)(nil)

// NewLoop returns a loop with an empty runnable queue.
func NewLoop() *Loop {
	return &Loop{queue: run.New()}
}

// Runnable returns the loop's directly-runnable task queue.
func (l *Loop) Runnable() api.RunQueue {
	return l.queue
}

// Spawn creates a task executing fn and queues it as directly runnable. The
// task starts on the next flush of the runnable queue.
func (l *Loop) Spawn(fn func(t *Task)) *Task {
	t := &Task{
		resume: make(chan resumption),
		yield:  make(chan struct{}),
	}
	go func() {
		if r := <-t.resume; r.ok {
			fn(t)
		}
		t.completed = true
		t.yield <- struct{}{}
	}()
	l.queue.Push(t)
	return t
}

// Reap collects the terminal status for pid. Once an exit notification has
// been delivered the status is immediately available.
func (l *Loop) Reap(pid int) (int, error) {
	var status unix.WaitStatus
	for {
		if _, err := unix.Wait4(pid, &status, 0, nil); err != unix.EINTR {
			if err != nil {
				return 0, fmt.Errorf("wait4 pid=%d: %w", pid, err)
			}
			break
		}
	}
	if status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return status.ExitStatus(), nil
}
