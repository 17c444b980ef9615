// File: fiber/fiber_test.go
// Author: momentics <momentics@gmail.com>

package fiber

import (
	"os/exec"
	"testing"

	"github.com/momentics/fiberio/api"
)

func TestSpawnStartsOnFlush(t *testing.T) {
	loop := NewLoop()

	started := false
	task := loop.Spawn(func(t *Task) { started = true })

	if started {
		t.Fatal("task ran before the runnable queue was flushed")
	}
	if loop.Runnable().Len() != 1 {
		t.Fatalf("runnable len = %d, want 1", loop.Runnable().Len())
	}

	loop.Runnable().Flush()
	if !started {
		t.Fatal("task did not run on flush")
	}
	if !task.Completed() {
		t.Fatal("finished task not marked completed")
	}
}

func TestSuspendDeliversResumePayload(t *testing.T) {
	loop := NewLoop()

	var got api.Events
	var ok bool
	task := loop.Spawn(func(t *Task) {
		got, ok = t.Suspend()
	})
	loop.Runnable().Flush()

	if task.Completed() {
		t.Fatal("task finished before being resumed")
	}
	task.Resume(api.Writable)
	if !task.Completed() {
		t.Fatal("task did not finish after resume")
	}
	if !ok || got != api.Writable {
		t.Fatalf("suspend returned %v, %v", got, ok)
	}
}

func TestCancelDeliversNoPayload(t *testing.T) {
	loop := NewLoop()

	var got api.Events
	var ok bool
	task := loop.Spawn(func(t *Task) {
		got, ok = t.Suspend()
	})
	loop.Runnable().Flush()

	task.Cancel()
	if !task.Completed() {
		t.Fatal("task did not finish after cancel")
	}
	if ok || got != 0 {
		t.Fatalf("cancelled suspend returned %v, %v", got, ok)
	}
}

func TestCancelBeforeStartSkipsFunction(t *testing.T) {
	loop := NewLoop()

	ran := false
	task := loop.Spawn(func(t *Task) { ran = true })

	task.Cancel()
	if ran {
		t.Fatal("cancelled task ran its function")
	}
	if !task.Completed() {
		t.Fatal("cancelled task not marked completed")
	}
}

func TestReapReturnsExitStatus(t *testing.T) {
	loop := NewLoop()

	cmd := exec.Command("sh", "-c", "exit 3")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	status, err := loop.Reap(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if status != 3 {
		t.Fatalf("status = %d, want 3", status)
	}
}
