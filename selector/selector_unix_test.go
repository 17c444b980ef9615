//go:build linux || darwin || dragonfly || freebsd

// File: selector/selector_unix_test.go
// Author: momentics <momentics@gmail.com>
//
// Tests against the real platform backend: pipes, a blocked-select wakeup,
// and a spawned child process.

package selector

import (
	"bytes"
	"errors"
	"os/exec"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/api"
	"github.com/momentics/fiberio/buffer"
	"github.com/momentics/fiberio/fiber"
)

func newRealSelector(t *testing.T) (*Selector, *fiber.Loop) {
	t.Helper()
	loop := fiber.NewLoop()
	s, err := New(loop)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, loop
}

func makePipe(t *testing.T) (int, int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

// driveUntil runs scheduler turns until done reports true.
func driveUntil(t *testing.T, s *Selector, done func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if done() {
			return
		}
		if _, err := s.Select(100 * time.Millisecond); err != nil {
			t.Fatalf("Select: %v", err)
		}
	}
	t.Fatal("condition not reached")
}

func TestIOWaitReadable(t *testing.T) {
	s, loop := newRealSelector(t)
	r, w := makePipe(t)

	var got api.Events
	var gotErr error
	task := loop.Spawn(func(task *fiber.Task) {
		got, gotErr = s.IOWait(task, r, api.Readable)
	})

	// Start the task; nothing is readable yet.
	if _, err := s.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Completed() {
		t.Fatal("waiter resumed before data arrived")
	}

	if _, err := unix.Write(w, []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	driveUntil(t, s, task.Completed)

	if gotErr != nil {
		t.Fatalf("IOWait: %v", gotErr)
	}
	if got&api.Readable == 0 {
		t.Fatalf("delivered mask = %v, want readable", got)
	}
}

func TestIOReadAccumulatesPartialReads(t *testing.T) {
	s, loop := newRealSelector(t)
	r, w := makePipe(t)

	buf := buffer.New(8)
	var n int
	var readErr error
	task := loop.Spawn(func(task *fiber.Task) {
		n, readErr = s.IORead(task, r, buf, 8, 0)
	})

	if _, err := s.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := unix.Write(w, []byte("abcd")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Select(time.Second); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Completed() {
		t.Fatal("read finished before all bytes arrived")
	}

	if _, err := unix.Write(w, []byte("efgh")); err != nil {
		t.Fatalf("write: %v", err)
	}
	driveUntil(t, s, task.Completed)

	if readErr != nil {
		t.Fatalf("IORead: %v", readErr)
	}
	if n != 8 {
		t.Fatalf("n = %d, want 8", n)
	}
	if !bytes.Equal(buf.WritableBytes(), []byte("abcdefgh")) {
		t.Fatalf("buffer = %q", buf.WritableBytes())
	}
}

func TestIOReadStopsAtEndOfData(t *testing.T) {
	s, loop := newRealSelector(t)
	r, w := makePipe(t)

	buf := buffer.New(8)
	var n int
	var readErr error
	task := loop.Spawn(func(task *fiber.Task) {
		n, readErr = s.IORead(task, r, buf, 8, 0)
	})

	if _, err := s.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}

	if _, err := unix.Write(w, []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	unix.Close(w)
	driveUntil(t, s, task.Completed)

	if readErr != nil {
		t.Fatalf("IORead: %v", readErr)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3 at end of data", n)
	}
}

func TestIOWriteDrainsThroughBackpressure(t *testing.T) {
	s, loop := newRealSelector(t)
	r, w := makePipe(t)

	// Larger than the pipe buffer so the writer must suspend at least once.
	payload := bytes.Repeat([]byte{0xA5}, 1<<20)
	buf := buffer.FromBytes(payload)
	var n int
	var writeErr error
	task := loop.Spawn(func(task *fiber.Task) {
		n, writeErr = s.IOWrite(task, w, buf, len(payload), 0)
	})

	if _, err := s.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}

	// Drain the read side from a plain goroutine while the loop drives the
	// writer.
	drained := make(chan int, 1)
	go func() {
		total := 0
		chunk := make([]byte, 64*1024)
		for total < len(payload) {
			m, err := unix.Read(r, chunk)
			if m > 0 {
				total += m
				continue
			}
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			break
		}
		drained <- total
	}()

	driveUntil(t, s, task.Completed)
	if writeErr != nil {
		t.Fatalf("IOWrite: %v", writeErr)
	}
	if n != len(payload) {
		t.Fatalf("n = %d, want %d", n, len(payload))
	}
	if total := <-drained; total != len(payload) {
		t.Fatalf("drained %d bytes, want %d", total, len(payload))
	}
}

func TestWakeupInterruptsBlockedSelect(t *testing.T) {
	s, _ := newRealSelector(t)

	if s.Wakeup() {
		t.Fatal("Wakeup returned true with no blocked wait")
	}

	signalled := make(chan bool, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		signalled <- s.Wakeup()
	}()

	start := time.Now()
	count, err := s.Select(10 * time.Second)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Fatalf("blocked select not interrupted, took %v", elapsed)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 wakeup event", count)
	}
	if !<-signalled {
		t.Fatal("Wakeup returned false while select was blocked")
	}
}

func TestProcessWaitReturnsStatus(t *testing.T) {
	s, loop := newRealSelector(t)

	cmd := exec.Command("sleep", "0.1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var status int
	var waitErr error
	task := loop.Spawn(func(task *fiber.Task) {
		status, waitErr = s.ProcessWait(task, cmd.Process.Pid, 0)
	})

	driveUntil(t, s, task.Completed)
	if waitErr != nil {
		t.Fatalf("ProcessWait: %v", waitErr)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	_ = loop
}

func TestProcessWaitCancelledReleasesWatch(t *testing.T) {
	s, loop := newRealSelector(t)

	cmd := exec.Command("sleep", "10")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	var waitErr error
	task := loop.Spawn(func(task *fiber.Task) {
		_, waitErr = s.ProcessWait(task, cmd.Process.Pid, 0)
	})

	if _, err := s.Select(0); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if task.Completed() {
		t.Fatal("process wait finished before the child exited")
	}

	task.Cancel()
	if !task.Completed() {
		t.Fatal("cancelled task did not finish")
	}
	if !errors.Is(waitErr, api.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", waitErr)
	}
}
