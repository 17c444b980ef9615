// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package fiber provides the host side of the runtime: goroutine-backed
// cooperative tasks implementing the transfer primitive, and the Loop that
// owns the runnable queue and reaps child processes. Control moves between
// the loop and a task through synchronous channel handoffs, so exactly one
// of them runs at any instant.
package fiber
