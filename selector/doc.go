// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package selector implements the reactor core of the runtime: a uniform
// readiness abstraction over epoll (Linux) and kqueue (BSD/macOS) consumed
// by a single-threaded cooperative scheduler. A Selector answers which
// descriptors are ready, for which operations, and which suspended task
// should resume.
//
// One Selector is driven by exactly one cooperative thread; Select is not
// re-entrant. The only state shared with other threads is the blocked flag
// and the wakeup side channel.
package selector
