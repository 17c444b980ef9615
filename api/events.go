// File: api/events.go
// Author: momentics <momentics@gmail.com>

package api

import "strings"

// Events is a bit mask of readiness conditions a task can wait on and a
// backend can deliver. The bit values are fixed for interoperability with
// other runtimes sharing the same convention.
type Events int

const (
	// Readable indicates data (or a hangup/error condition) can be read.
	Readable Events = 1 << iota
	// Writable indicates the descriptor accepts writes without blocking.
	Writable
	// Priority indicates out-of-band/priority data.
	Priority
	// Exit indicates a watched process has terminated.
	Exit
)

var eventNames = []struct {
	bit  Events
	name string
}{
	{Readable, "readable"},
	{Writable, "writable"},
	{Priority, "priority"},
	{Exit, "exit"},
}

func (e Events) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, n := range eventNames {
		if e&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
