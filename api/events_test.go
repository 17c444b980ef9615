// File: api/events_test.go
// Author: momentics <momentics@gmail.com>

package api

import "testing"

func TestEventBitValues(t *testing.T) {
	// The bit assignments are a wire-level contract shared with other
	// runtimes; they must never shift.
	cases := []struct {
		event Events
		value int
	}{
		{Readable, 1},
		{Writable, 2},
		{Priority, 4},
		{Exit, 8},
	}
	for _, c := range cases {
		if int(c.event) != c.value {
			t.Errorf("%s = %d, want %d", c.event, int(c.event), c.value)
		}
	}
}

func TestEventsString(t *testing.T) {
	cases := []struct {
		events Events
		want   string
	}{
		{0, "none"},
		{Readable, "readable"},
		{Readable | Writable, "readable|writable"},
		{Readable | Writable | Priority | Exit, "readable|writable|priority|exit"},
	}
	for _, c := range cases {
		if got := c.events.String(); got != c.want {
			t.Errorf("String(%d) = %q, want %q", int(c.events), got, c.want)
		}
	}
}
