// File: selector/descriptor.go
// Author: momentics <momentics@gmail.com>
//
// Descriptor table and per-descriptor waiter list. The table is a growable
// array keyed by descriptor (or pid) integer; slots are created lazily and
// reused in place when the OS reuses an id.

package selector

import "github.com/momentics/fiberio/api"

const initialTableSize = 1024

// waiting represents one suspended task waiting for specific events on one
// descriptor. It is scoped to a single wait call: linked on entry, unlinked
// on resume or cancellation.
type waiting struct {
	prev, next *waiting

	// The events the task is waiting for.
	events api.Events

	// The suspended task itself. Markers used during iteration have no task.
	task api.Task
}

// unlink removes the record from its list. It is a no-op when the record is
// not linked.
func (w *waiting) unlink() {
	if w.prev == nil {
		return
	}
	w.prev.next = w.next
	w.next.prev = w.prev
	w.prev, w.next = nil, nil
}

// waiterList is an intrusive doubly-linked list with a sentinel root. The
// front of the list is the most recently registered waiter.
type waiterList struct {
	root waiting
}

func (l *waiterList) lazyInit() {
	if l.root.next == nil {
		l.root.prev = &l.root
		l.root.next = &l.root
	}
}

func (l *waiterList) pushFront(w *waiting) {
	l.lazyInit()
	l.insertAfter(&l.root, w)
}

func (l *waiterList) insertAfter(at, w *waiting) {
	w.prev = at
	w.next = at.next
	w.prev.next = w
	w.next.prev = w
}

// front returns the most recently registered waiter, or nil.
func (l *waiterList) front() *waiting {
	return l.nextOf(&l.root)
}

// nextOf returns the waiter following w, or nil at the end of the list.
func (l *waiterList) nextOf(w *waiting) *waiting {
	if w.next == nil || w.next == &l.root {
		return nil
	}
	return w.next
}

func (l *waiterList) empty() bool {
	return l.root.next == nil || l.root.next == &l.root
}

// want returns the union of events the linked waiters still wait for.
func (l *waiterList) want() api.Events {
	var events api.Events
	if l.root.next == nil {
		return 0
	}
	for w := l.root.next; w != &l.root; w = w.next {
		events |= w.events
	}
	return events
}

// descriptor aggregates the waiters and event state of one id.
type descriptor struct {
	waiters waiterList

	// pending holds events that arrived but are not yet consumed. It is
	// cleared when the descriptor is dispatched.
	pending api.Events

	// armed is the union of events OS-level interest currently covers.
	// Meaningful for persistent backends only.
	armed api.Events
}

// table maps descriptor ids to records, growing geometrically on demand.
type table struct {
	slots []*descriptor
}

// lookup returns the record for id, creating the slot lazily. Records are
// never removed; a record is reused in place when the OS reuses its id.
func (t *table) lookup(id int) *descriptor {
	if id >= len(t.slots) {
		size := nextPowerOfTwo(uint32(id + 1))
		if size < initialTableSize {
			size = initialTableSize
		}
		grown := make([]*descriptor, size)
		copy(grown, t.slots)
		t.slots = grown
	}
	d := t.slots[id]
	if d == nil {
		d = &descriptor{}
		t.slots[id] = d
	}
	return d
}

func (t *table) free() {
	t.slots = nil
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
