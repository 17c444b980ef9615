// File: buffer/buffer.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity byte region implementing the api.Buffer handle: the
// writable region is the whole backing slice, the readable region is the
// populated prefix.

package buffer

import "github.com/momentics/fiberio/api"

// Buffer is a fixed-capacity byte region.
type Buffer struct {
	data   []byte
	length int
}

var _ api.Buffer = (*Buffer)(nil)

// New returns an empty buffer of the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// FromBytes wraps data as a fully populated buffer. The slice is not copied.
func FromBytes(data []byte) *Buffer {
	return &Buffer{data: data, length: len(data)}
}

// WritableBytes returns the whole backing region.
func (b *Buffer) WritableBytes() []byte {
	return b.data
}

// ReadableBytes returns the populated prefix.
func (b *Buffer) ReadableBytes() []byte {
	return b.data[:b.length]
}

// SetLength marks the populated prefix after data was read into the buffer.
// It clamps to the capacity.
func (b *Buffer) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.length = n
}

// Len reports the populated length.
func (b *Buffer) Len() int { return b.length }

// Cap reports the capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Reset empties the populated prefix without releasing the backing region.
func (b *Buffer) Reset() { b.length = 0 }
