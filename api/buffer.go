// File: api/buffer.go
// Author: momentics <momentics@gmail.com>

package api

// Buffer is an opaque byte region handle. The reactor never allocates or
// reslices buffers itself; it only reads into the writable region and writes
// out of the readable region.
type Buffer interface {
	// WritableBytes returns the mutable backing region data is read into.
	// Its length is the buffer's capacity.
	WritableBytes() []byte

	// ReadableBytes returns the populated region available to be written
	// out.
	ReadableBytes() []byte
}
