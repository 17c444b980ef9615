// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the runtime.

package api

import "errors"

var (
	// ErrCancelled reports that a suspended operation was resumed with no
	// payload. It is a value-level sentinel, not a failure of the selector.
	ErrCancelled = errors.New("operation cancelled")

	// ErrSelectorClosed reports an operation on a closed selector.
	ErrSelectorClosed = errors.New("selector is closed")

	// ErrBufferOverflow reports a write length exceeding the readable region
	// of the supplied buffer.
	ErrBufferOverflow = errors.New("length exceeds size of buffer")
)
