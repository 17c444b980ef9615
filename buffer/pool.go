// File: buffer/pool.go
// Author: momentics <momentics@gmail.com>

package buffer

import "sync"

// Pool recycles fixed-capacity buffers. Buffers of a foreign capacity are
// dropped on Put rather than mixed into the pool.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool returns a pool handing out buffers of the given capacity.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any { return New(size) }
	return p
}

// Get returns an empty buffer from the pool.
func (p *Pool) Get() *Buffer {
	b := p.pool.Get().(*Buffer)
	b.Reset()
	return b
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
func (p *Pool) Put(b *Buffer) {
	if b != nil && b.Cap() == p.size {
		p.pool.Put(b)
	}
}
