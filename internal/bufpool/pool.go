// Package bufpool provides a thread-safe pool of byte buffers sized to the
// pipeline's working chunk size. Buffers that held plaintext or key
// material are zeroed before they go back in the pool, per spec.md §4.3 —
// pooling is a performance optimization, zeroing on release is a
// correctness requirement.
package bufpool

import "sync"

// Pool hands out []byte slices of a fixed capacity and zeroes them on
// return.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a Pool whose buffers have capacity size.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Rent returns a buffer with length n (n must be <= the pool's size).
func (p *Pool) Rent(n int) []byte {
	bufPtr := p.pool.Get().(*[]byte)
	buf := *bufPtr
	if cap(buf) < n {
		// Defensive: a caller asked for more than the configured chunk
		// size. Grow rather than panic; this buffer will not return to
		// the pool's steady-state size class.
		buf = make([]byte, n)
		return buf
	}
	return buf[:n]
}

// Return zeroes buf and places it back in the pool.
func (p *Pool) Return(buf []byte) {
	full := buf[:cap(buf)]
	for i := range full {
		full[i] = 0
	}
	p.pool.Put(&full)
}
