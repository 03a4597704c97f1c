// Package secure provides locked, zeroed-on-destroy buffers for the file
// key, master key, and any other secret material that outlives a single
// AEAD call. It wraps github.com/gitrgoliveira/go-fileencrypt/secure for
// the actual zeroing primitive and adds best-effort mlock/munlock on top.
package secure

import (
	"fmt"

	"github.com/gitrgoliveira/go-fileencrypt/secure"
)

// Buffer wraps a byte slice containing key material. It is locked in
// memory (best effort) on creation and zeroed on Destroy.
type Buffer struct {
	data   []byte
	unlock func()
}

// New allocates a zeroed Buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secure: buffer size must be positive, got %d", size)
	}
	data := make([]byte, size)
	unlock, _ := lockMemory(data) // best effort; mlock failures are non-fatal
	return &Buffer{data: data, unlock: unlock}, nil
}

// NewFromBytes copies source into a new locked Buffer. The caller is
// responsible for zeroing source afterward if it is no longer needed.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secure: source data cannot be empty")
	}
	buf, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buf.data, source)
	return buf, nil
}

// Data returns the underlying slice. Callers must not retain references
// past Destroy.
func (b *Buffer) Data() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Destroy zeros and unlocks the buffer. Idempotent.
func (b *Buffer) Destroy() {
	if b == nil || b.data == nil {
		return
	}
	if b.unlock != nil {
		b.unlock()
	}
	secure.Zero(b.data)
	b.data = nil
}

// Zero overwrites data with zeros without going through a Buffer, for
// one-shot scratch slices (e.g. a plaintext chunk buffer returned to the
// pool).
func Zero(data []byte) {
	secure.Zero(data)
}

func lockMemory(data []byte) (unlock func(), err error) {
	if len(data) == 0 {
		return func() {}, nil
	}
	if err := lockMemoryPlatform(data); err != nil {
		return func() {}, err
	}
	return func() { _ = unlockMemoryPlatform(data) }, nil
}
