// Package pipeline implements the parallel, ordered chunked encryption and
// decryption pipelines described in spec.md §4.4/§4.5: a single reader,
// a worker pool performing AEAD seal/open, and a single emitter that
// restores strict chunk-index order before writing to the output stream.
package pipeline

import (
	"io"
	"runtime"

	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/ctn1err"
)

// Bounds on the configuration surface, per spec.md §4.4.
const (
	MinChunkSize     = container.MinChunkSize
	MaxChunkSize     = container.MaxChunkSize
	DefaultChunkSize = container.DefaultChunkSize

	MinWindowCap     = 4
	DefaultWindowCap = 1024
)

// DefaultWorkers caps parallelism at min(4, CPU) by default.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	if n < 1 {
		return 1
	}
	return n
}

// EncryptOptions configures the encryption pipeline.
type EncryptOptions struct {
	ChunkSize int
	Workers   int
	WindowCap int
	KeyID     int32
	RNG       io.Reader // nil means crypto/rand.Reader
}

// DecryptOptions configures the decryption pipeline.
type DecryptOptions struct {
	Workers           int
	WindowCap         int
	KeyID             int32
	StrictLengthCheck bool
}

// normalizeEncrypt applies defaults and validates ranges, returning an
// InvalidArgument error on an out-of-range value.
func normalizeEncrypt(o EncryptOptions) (EncryptOptions, error) {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkSize < MinChunkSize || o.ChunkSize > MaxChunkSize {
		return o, ctn1err.New("pipeline.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers()
	}
	if o.Workers < 1 {
		return o, ctn1err.New("pipeline.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	if o.WindowCap == 0 {
		o.WindowCap = DefaultWindowCap
	}
	if o.WindowCap < MinWindowCap {
		return o, ctn1err.New("pipeline.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	if o.KeyID <= 0 {
		return o, ctn1err.New("pipeline.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	return o, nil
}

func normalizeDecrypt(o DecryptOptions) (DecryptOptions, error) {
	if o.Workers == 0 {
		o.Workers = DefaultWorkers()
	}
	if o.Workers < 1 {
		return o, ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidArgument, nil)
	}
	if o.WindowCap == 0 {
		o.WindowCap = DefaultWindowCap
	}
	if o.WindowCap < MinWindowCap {
		return o, ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidArgument, nil)
	}
	if o.KeyID <= 0 {
		return o, ctn1err.New("pipeline.decrypt", ctn1err.KindInvalidArgument, nil)
	}
	return o, nil
}
