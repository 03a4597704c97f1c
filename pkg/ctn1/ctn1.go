// Package ctn1 is the public, streaming authenticated file cipher API
// described in spec.md. It wraps internal/pipeline with the push-style
// and pull-style entry points of spec.md §4.6.
package ctn1

import (
	"context"
	"io"

	"github.com/bramvault/ctn1/internal/container"
	"github.com/bramvault/ctn1/internal/ctn1err"
	"github.com/bramvault/ctn1/internal/pipeline"
)

// Re-export the error taxonomy and size bounds so callers never need to
// import internal packages.
const (
	MinChunkSize     = container.MinChunkSize
	MaxChunkSize     = container.MaxChunkSize
	DefaultChunkSize = container.DefaultChunkSize
	MinWindowCap     = pipeline.MinWindowCap
	DefaultWindowCap = pipeline.DefaultWindowCap
)

type (
	// EncryptOptions configures a streaming encrypt operation.
	EncryptOptions = pipeline.EncryptOptions
	// DecryptOptions configures a streaming decrypt operation.
	DecryptOptions = pipeline.DecryptOptions
)

// Error kinds, mirroring spec.md §7's taxonomy.
const (
	KindInvalidArgument = ctn1err.KindInvalidArgument
	KindInvalidData     = ctn1err.KindInvalidData
	KindTruncated       = ctn1err.KindTruncated
	KindAuthFailed      = ctn1err.KindAuthFailed
	KindKeyIDMismatch   = ctn1err.KindKeyIDMismatch
	KindNonceOverflow   = ctn1err.KindNonceOverflow
	KindCancelled       = ctn1err.KindCancelled
	KindIO              = ctn1err.KindIO
	KindOutOfOrder      = ctn1err.KindOutOfOrder
)

// Kind classifies a returned error; use ctn1.Is(err, ctn1.KindAuthFailed).
type Kind = ctn1err.Kind

// Is reports whether err's classified Kind equals kind.
func Is(err error, kind Kind) bool { return ctn1err.Is(err, kind) }

// seekableLen returns the remaining length of r if it supports seeking,
// else 0, per spec.md §4.4 step 3.
func seekableLen(r io.Reader) int64 {
	seeker, ok := r.(io.Seeker)
	if !ok {
		return 0
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return 0
	}
	if end < cur {
		return 0
	}
	return end - cur
}

// maybeCloser closes c unless leaveOpen is set.
func maybeCloser(c io.Closer, leaveOpen bool) {
	if c == nil || leaveOpen {
		return
	}
	_ = c.Close()
}

// EncryptStream is the push-style encrypt entry point: it reads input,
// writes the CTN1 container to output, and returns once the whole
// operation completes or fails. input's remaining length is used as the
// header's declared total plaintext length when input is an io.Seeker;
// otherwise the header declares a length of 0.
func EncryptStream(ctx context.Context, masterKey []byte, input io.Reader, output io.Writer, opts EncryptOptions, leaveInputOpen, leaveOutputOpen bool) error {
	if input == nil {
		return ctn1err.New("ctn1.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	if output == nil {
		return ctn1err.New("ctn1.encrypt", ctn1err.KindInvalidArgument, nil)
	}
	if inCloser, ok := input.(io.Closer); ok {
		defer maybeCloser(inCloser, leaveInputOpen)
	}
	if outCloser, ok := output.(io.Closer); ok {
		defer maybeCloser(outCloser, leaveOutputOpen)
	}
	total := seekableLen(input)
	return pipeline.Encrypt(ctx, masterKey, input, total, output, opts)
}

// DecryptStream is the push-style decrypt entry point.
func DecryptStream(ctx context.Context, masterKey []byte, input io.Reader, output io.Writer, opts DecryptOptions, leaveInputOpen, leaveOutputOpen bool) error {
	if input == nil {
		return ctn1err.New("ctn1.decrypt", ctn1err.KindInvalidArgument, nil)
	}
	if output == nil {
		return ctn1err.New("ctn1.decrypt", ctn1err.KindInvalidArgument, nil)
	}
	if inCloser, ok := input.(io.Closer); ok {
		defer maybeCloser(inCloser, leaveInputOpen)
	}
	if outCloser, ok := output.(io.Closer); ok {
		defer maybeCloser(outCloser, leaveOutputOpen)
	}
	return pipeline.Decrypt(ctx, masterKey, input, output, opts)
}

// EncryptReader is the pull-style encrypt entry point: it spawns an
// internal goroutine driving EncryptStream into an in-memory pipe and
// returns the read end immediately, per spec.md §4.6/§9. The pipe is an
// unbuffered io.Pipe: each write blocks until the reader consumes it, and
// no chunk_size*window_cap buffer is kept between writer and reader.
func EncryptReader(ctx context.Context, masterKey []byte, input io.Reader, opts EncryptOptions, leaveInputOpen bool) io.ReadCloser {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	windowCap := opts.WindowCap
	if windowCap == 0 {
		windowCap = DefaultWindowCap
	}
	pr, pw := newBoundedPipe(chunkSize * windowCap)
	go func() {
		err := EncryptStream(ctx, masterKey, input, pw, opts, leaveInputOpen, true)
		_ = pw.CloseWithError(err)
	}()
	return pr
}

// DecryptReader is the pull-style decrypt entry point.
func DecryptReader(ctx context.Context, masterKey []byte, input io.Reader, opts DecryptOptions, leaveInputOpen bool) io.ReadCloser {
	windowCap := opts.WindowCap
	if windowCap == 0 {
		windowCap = DefaultWindowCap
	}
	pr, pw := newBoundedPipe(DefaultChunkSize * windowCap)
	go func() {
		err := DecryptStream(ctx, masterKey, input, pw, opts, leaveInputOpen, true)
		_ = pw.CloseWithError(err)
	}()
	return pr
}
