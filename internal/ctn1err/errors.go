// Package ctn1err defines the error taxonomy shared by the container codec,
// key wrapper, and pipelines.
package ctn1err

import (
	"errors"
	"strconv"
)

// Kind classifies a failure into the taxonomy a caller can switch on.
type Kind int

const (
	// KindInvalidArgument covers configuration out of range, nil/closed
	// streams, and chunk sizes outside [MinChunkSize, MaxChunkSize].
	KindInvalidArgument Kind = iota
	// KindInvalidData covers structural container errors: magic mismatch,
	// bad lengths, trailing bytes, duplicate/out-of-order chunk index.
	KindInvalidData
	// KindTruncated means the input ended before a declared record completed.
	KindTruncated
	// KindAuthFailed covers AEAD tag mismatches, including strict length
	// check failures and tampered chunk headers.
	KindAuthFailed
	// KindKeyIDMismatch means the header's key ID didn't match the caller's.
	KindKeyIDMismatch
	// KindNonceOverflow means the chunk index would exceed 2^64-1.
	KindNonceOverflow
	// KindCancelled means the caller's cancellation signal fired at a
	// suspension point.
	KindCancelled
	// KindIO covers underlying I/O errors on input or output streams.
	KindIO
	// KindOutOfOrder covers structurally-detected reorder/duplicate chunk
	// indices (see spec open question on duplicate detection).
	KindOutOfOrder
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidData:
		return "InvalidData"
	case KindTruncated:
		return "Truncated"
	case KindAuthFailed:
		return "AuthFailed"
	case KindKeyIDMismatch:
		return "KeyIdMismatch"
	case KindNonceOverflow:
		return "NonceOverflow"
	case KindCancelled:
		return "Cancelled"
	case KindIO:
		return "Io"
	case KindOutOfOrder:
		return "OutOfOrder"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type surfaced by every exported operation.
// It always carries a Kind so callers can classify failures with errors.As,
// and it wraps the underlying cause for errors.Unwrap/errors.Is chaining.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/kind, wrapping err (which may be nil).
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ChunkError attaches a failing chunk index to a pipeline-level error.
type ChunkError struct {
	Base       *Error
	ChunkIndex uint64
}

func (e *ChunkError) Error() string {
	s := e.Base.Op + " (chunk " + strconv.FormatUint(e.ChunkIndex, 10) + "): " + e.Base.Kind.String()
	if e.Base.Err != nil {
		s += ": " + e.Base.Err.Error()
	}
	return s
}

func (e *ChunkError) Unwrap() error { return e.Base }

// WithChunk wraps err as a ChunkError for the given chunk index.
func WithChunk(op string, kind Kind, chunkIndex uint64, err error) *ChunkError {
	return &ChunkError{Base: New(op, kind, err), ChunkIndex: chunkIndex}
}
