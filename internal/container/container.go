// Package container implements the CTN1 on-disk container format: the
// 84-byte file header, the per-chunk header, nonce composition, and AAD
// construction. It performs no encryption itself — see internal/keywrap
// and internal/aead for that — it only builds and parses bytes.
package container

import (
	"encoding/binary"

	"github.com/bramvault/ctn1/internal/ctn1err"
)

// Magic is the 4-byte ASCII magic that opens both the file header and every
// chunk header.
const Magic = "CTN1"

const (
	// FileHeaderLen is the literal byte size of the file header (§4.1).
	FileHeaderLen = 4 + 4 + 8 + 4 + 4 + 12 + 16 + 32 // 84

	// ChunkHeaderLen is the literal byte size of a chunk header.
	ChunkHeaderLen = 4 + 4 + 8 + 4 + 16 // 36

	// WrapNonceSize is the size of the nonce used to wrap the file key.
	WrapNonceSize = 12
	// WrapTagSize is the size of the GCM tag produced wrapping the file key.
	WrapTagSize = 16
	// FileKeySize is the size of the per-file data-encryption key.
	FileKeySize = 32

	// AADLen is the literal byte size of the per-chunk AAD record.
	AADLen = 32

	// NonceSize is the GCM nonce size used throughout: 4-byte prefix plus
	// an 8-byte LE chunk counter.
	NonceSize = 12

	// MinChunkSize is the smallest permitted plaintext chunk size.
	MinChunkSize = 8 * 1024
	// MaxChunkSize is the largest permitted plaintext chunk size.
	MaxChunkSize = 64 * 1024 * 1024
	// DefaultChunkSize is used when the caller does not specify one.
	DefaultChunkSize = 1024 * 1024
)

// FileHeader is the parsed, in-memory form of the 84-byte file header.
type FileHeader struct {
	TotalPlaintextLen int64
	KeyID             int32
	NoncePrefix       uint32
	WrapNonce         [WrapNonceSize]byte
	WrapTag           [WrapTagSize]byte
	WrappedKey        [FileKeySize]byte
}

// BuildFileHeader serializes hdr into the literal 84-byte on-wire form.
func BuildFileHeader(hdr FileHeader) []byte {
	buf := make([]byte, FileHeaderLen)
	off := 0
	copy(buf[off:], Magic)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], FileHeaderLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(hdr.TotalPlaintextLen))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(hdr.KeyID))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], hdr.NoncePrefix)
	off += 4
	copy(buf[off:], hdr.WrapNonce[:])
	off += WrapNonceSize
	copy(buf[off:], hdr.WrapTag[:])
	off += WrapTagSize
	copy(buf[off:], hdr.WrappedKey[:])
	off += FileKeySize
	return buf
}

// ReadFileHeader parses buf (which must be exactly FileHeaderLen bytes) into
// a FileHeader, validating magic and the self-reported header length.
func ReadFileHeader(buf []byte) (FileHeader, error) {
	var hdr FileHeader
	if len(buf) != FileHeaderLen {
		return hdr, ctn1err.New("read_file_header", ctn1err.KindInvalidData, nil)
	}
	off := 0
	if string(buf[off:off+4]) != Magic {
		return hdr, ctn1err.New("read_file_header", ctn1err.KindInvalidData, nil)
	}
	off += 4
	hdrLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if hdrLen != FileHeaderLen {
		return hdr, ctn1err.New("read_file_header", ctn1err.KindInvalidData, nil)
	}
	hdr.TotalPlaintextLen = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	hdr.KeyID = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	hdr.NoncePrefix = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	copy(hdr.WrapNonce[:], buf[off:off+WrapNonceSize])
	off += WrapNonceSize
	copy(hdr.WrapTag[:], buf[off:off+WrapTagSize])
	off += WrapTagSize
	copy(hdr.WrappedKey[:], buf[off:off+FileKeySize])
	off += FileKeySize
	if hdr.KeyID <= 0 {
		return hdr, ctn1err.New("read_file_header", ctn1err.KindInvalidData, nil)
	}
	return hdr, nil
}

// ChunkHeader is the parsed, in-memory form of a per-chunk header.
type ChunkHeader struct {
	PlaintextLen int64
	ChunkIndex   int32
	Tag          [WrapTagSize]byte
}

// BuildChunkHeader serializes hdr into its literal on-wire form.
func BuildChunkHeader(hdr ChunkHeader) []byte {
	buf := make([]byte, ChunkHeaderLen)
	off := 0
	copy(buf[off:], Magic)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], ChunkHeaderLen)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(hdr.PlaintextLen))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(hdr.ChunkIndex))
	off += 4
	copy(buf[off:], hdr.Tag[:])
	off += WrapTagSize
	return buf
}

// ReadChunkHeader parses buf (exactly ChunkHeaderLen bytes) into a
// ChunkHeader, validating magic, self-reported length, and the plaintext
// length range.
func ReadChunkHeader(buf []byte) (ChunkHeader, error) {
	var hdr ChunkHeader
	if len(buf) != ChunkHeaderLen {
		return hdr, ctn1err.New("read_chunk_header", ctn1err.KindInvalidData, nil)
	}
	off := 0
	if string(buf[off:off+4]) != Magic {
		return hdr, ctn1err.New("read_chunk_header", ctn1err.KindInvalidData, nil)
	}
	off += 4
	chLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if chLen != ChunkHeaderLen {
		return hdr, ctn1err.New("read_chunk_header", ctn1err.KindInvalidData, nil)
	}
	hdr.PlaintextLen = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	hdr.ChunkIndex = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	copy(hdr.Tag[:], buf[off:off+WrapTagSize])
	off += WrapTagSize
	if hdr.PlaintextLen < 1 || hdr.PlaintextLen > MaxChunkSize {
		return hdr, ctn1err.New("read_chunk_header", ctn1err.KindInvalidData, nil)
	}
	return hdr, nil
}

// ComposeNonce builds the 12-byte GCM nonce for a chunk: a 4-byte
// little-endian prefix followed by an 8-byte little-endian chunk index.
func ComposeNonce(prefix uint32, index uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.LittleEndian.PutUint32(nonce[0:4], prefix)
	binary.LittleEndian.PutUint64(nonce[4:12], index)
	return nonce
}

// AAD is the fixed 32-byte associated-data record bound to every chunk.
type AAD [AADLen]byte

// InitAADPrefix returns an AAD with the magic and key ID fields filled in
// and everything else zeroed; FillAAD completes it per chunk.
func InitAADPrefix(keyID int32) AAD {
	var aad AAD
	copy(aad[0:4], Magic)
	binary.LittleEndian.PutUint32(aad[4:8], uint32(keyID))
	// bytes 8..12 and 28..32 stay reserved-zero.
	return aad
}

// FillAAD mutates aad in place with the per-chunk index and plaintext
// length, leaving the magic/key-id prefix from InitAADPrefix untouched.
func FillAAD(aad *AAD, chunkIndex uint64, plaintextLen int64) {
	binary.LittleEndian.PutUint64(aad[12:20], chunkIndex)
	binary.LittleEndian.PutUint64(aad[20:28], uint64(plaintextLen))
}
