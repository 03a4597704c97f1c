package container

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	hdr := FileHeader{
		TotalPlaintextLen: 12345,
		KeyID:             7,
		NoncePrefix:       0xdeadbeef,
	}
	for i := range hdr.WrapNonce {
		hdr.WrapNonce[i] = byte(i + 1)
	}
	for i := range hdr.WrapTag {
		hdr.WrapTag[i] = byte(i + 2)
	}
	for i := range hdr.WrappedKey {
		hdr.WrappedKey[i] = byte(i + 3)
	}

	buf := BuildFileHeader(hdr)
	require.Len(t, buf, FileHeaderLen)
	require.Equal(t, Magic, string(buf[0:4]))

	got, err := ReadFileHeader(buf)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestReadFileHeaderRejectsBadMagic(t *testing.T) {
	hdr := FileHeader{KeyID: 1}
	buf := BuildFileHeader(hdr)
	buf[0] ^= 0xFF
	_, err := ReadFileHeader(buf)
	require.Error(t, err)
}

func TestReadFileHeaderRejectsWrongLength(t *testing.T) {
	_, err := ReadFileHeader(make([]byte, FileHeaderLen-1))
	require.Error(t, err)
}

func TestReadFileHeaderRejectsNonPositiveKeyID(t *testing.T) {
	hdr := FileHeader{KeyID: 0}
	buf := BuildFileHeader(hdr)
	_, err := ReadFileHeader(buf)
	require.Error(t, err)
}

func TestChunkHeaderRoundTrip(t *testing.T) {
	hdr := ChunkHeader{PlaintextLen: 4096, ChunkIndex: 42}
	for i := range hdr.Tag {
		hdr.Tag[i] = byte(i)
	}
	buf := BuildChunkHeader(hdr)
	require.Len(t, buf, ChunkHeaderLen)
	require.Equal(t, Magic, string(buf[0:4]))

	got, err := ReadChunkHeader(buf)
	require.NoError(t, err)
	require.Equal(t, hdr, got)
}

func TestReadChunkHeaderRejectsOutOfRangeLength(t *testing.T) {
	hdr := ChunkHeader{PlaintextLen: 0, ChunkIndex: 0}
	buf := BuildChunkHeader(hdr)
	_, err := ReadChunkHeader(buf)
	require.Error(t, err)

	hdr.PlaintextLen = MaxChunkSize + 1
	buf = BuildChunkHeader(hdr)
	_, err = ReadChunkHeader(buf)
	require.Error(t, err)
}

func TestComposeNonceDistinctPerIndex(t *testing.T) {
	n0 := ComposeNonce(1, 0)
	n1 := ComposeNonce(1, 1)
	require.NotEqual(t, n0, n1)
	require.Len(t, n0, NonceSize)
}

func TestAADPrefixAndFill(t *testing.T) {
	aad := InitAADPrefix(9)
	require.Equal(t, Magic, string(aad[0:4]))
	FillAAD(&aad, 3, 100)

	other := aad
	FillAAD(&other, 3, 101)
	require.NotEqual(t, aad, other)
}
