package pipeline

import (
	"testing"

	"github.com/bramvault/ctn1/internal/container"
	"github.com/stretchr/testify/require"
)

func TestDecryptPoolChunkSize(t *testing.T) {
	t.Run("empty container falls back to default", func(t *testing.T) {
		require.Equal(t, container.DefaultChunkSize, decryptPoolChunkSize(nil))
	})

	t.Run("sizes to the first chunk's declared length", func(t *testing.T) {
		hdr := container.ChunkHeader{PlaintextLen: MinChunkSize}
		require.Equal(t, MinChunkSize, decryptPoolChunkSize(&hdr))
	})

	t.Run("never sizes to the protocol maximum for a small first chunk", func(t *testing.T) {
		hdr := container.ChunkHeader{PlaintextLen: 1024}
		got := decryptPoolChunkSize(&hdr)
		require.Equal(t, 1024, got)
		require.Less(t, got, MaxChunkSize)
	})
}
