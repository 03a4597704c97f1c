package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content for checksum calculation"), 0644))

	sum, err := Calculate(testFile)
	require.NoError(t, err)
	assert.Len(t, sum, 64)
}

func TestVerify(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content for checksum verification"), 0644))

	correct, err := Calculate(testFile)
	require.NoError(t, err)

	valid, err := Verify(testFile, correct)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = Verify(testFile, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	checksumFile := filepath.Join(tmpDir, "test.sha256")
	expected := "abc123def456"

	require.NoError(t, Save(expected, checksumFile))

	_, err := os.Stat(checksumFile)
	require.NoError(t, err)

	loaded, err := Load(checksumFile)
	require.NoError(t, err)
	assert.Equal(t, expected, loaded)
}

func TestSaveError(t *testing.T) {
	err := Save("test", "/nonexistent/path/test.sha256")
	require.Error(t, err)
}

func TestLoadError(t *testing.T) {
	_, err := Load("/nonexistent/file.sha256")
	require.Error(t, err)
}
