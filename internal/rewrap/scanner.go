package rewrap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bramvault/ctn1/internal/container"
)

// containerExt is the extension CTN1 containers carry on disk.
const containerExt = ".ctn1"

// ScanOptions configures the container scanner.
type ScanOptions struct {
	Directory string // Root directory to scan
	Recursive bool   // Whether to scan subdirectories recursively
}

// ScanResult is the outcome of scanning a directory for the KeyIDs its
// CTN1 containers reference. CTN1 never stores master-key ciphertext per
// file, so what matters for a rewrap run is the distinct set of KeyIDs
// still in use, not the file
// list itself.
type ScanResult struct {
	KeyIDs       []int32            // Distinct KeyIDs found, in first-seen order
	FilesByKeyID map[int32][]string // Every container referencing each KeyID
	FilesScanned int
	Error        error
}

// Scanner walks a directory tree reading CTN1 container headers.
type Scanner struct {
	options ScanOptions
}

// NewScanner creates a new container scanner.
func NewScanner(options ScanOptions) (*Scanner, error) {
	if options.Directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	info, err := os.Stat(options.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", options.Directory)
	}

	return &Scanner{options: options}, nil
}

// Scan walks the directory tree, reading the KeyID out of every .ctn1
// container header it finds.
func (s *Scanner) Scan() (*ScanResult, error) {
	result := &ScanResult{
		FilesByKeyID: make(map[int32][]string),
	}
	seen := make(map[int32]bool)

	err := filepath.Walk(s.options.Directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			if path == s.options.Directory {
				return nil
			}
			if !s.options.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(info.Name(), containerExt) {
			return nil
		}

		keyID, err := readContainerKeyID(path)
		if err != nil {
			// A file that merely looks like a container but fails to parse
			// is skipped rather than aborting the whole scan.
			return nil
		}

		if !seen[keyID] {
			seen[keyID] = true
			result.KeyIDs = append(result.KeyIDs, keyID)
		}
		result.FilesByKeyID[keyID] = append(result.FilesByKeyID[keyID], path)
		result.FilesScanned++

		return nil
	})

	if err != nil {
		result.Error = fmt.Errorf("scan failed: %w", err)
		return result, err
	}

	return result, nil
}

// readContainerKeyID opens path and parses just enough of it to recover
// the file header's KeyID field.
func readContainerKeyID(path string) (int32, error) {
	f, err := os.Open(path) // #nosec G304 - operator-supplied scan directory
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, container.FileHeaderLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, err
	}
	hdr, err := container.ReadFileHeader(buf)
	if err != nil {
		return 0, err
	}
	return hdr.KeyID, nil
}
