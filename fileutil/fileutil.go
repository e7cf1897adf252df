// Package fileutil provides the file-byte-source used to load waveform
// files before they are downloaded to an instrument.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrNotFound indicates that a waveform file does not exist.
var ErrNotFound = errors.New("fileutil: file not found")

// ByteSource loads the complete contents of a file.
type ByteSource interface {
	ReadFile(path string) ([]byte, error)
}

// ByteSourceFunc adapts a function to the ByteSource interface.
type ByteSourceFunc func(path string) ([]byte, error)

// ReadFile implements ByteSource.
func (f ByteSourceFunc) ReadFile(path string) ([]byte, error) { return f(path) }

// OSSource reads files from the local file system.
type OSSource struct{}

var _ ByteSource = OSSource{}

// ReadFile implements ByteSource. A missing file yields an error matching
// both ErrNotFound and fs.ErrNotExist.
func (OSSource) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}

		return nil, fmt.Errorf("fileutil: read %s: %w", path, err)
	}

	return data, nil
}

// MergePath joins dir and file with a single separator.
//
// Backslash is used when either part already contains one (paths copied
// from Windows instrument controllers), otherwise forward slash.
func MergePath(dir, file string) string {
	sep := "/"
	if strings.Contains(dir, `\`) || strings.Contains(file, `\`) {
		sep = `\`
	}

	return strings.TrimRight(dir, sep) + sep + strings.TrimLeft(file, sep)
}
