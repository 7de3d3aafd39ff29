// Package source provides the sender's read side: a sequential byte source
// with random-access seeking, abstracted behind an interface so the burst
// state machine can be driven against an in-memory fixture in tests.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Source is the capability the sender needs from whatever holds the bytes
// being transferred: its total size and the ability to read a chunk
// starting at an arbitrary offset.
type Source interface {
	// Size returns the total number of bytes available.
	Size() int64

	// ReadAt fills buf starting at off and returns the number of bytes
	// copied. It never returns an error for a short read at end of input;
	// callers distinguish EOF by n < len(buf).
	ReadAt(buf []byte, off int64) (n int, err error)

	// Close releases any underlying resource.
	Close() error
}

// FileSource is a Source backed by a file on disk, opened read-only.
type FileSource struct {
	f    *os.File
	size int64
}

// Open opens path for reading and stats its size up front, the way the
// reference sender reads a file's length once at startup rather than on
// every chunk.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat %s: %w", path, err)
	}

	return &FileSource{f: f, size: info.Size()}, nil
}

// Size returns the file's size in bytes, as measured at Open time.
func (s *FileSource) Size() int64 {
	return s.size
}

// ReadAt fills buf from the file at offset off. A short read at end of file
// returns the partial count with a nil error.
func (s *FileSource) ReadAt(buf []byte, off int64) (int, error) {
	n, err := s.f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}
