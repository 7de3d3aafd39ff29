// Package sink provides the receiver's write side: an offset-addressable
// byte destination, abstracted behind an interface so the receive state
// machine can be driven against an in-memory fixture in tests.
package sink

import (
	"fmt"
	"os"
)

// Sink is the capability the receiver needs from whatever is accumulating
// the transferred bytes: write a chunk at an arbitrary offset, out of
// order, as selective-ack gaps are filled in.
type Sink interface {
	// WriteAt writes data at offset off, regardless of how much has been
	// written contiguously so far.
	WriteAt(data []byte, off int64) error

	// Close releases any underlying resource.
	Close() error
}

// FileSink is a Sink backed by a file on disk, created or truncated on
// Create.
type FileSink struct {
	f *os.File
}

// Create opens path for writing, truncating any existing content, the way
// the reference receiver opens its output file once at startup.
func Create(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// WriteAt writes data at the given offset, seeking the underlying file
// handle back afterward is unnecessary since os.File.WriteAt is
// position-independent.
func (s *FileSink) WriteAt(data []byte, off int64) error {
	_, err := s.f.WriteAt(data, off)
	if err != nil {
		return fmt.Errorf("sink: write at offset %d: %w", off, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	return s.f.Close()
}
